package enviro

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jersme/enviro/internal/adapters/display"
	"github.com/jersme/enviro/internal/adapters/observability"
	"github.com/jersme/enviro/internal/adapters/provider"
	"github.com/jersme/enviro/internal/adapters/queue"
	"github.com/jersme/enviro/internal/adapters/status"
	"github.com/jersme/enviro/internal/adapters/wal"
	"github.com/jersme/enviro/internal/app/sampler"
	"github.com/jersme/enviro/internal/ports"
)

// MonitorOption customizes the dependencies used by Monitor.
type MonitorOption func(*monitorOverrides)

type monitorOverrides struct {
	providers     []Provider
	sinks         []Sink
	displays      []Display
	cpu           CPUTemperatureSource
	observability Observability
	session       string
	now           func() time.Time
}

// WithProvider adds a provider. Any WithProvider replaces the providers
// listed in the config.
func WithProvider(p Provider) MonitorOption {
	return func(o *monitorOverrides) {
		if p != nil {
			o.providers = append(o.providers, p)
		}
	}
}

// WithSink adds a sink. Any WithSink replaces the sinks listed in the config.
func WithSink(s Sink) MonitorOption {
	return func(o *monitorOverrides) {
		if s != nil {
			o.sinks = append(o.sinks, s)
		}
	}
}

// WithDisplay adds a display. Any WithDisplay replaces the configured displays.
func WithDisplay(d Display) MonitorOption {
	return func(o *monitorOverrides) {
		if d != nil {
			o.displays = append(o.displays, d)
		}
	}
}

// WithCPUSource replaces the thermal zone reader used for compensation.
func WithCPUSource(src CPUTemperatureSource) MonitorOption {
	return func(o *monitorOverrides) {
		o.cpu = src
	}
}

// WithObservability plugs in a custom observability backend.
func WithObservability(obs Observability) MonitorOption {
	return func(o *monitorOverrides) {
		o.observability = obs
	}
}

// WithSession fixes the session id instead of generating a UUID.
func WithSession(id string) MonitorOption {
	return func(o *monitorOverrides) {
		o.session = id
	}
}

// WithClock injects the wall clock used for Reading timestamps.
func WithClock(now func() time.Time) MonitorOption {
	return func(o *monitorOverrides) {
		o.now = now
	}
}

// Monitor wires providers, sinks and displays into a sampling controller and
// serves its status over HTTP while it runs.
type Monitor struct {
	cfg       *Config
	session   string
	obs       ports.Observability
	registry  *prometheus.Registry
	ctrl      *sampler.Controller
	providers []Provider
	sinks     []Sink
	displays  []Display
	store     *queue.MemStore
	board     *display.Board
	wal       *wal.FileWAL
	status    *status.Server

	gaugeStopCh chan struct{}
}

// NewMonitor builds the adapters named in cfg (SQLite, Timescale,
// ClickHouse, MQTT, ... ) unless options override them. Network sinks are
// dialled here so a bad DSN fails before the first tick.
func NewMonitor(cfg *Config, opts ...MonitorOption) (*Monitor, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	var overrides monitorOverrides
	for _, opt := range opts {
		if opt != nil {
			opt(&overrides)
		}
	}

	m := &Monitor{
		cfg:      cfg,
		session:  overrides.session,
		registry: prometheus.NewRegistry(),
	}
	if m.session == "" {
		m.session = uuid.NewString()
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m.obs = overrides.observability
	if m.obs == nil {
		m.obs = observability.NewPromObsWith(m.registry, log.Default())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var err error
	if len(overrides.providers) > 0 {
		m.providers = overrides.providers
	} else if m.providers, err = buildProviders(cfg); err != nil {
		return nil, err
	}

	if len(overrides.sinks) > 0 {
		m.sinks = overrides.sinks
	} else {
		built, err := buildSinks(ctx, cfg, m.session)
		if err != nil {
			closeProviders(m.providers)
			return nil, err
		}
		m.sinks, m.store, m.wal = built.sinks, built.store, built.wal
	}

	if len(overrides.displays) > 0 {
		m.displays = overrides.displays
	} else {
		m.displays, m.board = buildDisplays(cfg)
	}

	comp := cfg.Sampler.Compensation
	compOn := comp.On()
	if compOn && comp.Enabled == nil && !declaresField(m.providers, rawFieldOf(comp)) {
		// left at its default with no temperature source: nothing to compensate
		compOn = false
		m.obs.LogInfo("compensation_skipped", ports.Field{Key: "raw_field", Value: rawFieldOf(comp)})
	}

	var cpu ports.CPUTemperatureSource
	if compOn {
		cpu = overrides.cpu
		if cpu == nil {
			cpu = provider.ThermalZone{Path: cfg.CPU.ThermalZone}
		}
	}

	m.ctrl, err = sampler.New(sampler.Options{
		Interval:  cfg.Sampler.Interval(),
		MaxTicks:  cfg.Sampler.MaxTicks,
		Providers: m.providers,
		Sinks:     m.sinks,
		Displays:  m.displays,
		CPU:       cpu,
		Compensation: sampler.Compensation{
			Factor:   cfg.Sampler.Compensation.Factor,
			RawField: cfg.Sampler.Compensation.RawField,
		},
		Obs: m.obs,
		Now: overrides.now,
	})
	if err != nil {
		closeSinks(m.sinks)
		closeProviders(m.providers)
		return nil, err
	}

	src := status.Sources{
		Metrics: promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}),
		State:   func() string { return m.ctrl.State().String() },
		Session: m.session,
	}
	if m.store != nil {
		src.Latest = m.store
	}
	if m.board != nil {
		src.Board = m.board
	}
	m.status = status.New(cfg.Metrics.Addr, src)
	return m, nil
}

func rawFieldOf(c CompensationConfig) string {
	if c.RawField == "" {
		return sampler.DefaultRawField
	}
	return c.RawField
}

func declaresField(providers []Provider, name string) bool {
	for _, p := range providers {
		for _, f := range p.Fields() {
			if f == name {
				return true
			}
		}
	}
	return false
}

func (m *Monitor) Session() string { return m.session }

func (m *Monitor) State() State { return m.ctrl.State() }

// Ticks reports how many ticks have completed.
func (m *Monitor) Ticks() uint64 { return m.ctrl.Ticks() }

// StatusHandler serves /metrics, /healthz, /state, /readings/latest and /display.
func (m *Monitor) StatusHandler() http.Handler { return m.status.Handler() }

// Latest returns the newest Reading held by the memory sink, if enabled.
func (m *Monitor) Latest() (Reading, bool) {
	if m.store == nil {
		return Reading{}, false
	}
	return m.store.Latest()
}

// Run starts the status server and blocks until the controller stops.
// Cancelling ctx is a clean shutdown and returns nil.
func (m *Monitor) Run(ctx context.Context) error {
	if m.cfg.Metrics.Addr != "" {
		m.status.Start(func(err error) {
			m.obs.LogError("status_server_exited", err, ports.Field{Key: "addr", Value: m.cfg.Metrics.Addr})
		})
	}
	if m.wal != nil || m.store != nil {
		m.gaugeStopCh = make(chan struct{})
		go m.recordResourceGauges(m.gaugeStopCh, time.Second)
	}

	m.obs.LogInfo("monitor_started", ports.Field{Key: "session", Value: m.session})
	runErr := m.ctrl.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.shutdown(shutdownCtx); err != nil {
		if ctx.Err() != nil {
			m.obs.LogError("shutdown_failed", err)
		} else {
			runErr = errors.Join(runErr, err)
		}
	}
	return runErr
}

// shutdown stops the status server and releases providers. Sinks and
// displays are released by the controller.
func (m *Monitor) shutdown(ctx context.Context) error {
	var errs []error

	if m.gaugeStopCh != nil {
		close(m.gaugeStopCh)
		m.gaugeStopCh = nil
	}
	if m.cfg.Metrics.Addr != "" {
		if err := m.status.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs = append(errs, err)
		}
	}
	if err := closeProviders(m.providers); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (m *Monitor) recordResourceGauges(stop <-chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if m.wal != nil {
				m.obs.SetGauge("enviro_wal_size_bytes", float64(m.wal.Stats().SizeBytes))
			}
			if m.store != nil {
				m.obs.SetGauge("enviro_memory_store_len", float64(m.store.Len()))
			}
		}
	}
}
