package sampler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jersme/enviro/internal/domain"
	"github.com/jersme/enviro/internal/ports"
)

// ErrAlreadyRunning is returned when Run is called on a controller that has
// already been started.
var ErrAlreadyRunning = errors.New("sampler: controller already started")

type State int32

const (
	StateIdle State = iota
	StateRunning
	StateShuttingDown
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateShuttingDown:
		return "shutting_down"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Options wires the controller. Providers, sinks and displays are owned by
// the caller; the controller only closes them when Run returns.
type Options struct {
	Interval time.Duration
	MaxTicks int

	Providers []ports.Provider
	Sinks     []ports.Sink
	Displays  []ports.Display

	// CPU enables temperature compensation when non-nil.
	CPU          ports.CPUTemperatureSource
	Compensation Compensation

	Obs ports.Observability
	Now func() time.Time
}

// Controller drives the gather → compensate → assemble → persist → display →
// sleep cycle on a single goroutine.
type Controller struct {
	opts     Options
	declared [][]string
	width    int

	window   cpuWindow
	rot      rotation
	lastTS   time.Time
	state    atomic.Int32
	ticks    atomic.Uint64
	obs      ports.Observability
	now      func() time.Time
	hasComp  bool
	rawField string
}

func New(opts Options) (*Controller, error) {
	if opts.Interval < 0 {
		return nil, fmt.Errorf("tick interval must be >= 0, got %s", opts.Interval)
	}
	if opts.MaxTicks < 0 {
		return nil, fmt.Errorf("max ticks must be >= 0, got %d", opts.MaxTicks)
	}
	opts.Compensation.applyDefaults()
	if opts.Compensation.Factor <= 0 {
		return nil, fmt.Errorf("compensation factor must be > 0, got %v", opts.Compensation.Factor)
	}

	c := &Controller{
		opts: opts,
		obs:  opts.Obs,
		now:  opts.Now,
	}
	if c.obs == nil {
		c.obs = nopObs{}
	}
	if c.now == nil {
		c.now = time.Now
	}

	seen := make(map[string]string)
	for _, p := range opts.Providers {
		if p == nil {
			return nil, errors.New("nil provider")
		}
		fields := append([]string(nil), p.Fields()...)
		if len(fields) == 0 {
			return nil, fmt.Errorf("provider %s declares no fields", p.Name())
		}
		for _, f := range fields {
			if owner, dup := seen[f]; dup {
				return nil, fmt.Errorf("field %q declared by both %s and %s", f, owner, p.Name())
			}
			seen[f] = p.Name()
		}
		c.declared = append(c.declared, fields)
		c.width += len(fields)
	}

	if opts.CPU != nil {
		if _, ok := seen[opts.Compensation.RawField]; !ok {
			return nil, fmt.Errorf("compensation needs raw field %q but no provider declares it", opts.Compensation.RawField)
		}
		if owner, dup := seen[opts.Compensation.OutputField]; dup {
			return nil, fmt.Errorf("compensation output %q collides with a field of %s", opts.Compensation.OutputField, owner)
		}
		c.hasComp = true
		c.rawField = opts.Compensation.RawField
		c.width++
	}

	for _, s := range opts.Sinks {
		if s == nil {
			return nil, errors.New("nil sink")
		}
	}
	for _, d := range opts.Displays {
		if d == nil {
			return nil, errors.New("nil display")
		}
	}
	return c, nil
}

func (c *Controller) State() State { return State(c.state.Load()) }

// Ticks reports how many ticks have completed.
func (c *Controller) Ticks() uint64 { return c.ticks.Load() }

// Run loops until ctx is cancelled, MaxTicks is reached or a provider or
// sink fails. Cancellation is honoured during the inter-tick sleep, or when
// a blocking provider/sink call returns the context's error. Sinks and
// displays are released exactly once on every exit path.
func (c *Controller) Run(ctx context.Context) (err error) {
	if !c.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return ErrAlreadyRunning
	}
	c.obs.LogInfo("sampler_started",
		ports.Field{Key: "interval", Value: c.opts.Interval},
		ports.Field{Key: "providers", Value: len(c.opts.Providers)},
		ports.Field{Key: "sinks", Value: len(c.opts.Sinks)},
		ports.Field{Key: "compensation", Value: c.hasComp})

	cancelled := false
	defer func() {
		c.state.Store(int32(StateShuttingDown))
		if cerr := c.release(); cerr != nil {
			if cancelled {
				c.obs.LogError("shutdown_release_failed", cerr)
			} else {
				err = errors.Join(err, cerr)
			}
		}
		c.state.Store(int32(StateStopped))
		c.obs.LogInfo("sampler_stopped", ports.Field{Key: "ticks", Value: c.ticks.Load()})
	}()

	if c.hasComp {
		if perr := c.primeWindow(ctx); perr != nil {
			if ctx.Err() != nil && errors.Is(perr, ctx.Err()) {
				cancelled = true
				return nil
			}
			c.obs.LogCritical("cpu_prime_failed", perr)
			return perr
		}
	}

	for {
		if terr := c.tick(ctx); terr != nil {
			if ctx.Err() != nil && errors.Is(terr, ctx.Err()) {
				cancelled = true
				return nil
			}
			c.obs.LogCritical("tick_failed", terr, ports.Field{Key: "tick", Value: c.ticks.Load() + 1})
			return terr
		}
		n := c.ticks.Add(1)
		if c.opts.MaxTicks > 0 && n >= uint64(c.opts.MaxTicks) {
			return nil
		}
		if !sleep(ctx, c.opts.Interval) {
			cancelled = true
			return nil
		}
	}
}

// primeWindow fills the CPU window from one read taken before the first tick.
func (c *Controller) primeWindow(ctx context.Context) error {
	cpu, err := c.opts.CPU.ReadCPUTemperature(ctx)
	if err != nil {
		c.obs.IncCounter("enviro_provider_errors_total", 1)
		return &ports.ProviderError{Provider: "cpu", Err: err}
	}
	c.window.seed(cpu)
	return nil
}

func (c *Controller) tick(ctx context.Context) error {
	start := time.Now()
	fields := make([]domain.Field, 0, c.width)

	for i, p := range c.opts.Providers {
		vals, err := p.Sample(ctx)
		if err != nil {
			c.obs.IncCounter("enviro_provider_errors_total", 1)
			return &ports.ProviderError{Provider: p.Name(), Err: err}
		}
		fields, err = appendDeclared(fields, c.declared[i], vals)
		if err != nil {
			c.obs.IncCounter("enviro_provider_errors_total", 1)
			return &ports.ProviderError{Provider: p.Name(), Err: err}
		}
	}

	if c.hasComp {
		cpu, err := c.opts.CPU.ReadCPUTemperature(ctx)
		if err != nil {
			c.obs.IncCounter("enviro_provider_errors_total", 1)
			return &ports.ProviderError{Provider: "cpu", Err: err}
		}
		c.window.push(cpu)
		raw := valueOf(fields, c.rawField)
		fields = append(fields, domain.Field{
			Name:  c.opts.Compensation.OutputField,
			Value: CompensatedTemperature(raw, c.window.mean(), c.opts.Compensation.Factor),
		})
	}

	reading := domain.NewReading(c.now(), fields)
	if reading.Timestamp.Before(c.lastTS) {
		reading.Timestamp = c.lastTS
	}
	c.lastTS = reading.Timestamp

	for _, s := range c.opts.Sinks {
		if err := s.Append(ctx, reading); err != nil {
			c.obs.IncCounter("enviro_sink_errors_total", 1)
			return &ports.SinkError{Sink: s.Name(), Op: "append", Err: err}
		}
	}

	if len(c.opts.Displays) > 0 {
		if line, ok := c.rot.pick(Messages(reading)); ok {
			for _, d := range c.opts.Displays {
				if err := d.Render(ctx, line); err != nil {
					c.obs.IncCounter("enviro_sink_errors_total", 1)
					return &ports.SinkError{Sink: d.Name(), Op: "render", Err: err}
				}
			}
		}
	}

	c.obs.ObserveReading(reading)
	c.obs.IncCounter("enviro_ticks_total", 1)
	c.obs.ObserveLatency("enviro_tick_duration_seconds", time.Since(start).Seconds())
	return nil
}

// release powers displays off first, then closes sinks in reverse order.
func (c *Controller) release() error {
	var errs []error
	for _, d := range c.opts.Displays {
		if err := d.PowerOff(); err != nil {
			errs = append(errs, &ports.SinkError{Sink: d.Name(), Op: "power_off", Err: err})
		}
	}
	for i := len(c.opts.Sinks) - 1; i >= 0; i-- {
		s := c.opts.Sinks[i]
		if err := s.Close(); err != nil {
			errs = append(errs, &ports.SinkError{Sink: s.Name(), Op: "close", Err: err})
		}
	}
	return errors.Join(errs...)
}

func appendDeclared(dst []domain.Field, declared []string, vals map[string]float64) ([]domain.Field, error) {
	if len(vals) != len(declared) {
		for name := range vals {
			if !contains(declared, name) {
				return dst, fmt.Errorf("%w: %s", ports.ErrUnexpectedField, name)
			}
		}
	}
	for _, name := range declared {
		v, ok := vals[name]
		if !ok {
			return dst, fmt.Errorf("%w: %s", ports.ErrMissingField, name)
		}
		dst = append(dst, domain.Field{Name: name, Value: v})
	}
	return dst, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func valueOf(fields []domain.Field, name string) float64 {
	for _, f := range fields {
		if f.Name == name {
			return f.Value
		}
	}
	return 0
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

type nopObs struct{}

func (nopObs) LogInfo(string, ...ports.Field)            {}
func (nopObs) LogError(string, error, ...ports.Field)    {}
func (nopObs) LogCritical(string, error, ...ports.Field) {}
func (nopObs) IncCounter(string, float64)                {}
func (nopObs) ObserveLatency(string, float64)            {}
func (nopObs) SetGauge(string, float64)                  {}
func (nopObs) ObserveReading(domain.Reading)             {}
