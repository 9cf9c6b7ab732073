package enviro

import (
	"context"
	"errors"
	"time"
)

// Flow spells a rig out in the order a tick runs: Conf picks the config,
// StreamIN lists what is polled, StreamOUT lists where each Reading goes.
//
//	flow, _ := enviro.Conf("enviro.yaml", enviro.Every(10*time.Second))
//	err := flow.StreamIN(enviro.StreamInProvider(gas)).
//		Run(ctx, enviro.StreamOutCallback("log", logReading))
type Flow struct {
	cfg  *Config
	opts []MonitorOption
}

type (
	// FlowOption adjusts the loaded config or adds monitor options.
	FlowOption func(*Flow)
	// StreamInOption replaces a polled source: providers, CPU temperature.
	StreamInOption func(*Flow)
	// StreamOutOption replaces a Reading destination: sinks, displays.
	StreamOutOption func(*Flow)
)

var errNoFlow = errors.New("enviro: flow not configured")

func Conf(path string, opts ...FlowOption) (*Flow, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return ConfFromConfig(cfg, opts...)
}

// ConfFromConfig starts a Flow from a Config built in code.
func ConfFromConfig(cfg *Config, opts ...FlowOption) (*Flow, error) {
	if cfg == nil {
		return nil, errors.New("enviro: config is required")
	}
	f := &Flow{cfg: cfg}
	apply(f, opts)
	return f, nil
}

// Config exposes the loaded config for edits before StreamOUT.
func (f *Flow) Config() *Config {
	if f == nil {
		return nil
	}
	return f.cfg
}

func (f *Flow) Options(opts ...MonitorOption) *Flow {
	if f != nil {
		f.add(opts...)
	}
	return f
}

func (f *Flow) StreamIN(opts ...StreamInOption) *Flow {
	if f != nil {
		apply(f, opts)
	}
	return f
}

// StreamOUT applies the destination options and builds the Monitor, which
// opens every configured sink.
func (f *Flow) StreamOUT(opts ...StreamOutOption) (*Monitor, error) {
	if f == nil || f.cfg == nil {
		return nil, errNoFlow
	}
	apply(f, opts)
	return NewMonitor(f.cfg, f.opts...)
}

// Run builds the Monitor and samples until ctx ends or max_ticks is reached.
func (f *Flow) Run(ctx context.Context, opts ...StreamOutOption) error {
	m, err := f.StreamOUT(opts...)
	if err != nil {
		return err
	}
	return m.Run(ctx)
}

// Every overrides sampler.tick_interval; 0 runs ticks back to back.
func Every(d time.Duration) FlowOption {
	return func(f *Flow) {
		if d >= 0 {
			f.cfg.Sampler.TickInterval = &d
		}
	}
}

// Ticks overrides sampler.max_ticks; 0 keeps sampling until cancelled.
func Ticks(n int) FlowOption {
	return func(f *Flow) {
		if n >= 0 {
			f.cfg.Sampler.MaxTicks = n
		}
	}
}

func WithFlowOptions(opts ...MonitorOption) FlowOption {
	return func(f *Flow) { f.add(opts...) }
}

// StreamInProvider polls p instead of the configured providers. Repeat it to
// poll several, in call order.
func StreamInProvider(p Provider) StreamInOption {
	return func(f *Flow) {
		if p != nil {
			f.add(WithProvider(p))
		}
	}
}

// StreamInCPU feeds the compensation window from src instead of the
// thermal zone file.
func StreamInCPU(src CPUTemperatureSource) StreamInOption {
	return func(f *Flow) {
		if src != nil {
			f.add(WithCPUSource(src))
		}
	}
}

func StreamInObservability(obs Observability) StreamInOption {
	return func(f *Flow) {
		if obs != nil {
			f.add(WithObservability(obs))
		}
	}
}

// StreamOutSink persists Readings to s instead of the configured sinks.
func StreamOutSink(s Sink) StreamOutOption {
	return func(f *Flow) {
		if s != nil {
			f.add(WithSink(s))
		}
	}
}

// StreamOutDisplay rotates the formatted field lines onto d.
func StreamOutDisplay(d Display) StreamOutOption {
	return func(f *Flow) {
		if d != nil {
			f.add(WithDisplay(d))
		}
	}
}

func StreamOutObservability(obs Observability) StreamOutOption {
	return func(f *Flow) {
		if obs != nil {
			f.add(WithObservability(obs))
		}
	}
}

// StreamOutCallback hands every Reading to fn; an error from fn stops the
// run like any failing sink.
func StreamOutCallback(name string, fn ReadingHandler) StreamOutOption {
	return func(f *Flow) { f.add(WithSink(NewCallbackSink(name, fn))) }
}

func apply[O ~func(*Flow)](f *Flow, opts []O) {
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
}

func (f *Flow) add(opts ...MonitorOption) {
	for _, opt := range opts {
		if opt != nil {
			f.opts = append(f.opts, opt)
		}
	}
}
