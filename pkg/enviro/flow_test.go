package enviro

import (
	"context"
	"testing"
)

func TestConfFromConfigAndStreamBuilder(t *testing.T) {
	cfg := &Config{}
	cfg.Sampler.MaxTicks = 1
	cfg.Sampler.Compensation.Enabled = off()

	flow, err := ConfFromConfig(cfg)
	if err != nil {
		t.Fatalf("ConfFromConfig returned error: %v", err)
	}
	if flow.Config() != cfg {
		t.Fatalf("expected Config to be returned verbatim")
	}

	prov := &stubProvider{name: "pm", fields: []string{"pm1", "pm2_5", "pm10"}, vals: map[string]float64{"pm1": 1, "pm2_5": 2, "pm10": 3}}
	disp := &stubDisplay{}

	m, err := flow.
		StreamIN(
			StreamInProvider(prov),
			StreamInObservability(&stubObservability{}),
		).
		StreamOUT(
			StreamOutCallback("cb", func(Reading) error { return nil }),
			StreamOutDisplay(disp),
		)
	if err != nil {
		t.Fatalf("StreamOUT returned error: %v", err)
	}
	if len(m.providers) != 1 || m.providers[0] != prov {
		t.Fatalf("expected custom provider to be wired")
	}
	if len(m.sinks) != 1 || m.sinks[0].Name() != "cb" {
		t.Fatalf("expected callback sink to be wired, got %v", m.sinks)
	}
	if len(m.displays) != 1 || m.displays[0] != disp {
		t.Fatalf("expected custom display to be wired")
	}
}

func TestFlowRunUsesStreamOutOptions(t *testing.T) {
	cfg := &Config{}
	cfg.Sampler.MaxTicks = 2
	cfg.Sampler.Compensation.Enabled = off()

	flow, err := ConfFromConfig(cfg)
	if err != nil {
		t.Fatalf("ConfFromConfig returned error: %v", err)
	}

	var n int
	err = flow.StreamIN(
		StreamInProvider(&stubProvider{name: "light", fields: []string{"lux"}, vals: map[string]float64{"lux": 9}}),
	).Run(context.Background(),
		StreamOutCallback("count", func(Reading) error { n++; return nil }),
		StreamOutObservability(&stubObservability{}),
	)
	if err != nil {
		t.Fatalf("Run returned unexpected error: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 readings, got %d", n)
	}
}

func TestConfFromConfigNil(t *testing.T) {
	if _, err := ConfFromConfig(nil); err == nil {
		t.Fatalf("expected error for nil config")
	}
	var f *Flow
	if _, err := f.StreamOUT(); err == nil {
		t.Fatalf("expected error for nil flow")
	}
}

func TestFlowOptionsOverrideSamplerConfig(t *testing.T) {
	cfg := &Config{}
	cfg.Sampler.MaxTicks = 10
	cfg.Sampler.Compensation.Enabled = off()

	flow, err := ConfFromConfig(cfg, Every(0), Ticks(3))
	if err != nil {
		t.Fatalf("ConfFromConfig returned error: %v", err)
	}
	if cfg.Sampler.Interval() != 0 || cfg.Sampler.TickInterval == nil {
		t.Fatalf("expected explicit zero interval, got %v", cfg.Sampler.TickInterval)
	}
	if cfg.Sampler.MaxTicks != 3 {
		t.Fatalf("expected max ticks 3, got %d", cfg.Sampler.MaxTicks)
	}

	var n int
	err = flow.StreamIN(
		StreamInProvider(&stubProvider{name: "gas", fields: []string{"nh3"}, vals: map[string]float64{"nh3": 0.5}}),
	).Run(context.Background(),
		StreamOutCallback("count", func(Reading) error { n++; return nil }),
		StreamOutObservability(&stubObservability{}),
	)
	if err != nil {
		t.Fatalf("Run returned unexpected error: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 readings, got %d", n)
	}
}
