package provider

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"

	"github.com/jersme/enviro/internal/ports"
)

// SimulatedField describes one random-walk channel.
type SimulatedField struct {
	Name  string  `yaml:"name"`
	Start float64 `yaml:"start"`
	Min   float64 `yaml:"min"`
	Max   float64 `yaml:"max"`
	Step  float64 `yaml:"step"`
}

type SimulatedConfig struct {
	Name   string           `yaml:"name"`
	Seed   int64            `yaml:"seed"`
	Fields []SimulatedField `yaml:"fields"`
}

func (c *SimulatedConfig) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "simulated"
	}
	if c.Seed == 0 {
		c.Seed = 1
	}
	for i := range c.Fields {
		f := &c.Fields[i]
		if f.Step == 0 {
			f.Step = 0.5
		}
		if f.Min == 0 && f.Max == 0 {
			f.Min, f.Max = f.Start-10, f.Start+10
		}
	}
}

func (c *SimulatedConfig) Validate() error {
	if len(c.Fields) == 0 {
		return errors.New("at least one field must be configured")
	}
	for _, f := range c.Fields {
		if f.Name == "" {
			return errors.New("field name is required")
		}
		if f.Min > f.Max {
			return fmt.Errorf("field %q: min > max", f.Name)
		}
	}
	return nil
}

// Simulated produces a bounded random walk per field. The same seed always
// yields the same sequence.
type Simulated struct {
	cfg   SimulatedConfig
	mu    sync.Mutex
	rng   *rand.Rand
	state []float64
}

func NewSimulated(cfg SimulatedConfig) (*Simulated, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	state := make([]float64, len(cfg.Fields))
	for i, f := range cfg.Fields {
		state[i] = clamp(f.Start, f.Min, f.Max)
	}
	return &Simulated{
		cfg:   cfg,
		rng:   rand.New(rand.NewSource(cfg.Seed)),
		state: state,
	}, nil
}

func (s *Simulated) Name() string { return s.cfg.Name }

func (s *Simulated) Fields() []string {
	names := make([]string, len(s.cfg.Fields))
	for i, f := range s.cfg.Fields {
		names[i] = f.Name
	}
	return names
}

func (s *Simulated) Sample(ctx context.Context) (map[string]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]float64, len(s.cfg.Fields))
	for i, f := range s.cfg.Fields {
		delta := (s.rng.Float64()*2 - 1) * f.Step
		s.state[i] = clamp(s.state[i]+delta, f.Min, f.Max)
		out[f.Name] = s.state[i]
	}
	return out, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

var _ ports.Provider = (*Simulated)(nil)
