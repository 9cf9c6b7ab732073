package provider

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/jersme/enviro/internal/ports"
)

// SysfsField maps a Reading field to a numeric file such as an IIO
// in_*_raw channel or a hwmon input.
type SysfsField struct {
	Name   string  `yaml:"name"`
	Path   string  `yaml:"path"`
	Scale  float64 `yaml:"scale"`
	Offset float64 `yaml:"offset"`
}

type SysfsConfig struct {
	Name   string       `yaml:"name"`
	Fields []SysfsField `yaml:"fields"`
}

func (c *SysfsConfig) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "sysfs"
	}
	for i := range c.Fields {
		if c.Fields[i].Scale == 0 {
			c.Fields[i].Scale = 1
		}
	}
}

func (c *SysfsConfig) Validate() error {
	if len(c.Fields) == 0 {
		return errors.New("at least one field must be configured")
	}
	seen := make(map[string]struct{}, len(c.Fields))
	for _, f := range c.Fields {
		if f.Name == "" || f.Path == "" {
			return fmt.Errorf("field %q: name and path are required", f.Name)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("duplicate field %q", f.Name)
		}
		seen[f.Name] = struct{}{}
	}
	return nil
}

// Sysfs reads each configured file on every Sample.
type Sysfs struct {
	cfg   SysfsConfig
	names []string
}

func NewSysfs(cfg SysfsConfig) (*Sysfs, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	names := make([]string, len(cfg.Fields))
	for i, f := range cfg.Fields {
		names[i] = f.Name
	}
	return &Sysfs{cfg: cfg, names: names}, nil
}

func (s *Sysfs) Name() string     { return s.cfg.Name }
func (s *Sysfs) Fields() []string { return append([]string(nil), s.names...) }

func (s *Sysfs) Sample(ctx context.Context) (map[string]float64, error) {
	out := make(map[string]float64, len(s.cfg.Fields))
	for _, f := range s.cfg.Fields {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v, err := readNumber(f.Path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Name, err)
		}
		out[f.Name] = v*f.Scale + f.Offset
	}
	return out, nil
}

func readNumber(path string) (float64, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(string(b)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", path, err)
	}
	return v, nil
}

var _ ports.Provider = (*Sysfs)(nil)
