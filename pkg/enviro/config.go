package enviro

import (
	"github.com/jersme/enviro/internal/adapters/provider"
	"github.com/jersme/enviro/internal/app/config"
)

// Config re-exports the root configuration struct so downstream projects can
// construct or modify it programmatically.
type Config = config.Config

type (
	SamplerConfig      = config.SamplerConfig
	CompensationConfig = config.CompensationConfig
	// ProviderConfig selects one reading provider by type.
	ProviderConfig = config.ProviderConfig
	SinksConfig    = config.SinksConfig
	DisplaysConfig = config.DisplaysConfig
	CameraConfig   = config.CameraConfig
	MetricsConfig  = config.MetricsConfig

	SysfsConfig     = provider.SysfsConfig
	SysfsField      = provider.SysfsField
	BME280Config    = provider.BME280Config
	OPCUAConfig     = provider.OPCUAConfig
	OPCUANodeField  = provider.OPCUANodeField
	SimulatedConfig = provider.SimulatedConfig
	SimulatedField  = provider.SimulatedField
)

// LoadConfig loads YAML from disk using the internal config reader.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// ParseConfig decodes, defaults and validates an in-memory YAML document.
func ParseConfig(raw []byte) (*Config, error) {
	return config.Parse(raw)
}
