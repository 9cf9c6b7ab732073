package enviro

import (
	"github.com/jersme/enviro/internal/app/sampler"
	"github.com/jersme/enviro/internal/domain"
	"github.com/jersme/enviro/internal/ports"
)

// Reading is one timestamped set of named values produced per tick.
type Reading = domain.Reading

// Field is one named value inside a Reading.
type Field = domain.Field

// Provider produces a fixed set of named values on demand (sensor, bus, simulator).
type Provider = ports.Provider

// CPUTemperatureSource reports the host SoC temperature used for compensation.
type CPUTemperatureSource = ports.CPUTemperatureSource

// Sink persists or publishes every Reading.
type Sink = ports.Sink

// Display shows one formatted line per tick.
type Display = ports.Display

// Observability emits logs and metrics about ticks, errors and captures.
type Observability = ports.Observability

// LogField is a structured log field used by Observability implementations.
type LogField = ports.Field

type (
	ProviderError = ports.ProviderError
	SinkError     = ports.SinkError
	State         = sampler.State
)

const (
	StateIdle         = sampler.StateIdle
	StateRunning      = sampler.StateRunning
	StateShuttingDown = sampler.StateShuttingDown
	StateStopped      = sampler.StateStopped
)

// NewReading builds a Reading with a second-resolution UTC timestamp.
var NewReading = domain.NewReading
