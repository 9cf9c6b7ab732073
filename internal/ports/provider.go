package ports

import "context"

// Provider produces one set of metric values per call. Fields lists every
// name Sample returns, in the order they should appear in a Reading.
type Provider interface {
	Name() string
	Fields() []string
	Sample(ctx context.Context) (map[string]float64, error)
}

// CPUTemperatureSource reports the host SoC temperature in degrees Celsius.
type CPUTemperatureSource interface {
	ReadCPUTemperature(ctx context.Context) (float64, error)
}
