package provider

import (
	"context"

	"github.com/jersme/enviro/internal/ports"
)

const DefaultThermalZone = "/sys/class/thermal/thermal_zone0/temp"

// ThermalZone reads the SoC temperature from a Linux thermal zone, which
// reports milli-degrees Celsius.
type ThermalZone struct {
	Path string
}

func (z ThermalZone) ReadCPUTemperature(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	path := z.Path
	if path == "" {
		path = DefaultThermalZone
	}
	v, err := readNumber(path)
	if err != nil {
		return 0, err
	}
	return v / 1000, nil
}

var _ ports.CPUTemperatureSource = ThermalZone{}
