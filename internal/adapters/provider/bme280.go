package provider

import (
	"context"
	"errors"
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/bmxx80"
	"periph.io/x/host/v3"

	"github.com/jersme/enviro/internal/ports"
)

type BME280Config struct {
	Bus     string `yaml:"bus"`
	Address uint16 `yaml:"address"`
}

func (c *BME280Config) ApplyDefaults() {
	if c.Bus == "" {
		c.Bus = "/dev/i2c-1"
	}
	if c.Address == 0 {
		c.Address = 0x76
	}
}

// envSensor is the part of *bmxx80.Dev used here.
type envSensor interface {
	Sense(e *physic.Env) error
	Halt() error
}

// BME280 reports temperature (degrees C), pressure (hPa) and relative
// humidity (%) from a Bosch BME280 on I2C.
type BME280 struct {
	dev envSensor
	bus i2c.BusCloser
}

// OpenBME280 initialises the periph host drivers and opens the device.
func OpenBME280(cfg BME280Config) (*BME280, error) {
	cfg.ApplyDefaults()
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	bus, err := i2creg.Open(cfg.Bus)
	if err != nil {
		return nil, fmt.Errorf("open i2c %s: %w", cfg.Bus, err)
	}
	dev, err := bmxx80.NewI2C(bus, cfg.Address, &bmxx80.DefaultOpts)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("bme280 at %#x: %w", cfg.Address, err)
	}
	return &BME280{dev: dev, bus: bus}, nil
}

func (b *BME280) Name() string { return "bme280" }

func (b *BME280) Fields() []string {
	return []string{"temperature", "pressure", "humidity"}
}

func (b *BME280) Sample(ctx context.Context) (map[string]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var env physic.Env
	if err := b.dev.Sense(&env); err != nil {
		return nil, err
	}
	return map[string]float64{
		"temperature": env.Temperature.Celsius(),
		"pressure":    float64(env.Pressure) / float64(100*physic.Pascal),
		"humidity":    float64(env.Humidity) / float64(physic.PercentRH),
	}, nil
}

func (b *BME280) Close() error {
	err := b.dev.Halt()
	if b.bus != nil {
		err = errors.Join(err, b.bus.Close())
	}
	return err
}

var _ ports.Provider = (*BME280)(nil)
