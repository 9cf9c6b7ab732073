package ports

import "github.com/jersme/enviro/internal/domain"

type Observability interface {
	LogInfo(msg string, fields ...Field)
	LogError(msg string, err error, fields ...Field)
	LogCritical(msg string, err error, fields ...Field)

	IncCounter(name string, v float64)
	ObserveLatency(name string, seconds float64)

	SetGauge(name string, v float64)

	ObserveReading(r domain.Reading)
}

type Field struct {
	Key   string
	Value any
}
