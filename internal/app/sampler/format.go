package sampler

import (
	"fmt"

	"github.com/jersme/enviro/internal/domain"
)

type label struct {
	name string
	unit string
}

var fieldLabels = map[string]label{
	"oxidising":               {"Ox", ""},
	"reducing":                {"Red", ""},
	"nh3":                     {"NH3", ""},
	"lux":                     {"Lux", ""},
	"proximity":               {"Prox", ""},
	"temperature":             {"Raw temp", "*C"},
	"compensated_temperature": {"Temp", "*C"},
	"pressure":                {"Pressure", "hPa"},
	"humidity":                {"Humidity", "%"},
	"pm1":                     {"PM1", ""},
	"pm2_5":                   {"PM2.5", ""},
	"pm10":                    {"PM10", ""},
}

// FormatField renders one metric the way the LCD shows it, e.g. "Temp: 21.50 *C".
func FormatField(f domain.Field) string {
	l, ok := fieldLabels[f.Name]
	if !ok {
		l = label{name: f.Name}
	}
	if l.unit == "" {
		return fmt.Sprintf("%s: %.2f", l.name, f.Value)
	}
	return fmt.Sprintf("%s: %.2f %s", l.name, f.Value, l.unit)
}

// Messages formats every field of r in Reading order.
func Messages(r domain.Reading) []string {
	out := make([]string, len(r.Fields))
	for i, f := range r.Fields {
		out[i] = FormatField(f)
	}
	return out
}
