package observability

import (
	"fmt"
	"log"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jersme/enviro/internal/domain"
	"github.com/jersme/enviro/internal/ports"
)

type PromObs struct {
	logger   *log.Logger
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	histos   map[string]prometheus.Observer
	readings *prometheus.GaugeVec
}

// NewPromObsWith registers the enviro metrics on reg and logs through logger
// (the standard logger when nil).
func NewPromObsWith(reg prometheus.Registerer, logger *log.Logger) *PromObs {
	if logger == nil {
		logger = log.Default()
	}

	ticks := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "enviro_ticks_total",
		Help: "Sampling ticks completed (read, stored and displayed).",
	})
	providerErrs := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "enviro_provider_errors_total",
		Help: "Provider or CPU temperature reads that failed.",
	})
	sinkErrs := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "enviro_sink_errors_total",
		Help: "Sink appends or display renders that failed.",
	})
	captures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "enviro_captures_total",
		Help: "Camera stills written to disk.",
	})
	captureErrs := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "enviro_capture_errors_total",
		Help: "Camera captures that failed and were skipped.",
	})
	lastReading := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "enviro_last_reading_timestamp_seconds",
		Help: "Unix time of the most recent reading.",
	})
	walSize := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "enviro_wal_size_bytes",
		Help: "Bytes held by the reading WAL.",
	})
	storeLen := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "enviro_memory_store_len",
		Help: "Readings held by the in-memory store.",
	})
	tickLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "enviro_tick_duration_seconds",
		Help:    "Time spent reading providers and writing sinks in one tick.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
	})
	captureLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "enviro_capture_duration_seconds",
		Help:    "Time to fetch and store one camera still.",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	})
	readings := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "enviro_reading_value",
		Help: "Latest value of each reading field.",
	}, []string{"field"})

	reg.MustRegister(ticks, providerErrs, sinkErrs, captures, captureErrs, lastReading, walSize, storeLen, tickLatency, captureLatency, readings)

	return &PromObs{
		logger: logger,
		counters: map[string]prometheus.Counter{
			"enviro_ticks_total":           ticks,
			"enviro_provider_errors_total": providerErrs,
			"enviro_sink_errors_total":     sinkErrs,
			"enviro_captures_total":        captures,
			"enviro_capture_errors_total":  captureErrs,
		},
		gauges: map[string]prometheus.Gauge{
			"enviro_last_reading_timestamp_seconds": lastReading,
			"enviro_wal_size_bytes":                 walSize,
			"enviro_memory_store_len":               storeLen,
		},
		histos: map[string]prometheus.Observer{
			"enviro_tick_duration_seconds":    tickLatency,
			"enviro_capture_duration_seconds": captureLatency,
		},
		readings: readings,
	}
}

func (p *PromObs) LogInfo(msg string, fields ...ports.Field) {
	p.logger.Printf("INFO: %s%s", msg, formatFields(fields))
}

func (p *PromObs) LogError(msg string, err error, fields ...ports.Field) {
	if err != nil {
		p.logger.Printf("ERROR: %s: %v%s", msg, err, formatFields(fields))
	}
}

func (p *PromObs) LogCritical(msg string, err error, fields ...ports.Field) {
	if err != nil {
		p.logger.Printf("CRITICAL: %s: %v%s", msg, err, formatFields(fields))
	}
}

func (p *PromObs) IncCounter(name string, v float64) {
	if c, ok := p.counters[name]; ok {
		c.Add(v)
	}
}

func (p *PromObs) ObserveLatency(name string, seconds float64) {
	if h, ok := p.histos[name]; ok {
		h.Observe(seconds)
	}
}

func (p *PromObs) SetGauge(name string, v float64) {
	if g, ok := p.gauges[name]; ok {
		g.Set(v)
	}
}

func (p *PromObs) ObserveReading(r domain.Reading) {
	for _, f := range r.Fields {
		p.readings.WithLabelValues(f.Name).Set(f.Value)
	}
	p.SetGauge("enviro_last_reading_timestamp_seconds", float64(r.Timestamp.Unix()))
}

func formatFields(fields []ports.Field) string {
	if len(fields) == 0 {
		return ""
	}
	var b strings.Builder
	for _, f := range fields {
		fmt.Fprintf(&b, " %s=%v", f.Key, f.Value)
	}
	return b.String()
}

var _ ports.Observability = (*PromObs)(nil)
