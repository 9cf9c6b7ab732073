package observability

import (
	"bytes"
	"errors"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/jersme/enviro/internal/domain"
	"github.com/jersme/enviro/internal/ports"
)

func TestPromObsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs := NewPromObsWith(reg, log.New(&bytes.Buffer{}, "", 0))

	obs.IncCounter("enviro_ticks_total", 3)
	if got := testutil.ToFloat64(obs.counters["enviro_ticks_total"]); got != 3 {
		t.Fatalf("expected tick counter 3, got %f", got)
	}

	obs.IncCounter("enviro_sink_errors_total", 1)
	if got := testutil.ToFloat64(obs.counters["enviro_sink_errors_total"]); got != 1 {
		t.Fatalf("expected sink error counter 1, got %f", got)
	}

	obs.IncCounter("unknown_metric", 1)

	obs.ObserveLatency("enviro_tick_duration_seconds", 0.02)
	hCollector := obs.histos["enviro_tick_duration_seconds"].(prometheus.Collector)
	if samples := testutil.CollectAndCount(hCollector); samples != 1 {
		t.Fatalf("expected latency histogram to record 1 sample, got %d", samples)
	}

	ts := time.Unix(1700000000, 0)
	obs.ObserveReading(domain.NewReading(ts, []domain.Field{
		{Name: "lux", Value: 120.5},
		{Name: "humidity", Value: 41},
	}))
	if got := testutil.ToFloat64(obs.readings.WithLabelValues("lux")); got != 120.5 {
		t.Fatalf("expected lux gauge 120.5, got %f", got)
	}
	if got := testutil.ToFloat64(obs.gauges["enviro_last_reading_timestamp_seconds"]); got != 1700000000 {
		t.Fatalf("expected last reading gauge, got %f", got)
	}
}

func TestPromObsLogsFields(t *testing.T) {
	var buf bytes.Buffer
	obs := NewPromObsWith(prometheus.NewRegistry(), log.New(&buf, "", 0))

	obs.LogInfo("sampler_started", ports.Field{Key: "sinks", Value: 2})
	obs.LogError("append_failed", errors.New("locked"), ports.Field{Key: "sink", Value: "sqlite"})
	obs.LogError("ignored", nil)

	out := buf.String()
	if !strings.Contains(out, "INFO: sampler_started sinks=2") {
		t.Fatalf("missing info line in %q", out)
	}
	if !strings.Contains(out, "ERROR: append_failed: locked sink=sqlite") {
		t.Fatalf("missing error line in %q", out)
	}
	if strings.Contains(out, "ignored") {
		t.Fatalf("nil errors must not be logged")
	}
}
