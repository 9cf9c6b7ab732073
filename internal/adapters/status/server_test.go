package status

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jersme/enviro/internal/adapters/display"
	"github.com/jersme/enviro/internal/adapters/queue"
	"github.com/jersme/enviro/internal/domain"
)

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestStatusEndpoints(t *testing.T) {
	reg := prometheus.NewRegistry()
	ticks := prometheus.NewCounter(prometheus.CounterOpts{Name: "enviro_ticks_total", Help: "ticks"})
	reg.MustRegister(ticks)
	ticks.Add(3)

	store := queue.NewMemStore(4, true)
	board := display.NewBoard()

	srv := New(":0", Sources{
		Metrics: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Latest:  store,
		Board:   board,
		State:   func() string { return "running" },
		Session: "abc",
	})
	h := srv.Handler()

	if rec := get(t, h, "/healthz"); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"abc"`) {
		t.Fatalf("healthz: %d %s", rec.Code, rec.Body.String())
	}
	if rec := get(t, h, "/metrics"); !strings.Contains(rec.Body.String(), "enviro_ticks_total 3") {
		t.Fatalf("metrics missing counter: %s", rec.Body.String())
	}
	if rec := get(t, h, "/state"); !strings.Contains(rec.Body.String(), `"running"`) {
		t.Fatalf("state: %s", rec.Body.String())
	}

	if rec := get(t, h, "/readings/latest"); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before first reading, got %d", rec.Code)
	}
	ts := time.Date(2024, 1, 1, 0, 0, 30, 0, time.UTC)
	store.Append(context.Background(), domain.NewReading(ts, []domain.Field{{Name: "lux", Value: 12}}))
	rec := get(t, h, "/readings/latest")
	var got domain.Reading
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode latest: %v (%s)", err, rec.Body.String())
	}
	if v, _ := got.Get("lux"); v != 12 || !got.Timestamp.Equal(ts) {
		t.Fatalf("unexpected latest %+v", got)
	}

	board.Render(context.Background(), "Light: 12.00")
	var st display.BoardState
	if err := json.Unmarshal(get(t, h, "/display").Body.Bytes(), &st); err != nil {
		t.Fatalf("decode display: %v", err)
	}
	if st.Line != "Light: 12.00" || !st.On {
		t.Fatalf("unexpected board state %+v", st)
	}
}

func TestStatusWithoutSources(t *testing.T) {
	h := New(":0", Sources{}).Handler()
	for _, path := range []string{"/metrics", "/state", "/readings/latest", "/display"} {
		if rec := get(t, h, path); rec.Code != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", path, rec.Code)
		}
	}
}
