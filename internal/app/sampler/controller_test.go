package sampler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jersme/enviro/internal/domain"
	"github.com/jersme/enviro/internal/ports"
)

func gasProvider() *stubProvider {
	return &stubProvider{
		name:   "gas",
		fields: []string{"oxidising", "reducing", "nh3"},
		vals:   map[string]float64{"oxidising": 1.23, "reducing": 4.56, "nh3": 0.01},
	}
}

func TestRunThreeTicksIntoMemorySink(t *testing.T) {
	sink := &memSink{}
	ctrl, err := New(Options{
		Interval:  0,
		MaxTicks:  3,
		Providers: []ports.Provider{gasProvider()},
		Sinks:     []ports.Sink{sink},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := ctrl.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(sink.readings) != 3 {
		t.Fatalf("expected 3 readings, got %d", len(sink.readings))
	}
	for i, r := range sink.readings {
		names := r.Names()
		if len(names) != 3 || names[0] != "oxidising" || names[1] != "reducing" || names[2] != "nh3" {
			t.Fatalf("reading %d: unexpected field set %v", i, names)
		}
		if v, _ := r.Get("reducing"); v != 4.56 {
			t.Fatalf("reading %d: expected reducing 4.56, got %v", i, v)
		}
		if i > 0 && r.Timestamp.Before(sink.readings[i-1].Timestamp) {
			t.Fatalf("timestamps went backwards: %s then %s", sink.readings[i-1].Timestamp, r.Timestamp)
		}
		if r.Timestamp.Location() != time.UTC || r.Timestamp.Nanosecond() != 0 {
			t.Fatalf("timestamp not second-resolution UTC: %s", r.Timestamp)
		}
	}
	if sink.closes != 1 {
		t.Fatalf("expected sink closed once, got %d", sink.closes)
	}
	if ctrl.State() != StateStopped {
		t.Fatalf("expected stopped state, got %s", ctrl.State())
	}
	if ctrl.Ticks() != 3 {
		t.Fatalf("expected 3 ticks, got %d", ctrl.Ticks())
	}
}

func TestRunAddsCompensatedTemperature(t *testing.T) {
	env := &stubProvider{
		name:   "bme280",
		fields: []string{"temperature", "pressure", "humidity"},
		vals:   map[string]float64{"temperature": 22, "pressure": 1013.25, "humidity": 40},
	}
	cpu := &stubCPU{values: []float64{45, 45, 50}}
	sink := &memSink{}

	ctrl, err := New(Options{
		MaxTicks:  3,
		Providers: []ports.Provider{gasProvider(), env},
		Sinks:     []ports.Sink{sink},
		CPU:       cpu,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := ctrl.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	first := sink.readings[0]
	if got := first.Names(); len(got) != 7 || got[6] != "compensated_temperature" {
		t.Fatalf("unexpected field set %v", got)
	}
	comp, _ := first.Get("compensated_temperature")
	if want := CompensatedTemperature(22, 45, 2.25); comp != want {
		t.Fatalf("expected %v, got %v", want, comp)
	}

	// primed with 45, then 45, 50, 45 -> 45,45,45,50,45 mean 46
	last, _ := sink.readings[2].Get("compensated_temperature")
	if want := CompensatedTemperature(22, 46, 2.25); last != want {
		t.Fatalf("expected %v, got %v", want, last)
	}
	if cpu.calls != 4 {
		t.Fatalf("expected a priming read plus one per tick, got %d", cpu.calls)
	}
	if raw, ok := first.Get("temperature"); !ok || raw != 22 {
		t.Fatalf("expected raw temperature kept, got %v %v", raw, ok)
	}
}

func TestRunPrimesCPUWindowBeforeFirstTick(t *testing.T) {
	env := &stubProvider{
		name:   "bme280",
		fields: []string{"temperature"},
		vals:   map[string]float64{"temperature": 22},
	}
	cpu := &stubCPU{values: []float64{40, 50}}
	sink := &memSink{}

	ctrl, err := New(Options{
		MaxTicks:  1,
		Providers: []ports.Provider{env},
		Sinks:     []ports.Sink{sink},
		CPU:       cpu,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := ctrl.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// window 40,40,40,40,50 -> mean 42
	comp, _ := sink.readings[0].Get("compensated_temperature")
	if want := CompensatedTemperature(22, 42, 2.25); comp != want {
		t.Fatalf("expected %v, got %v", want, comp)
	}
	if cpu.calls != 2 {
		t.Fatalf("expected 2 cpu reads, got %d", cpu.calls)
	}
}

func TestRunFailsWhenCPUPrimingFails(t *testing.T) {
	env := &stubProvider{
		name:   "bme280",
		fields: []string{"temperature"},
		vals:   map[string]float64{"temperature": 22},
	}
	sink := &memSink{}
	ctrl, err := New(Options{
		Providers: []ports.Provider{env},
		Sinks:     []ports.Sink{sink},
		CPU:       &stubCPU{values: []float64{0}, err: errors.New("no thermal zone")},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	err = ctrl.Run(context.Background())
	var perr *ports.ProviderError
	if !errors.As(err, &perr) || perr.Provider != "cpu" {
		t.Fatalf("expected cpu ProviderError, got %v", err)
	}
	if len(sink.readings) != 0 || env.calls != 0 {
		t.Fatalf("expected no tick before priming, got %d readings", len(sink.readings))
	}
	if sink.closes != 1 {
		t.Fatalf("expected sink released once, got %d", sink.closes)
	}
}

func TestRunStopsOnCancelDuringSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// cancel while the controller sleeps after the first tick
	sink := &memSink{onAppend: func(n int) {
		if n == 1 {
			go func() {
				time.Sleep(20 * time.Millisecond)
				cancel()
			}()
		}
	}}
	other := &memSink{}
	display := &stubDisplay{}
	provider := gasProvider()

	ctrl, err := New(Options{
		Interval:  time.Hour,
		Providers: []ports.Provider{provider},
		Sinks:     []ports.Sink{sink, other},
		Displays:  []ports.Display{display},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- ctrl.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("controller did not stop after cancellation")
	}

	if provider.calls != 1 {
		t.Fatalf("expected the next tick not to start, got %d ticks", provider.calls)
	}
	if sink.closes != 1 || other.closes != 1 {
		t.Fatalf("expected each sink closed once, got %d and %d", sink.closes, other.closes)
	}
	if display.powerOffs != 1 {
		t.Fatalf("expected display powered off once, got %d", display.powerOffs)
	}
	if ctrl.State() != StateStopped {
		t.Fatalf("expected stopped, got %s", ctrl.State())
	}
}

func TestRunTreatsCancelledProviderAsShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	provider := &stubProvider{
		name:   "slow",
		fields: []string{"lux"},
		sample: func(ctx context.Context) (map[string]float64, error) {
			cancel()
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	sink := &memSink{}

	ctrl, err := New(Options{Providers: []ports.Provider{provider}, Sinks: []ports.Sink{sink}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := ctrl.Run(ctx); err != nil {
		t.Fatalf("expected nil on cancellation, got %v", err)
	}
	if sink.closes != 1 {
		t.Fatalf("expected sink closed, got %d", sink.closes)
	}
}

func TestRunProviderErrorIsFatal(t *testing.T) {
	boom := errors.New("i2c nack")
	provider := gasProvider()
	provider.failOn = 2
	provider.err = boom
	sink := &memSink{}

	ctrl, err := New(Options{Providers: []ports.Provider{provider}, Sinks: []ports.Sink{sink}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	err = ctrl.Run(context.Background())

	var pe *ports.ProviderError
	if !errors.As(err, &pe) || pe.Provider != "gas" || !errors.Is(err, boom) {
		t.Fatalf("expected ProviderError wrapping boom, got %v", err)
	}
	if len(sink.readings) != 1 {
		t.Fatalf("expected 1 reading before failure, got %d", len(sink.readings))
	}
	if sink.closes != 1 {
		t.Fatalf("expected sink closed after failure, got %d", sink.closes)
	}
}

func TestRunSinkErrorIsFatal(t *testing.T) {
	failing := &memSink{name: "sqlite", err: errors.New("database is locked")}
	after := &memSink{name: "jsonl"}

	ctrl, err := New(Options{
		Interval:  time.Hour,
		Providers: []ports.Provider{gasProvider()},
		Sinks:     []ports.Sink{failing, after},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	err = ctrl.Run(context.Background())

	var se *ports.SinkError
	if !errors.As(err, &se) || se.Sink != "sqlite" || se.Op != "append" {
		t.Fatalf("expected append SinkError, got %v", err)
	}
	if len(after.readings) != 0 {
		t.Fatalf("sinks after the failing one must not run")
	}
	if failing.closes != 1 || after.closes != 1 {
		t.Fatalf("expected both sinks closed once")
	}
}

func TestRunRejectsMissingOrExtraFields(t *testing.T) {
	cases := []struct {
		name string
		vals map[string]float64
		want error
	}{
		{"missing", map[string]float64{"oxidising": 1, "reducing": 2}, ports.ErrMissingField},
		{"extra", map[string]float64{"oxidising": 1, "reducing": 2, "nh3": 3, "co": 4}, ports.ErrUnexpectedField},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := gasProvider()
			p.vals = tc.vals
			ctrl, err := New(Options{Providers: []ports.Provider{p}})
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if err := ctrl.Run(context.Background()); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestRunRotatesDisplay(t *testing.T) {
	p := &stubProvider{
		name:   "gas",
		fields: []string{"oxidising", "reducing"},
		vals:   map[string]float64{"oxidising": 1.23, "reducing": 4.56},
	}
	display := &stubDisplay{}

	ctrl, err := New(Options{MaxTicks: 3, Providers: []ports.Provider{p}, Displays: []ports.Display{display}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := ctrl.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []string{"Ox: 1.23", "Red: 4.56", "Ox: 1.23"}
	if len(display.lines) != len(want) {
		t.Fatalf("expected %d renders, got %v", len(want), display.lines)
	}
	for i := range want {
		if display.lines[i] != want[i] {
			t.Fatalf("render %d: expected %q, got %q", i, want[i], display.lines[i])
		}
	}
	if display.powerOffs != 1 {
		t.Fatalf("expected power off once, got %d", display.powerOffs)
	}
}

func TestTimestampsNeverGoBackwards(t *testing.T) {
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := []time.Time{base, base.Add(-time.Minute), base.Add(time.Second)}
	i := 0
	now := func() time.Time {
		ts := clock[i]
		i++
		return ts
	}
	sink := &memSink{}

	ctrl, err := New(Options{MaxTicks: 3, Providers: []ports.Provider{gasProvider()}, Sinks: []ports.Sink{sink}, Now: now})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := ctrl.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !sink.readings[1].Timestamp.Equal(base) {
		t.Fatalf("expected clamped timestamp %s, got %s", base, sink.readings[1].Timestamp)
	}
	if !sink.readings[2].Timestamp.Equal(base.Add(time.Second)) {
		t.Fatalf("unexpected third timestamp %s", sink.readings[2].Timestamp)
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New(Options{Providers: []ports.Provider{gasProvider()}, CPU: &stubCPU{}}); err == nil {
		t.Fatalf("expected error when raw temperature field is not provided")
	}
	if _, err := New(Options{Providers: []ports.Provider{gasProvider(), gasProvider()}}); err == nil {
		t.Fatalf("expected error on duplicate field names")
	}
	if _, err := New(Options{Interval: -time.Second}); err == nil {
		t.Fatalf("expected error on negative interval")
	}
	if _, err := New(Options{Compensation: Compensation{Factor: -1}}); err == nil {
		t.Fatalf("expected error on negative compensation factor")
	}
}

func TestRunTwice(t *testing.T) {
	ctrl, err := New(Options{MaxTicks: 1, Providers: []ports.Provider{gasProvider()}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := ctrl.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := ctrl.Run(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
}

type stubProvider struct {
	name   string
	fields []string
	vals   map[string]float64
	sample func(ctx context.Context) (map[string]float64, error)
	failOn int
	err    error
	calls  int
}

func (s *stubProvider) Name() string     { return s.name }
func (s *stubProvider) Fields() []string { return s.fields }
func (s *stubProvider) Sample(ctx context.Context) (map[string]float64, error) {
	s.calls++
	if s.sample != nil {
		return s.sample(ctx)
	}
	if s.failOn > 0 && s.calls == s.failOn {
		return nil, s.err
	}
	out := make(map[string]float64, len(s.vals))
	for k, v := range s.vals {
		out[k] = v
	}
	return out, nil
}

type stubCPU struct {
	values []float64
	calls  int
	err    error
}

func (s *stubCPU) ReadCPUTemperature(context.Context) (float64, error) {
	if s.err != nil {
		s.calls++
		return 0, s.err
	}
	v := s.values[s.calls%len(s.values)]
	s.calls++
	return v, nil
}

type memSink struct {
	name     string
	readings []domain.Reading
	closes   int
	err      error
	onAppend func(n int)
}

func (m *memSink) Name() string {
	if m.name == "" {
		return "memory"
	}
	return m.name
}

func (m *memSink) Append(_ context.Context, r domain.Reading) error {
	if m.err != nil {
		return m.err
	}
	m.readings = append(m.readings, r)
	if m.onAppend != nil {
		m.onAppend(len(m.readings))
	}
	return nil
}

func (m *memSink) Close() error {
	m.closes++
	return nil
}

type stubDisplay struct {
	lines     []string
	powerOffs int
}

func (d *stubDisplay) Name() string { return "stub-lcd" }
func (d *stubDisplay) Render(_ context.Context, line string) error {
	d.lines = append(d.lines, line)
	return nil
}
func (d *stubDisplay) PowerOff() error {
	d.powerOffs++
	return nil
}
