package sink

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jersme/enviro/internal/domain"
)

func TestJSONLinesRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "readings.jsonl")
	sink, err := OpenJSONLines(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		r := domain.NewReading(base.Add(time.Duration(i)*30*time.Second), []domain.Field{
			{Name: "reducing", Value: float64(i)},
			{Name: "compensated_temperature", Value: 20 + float64(i)},
		})
		if err := sink.Append(context.Background(), r); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := sink.Append(context.Background(), domain.Reading{}); !errors.Is(err, os.ErrClosed) {
		t.Fatalf("expected ErrClosed after close, got %v", err)
	}

	got, err := ReadJSONLines(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 readings, got %d", len(got))
	}
	if !got[2].Timestamp.Equal(base.Add(time.Minute)) {
		t.Fatalf("unexpected timestamp %v", got[2].Timestamp)
	}
	if names := got[0].Names(); names[0] != "reducing" || names[1] != "compensated_temperature" {
		t.Fatalf("field order lost: %v", names)
	}
}

func TestJSONLinesWriterFormat(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONLines(&buf)
	r := domain.NewReading(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), []domain.Field{{Name: "lux", Value: 3}})
	if err := sink.Append(context.Background(), r); err != nil {
		t.Fatalf("append: %v", err)
	}
	want := `{"timestamp":"2024-01-01T00:00:00Z","fields":{"lux":3}}` + "\n"
	if buf.String() != want {
		t.Fatalf("got %q want %q", buf.String(), want)
	}
	if strings.Count(buf.String(), "\n") != 1 {
		t.Fatalf("expected exactly one line")
	}
}
