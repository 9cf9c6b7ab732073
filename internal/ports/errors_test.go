package ports

import (
	"context"
	"errors"
	"testing"
)

func TestErrorsUnwrap(t *testing.T) {
	var err error = &ProviderError{Provider: "bme280", Err: context.Canceled}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected provider error to unwrap to context.Canceled")
	}
	if err.Error() != "provider bme280: context canceled" {
		t.Fatalf("unexpected message %q", err.Error())
	}

	err = &SinkError{Sink: "sqlite", Op: "append", Err: errors.New("disk full")}
	var se *SinkError
	if !errors.As(err, &se) || se.Op != "append" {
		t.Fatalf("expected errors.As to find SinkError")
	}
	if err.Error() != "sink sqlite append: disk full" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
