package enviro

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewCallbackSink(t *testing.T) {
	var received []Reading
	sink := NewCallbackSink("cb", func(r Reading) error {
		received = append(received, r)
		return nil
	})

	input := NewReading(time.Unix(1, 0), []Field{{Name: "lux", Value: 3.14}})
	if err := sink.Append(context.Background(), input); err != nil {
		t.Fatalf("Append returned error: %v", err)
	}
	if len(received) != 1 {
		t.Fatalf("expected 1 reading, got %d", len(received))
	}
	input.Fields[0].Value = 0
	if v, _ := received[0].Get("lux"); v != 3.14 {
		t.Fatalf("expected value to be copied, got %v", v)
	}
	if sink.Name() != "cb" {
		t.Fatalf("unexpected name %q", sink.Name())
	}
}

func TestNewCallbackSinkNilHandler(t *testing.T) {
	sink := NewCallbackSink("", nil)
	if err := sink.Append(context.Background(), Reading{}); err == nil {
		t.Fatalf("expected error when callback is nil")
	}
	if sink.Name() != "callback" {
		t.Fatalf("expected default name, got %q", sink.Name())
	}
}

func TestNewChannelSink(t *testing.T) {
	sink, ch, closeFn := NewChannelSink("chan", 0)
	defer closeFn()

	input := NewReading(time.Unix(2, 0), []Field{{Name: "nh3", Value: 0.2}})
	errCh := make(chan error, 1)
	go func() {
		errCh <- sink.Append(context.Background(), input)
	}()

	var got Reading
	select {
	case got = <-ch:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for channel reading")
	}
	if err := <-errCh; err != nil {
		t.Fatalf("Append returned error: %v", err)
	}
	if v, _ := got.Get("nh3"); v != 0.2 {
		t.Fatalf("unexpected reading %+v", got)
	}

	closeFn()
	if err := sink.Append(context.Background(), input); !errors.Is(err, ErrChannelSinkClosed) {
		t.Fatalf("expected ErrChannelSinkClosed, got %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestChannelSinkCloseUnblocksPendingAppend(t *testing.T) {
	sink, _, closeFn := NewChannelSink("chan", 0)
	errCh := make(chan error, 1)
	go func() {
		errCh <- sink.Append(context.Background(), Reading{})
	}()
	time.Sleep(10 * time.Millisecond)
	closeFn()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrChannelSinkClosed) {
			t.Fatalf("expected ErrChannelSinkClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("pending Append was not released")
	}
}
