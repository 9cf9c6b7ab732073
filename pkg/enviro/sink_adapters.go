package enviro

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrChannelSinkClosed is returned when a channel sink is written to after being closed.
var ErrChannelSinkClosed = errors.New("enviro: channel sink closed")

// ReadingHandler is invoked once per Reading by a callback sink.
type ReadingHandler func(Reading) error

// NewCallbackSink adapts a ReadingHandler into a full Sink implementation so
// callers can plug arbitrary functions without defining structs.
func NewCallbackSink(name string, fn ReadingHandler) Sink {
	if name == "" {
		name = "callback"
	}
	return &callbackSink{name: name, fn: fn}
}

// NewChannelSink exposes Readings via a channel; it returns the sink, the
// read-only channel, and a close function. The channel is also closed when
// the monitor releases the sink.
func NewChannelSink(name string, buffer int) (Sink, <-chan Reading, func()) {
	if name == "" {
		name = "channel"
	}
	if buffer < 0 {
		buffer = 0
	}
	ch := make(chan Reading, buffer)
	s := &channelSink{
		name:   name,
		ch:     ch,
		closed: make(chan struct{}),
	}
	return s, ch, func() { s.Close() }
}

type callbackSink struct {
	name string
	fn   ReadingHandler
}

func (s *callbackSink) Append(_ context.Context, r Reading) error {
	if s.fn == nil {
		return fmt.Errorf("callback sink %q: nil handler", s.name)
	}
	return s.fn(r.Clone())
}

func (s *callbackSink) Name() string { return s.name }
func (s *callbackSink) Close() error { return nil }

type channelSink struct {
	name     string
	ch       chan Reading
	closed   chan struct{}
	mu       sync.Mutex
	isClosed bool
	inflight sync.WaitGroup
	once     sync.Once
}

func (s *channelSink) Append(ctx context.Context, r Reading) error {
	s.mu.Lock()
	if s.isClosed {
		s.mu.Unlock()
		return ErrChannelSinkClosed
	}
	s.inflight.Add(1)
	s.mu.Unlock()
	defer s.inflight.Done()

	select {
	case <-s.closed:
		return ErrChannelSinkClosed
	case <-ctx.Done():
		return ctx.Err()
	case s.ch <- r.Clone():
		return nil
	}
}

func (s *channelSink) Name() string { return s.name }

// Close unblocks pending Appends, then closes the channel.
func (s *channelSink) Close() error {
	s.once.Do(func() {
		s.mu.Lock()
		s.isClosed = true
		close(s.closed)
		s.mu.Unlock()

		s.inflight.Wait()
		close(s.ch)
	})
	return nil
}
