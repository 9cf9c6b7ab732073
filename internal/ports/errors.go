package ports

import (
	"errors"
	"fmt"
)

var (
	ErrMissingField    = errors.New("provider omitted a declared field")
	ErrUnexpectedField = errors.New("provider returned an undeclared field")
)

// ProviderError reports that a reading source could not produce values this tick.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// SinkError reports a failed persistence append or display render.
type SinkError struct {
	Sink string
	Op   string
	Err  error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("sink %s %s: %v", e.Sink, e.Op, e.Err)
}

func (e *SinkError) Unwrap() error { return e.Err }
