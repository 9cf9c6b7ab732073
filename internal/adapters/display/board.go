package display

import (
	"context"
	"sync"
	"time"

	"github.com/jersme/enviro/internal/ports"
)

// BoardState is a snapshot of what the board currently shows.
type BoardState struct {
	Line       string    `json:"line"`
	On         bool      `json:"on"`
	Renders    uint64    `json:"renders"`
	RenderedAt time.Time `json:"rendered_at,omitempty"`
}

// Board holds the current line in memory so it can be served over HTTP.
type Board struct {
	mu    sync.RWMutex
	state BoardState
	now   func() time.Time
}

func NewBoard() *Board { return &Board{now: time.Now} }

func (b *Board) Name() string { return "board" }

func (b *Board) Render(ctx context.Context, line string) error {
	b.mu.Lock()
	b.state.Line = line
	b.state.On = true
	b.state.Renders++
	b.state.RenderedAt = b.now().UTC()
	b.mu.Unlock()
	return nil
}

// PowerOff blanks the line; the render count is kept.
func (b *Board) PowerOff() error {
	b.mu.Lock()
	b.state.Line = ""
	b.state.On = false
	b.mu.Unlock()
	return nil
}

func (b *Board) State() BoardState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

var _ ports.Display = (*Board)(nil)
