package display

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/jersme/enviro/internal/ports"
)

// Console prints each rendered line prefixed with the render time.
type Console struct {
	mu  sync.Mutex
	w   io.Writer
	now func() time.Time
	off bool
}

func NewConsole(w io.Writer) *Console {
	if w == nil {
		w = os.Stdout
	}
	return &Console{w: w, now: time.Now}
}

func (c *Console) Name() string { return "console" }

func (c *Console) Render(ctx context.Context, line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.off = false
	_, err := fmt.Fprintf(c.w, "[%s] %s\n", c.now().Format("15:04:05"), line)
	return err
}

func (c *Console) PowerOff() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.off {
		return nil
	}
	c.off = true
	_, err := fmt.Fprintln(c.w, "[display off]")
	return err
}

var _ ports.Display = (*Console)(nil)
