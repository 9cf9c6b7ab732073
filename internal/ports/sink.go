package ports

import (
	"context"

	"github.com/jersme/enviro/internal/domain"
)

// Sink is an append-only consumer of Readings (database, file, broker).
type Sink interface {
	Name() string
	Append(ctx context.Context, r domain.Reading) error
	Close() error
}

// Display shows one formatted line at a time.
type Display interface {
	Name() string
	Render(ctx context.Context, line string) error
	PowerOff() error
}
