package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jersme/enviro/internal/domain"
	"github.com/jersme/enviro/internal/ports"
)

// FileTimeLayout is the timestamp part of a stored image name.
const FileTimeLayout = "20060102_150405"

type Options struct {
	Dir      string
	Interval time.Duration
	Prefix   string
	// MaxShots stops the loop after that many stored images; 0 runs until
	// the context ends.
	MaxShots int

	Provider ports.CaptureProvider
	Archive  ports.ImageArchive

	Obs ports.Observability
	Now func() time.Time
}

func (o *Options) applyDefaults() {
	if o.Interval == 0 {
		o.Interval = 60 * time.Second
	}
	if o.Prefix == "" {
		o.Prefix = "image"
	}
	if o.Obs == nil {
		o.Obs = nopObs{}
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Loop periodically stores one still image in Dir and optionally archives it.
type Loop struct {
	opts  Options
	shots int
}

func New(opts Options) (*Loop, error) {
	opts.applyDefaults()
	if opts.Dir == "" {
		return nil, errors.New("capture dir is required")
	}
	if opts.Provider == nil {
		return nil, errors.New("capture provider is required")
	}
	if opts.Interval < 0 {
		return nil, fmt.Errorf("capture interval must be >= 0, got %s", opts.Interval)
	}
	return &Loop{opts: opts}, nil
}

// FileName returns <prefix>_YYYYMMDD_HHMMSS.jpg for t in local time.
func FileName(prefix string, t time.Time) string {
	return prefix + "_" + t.Local().Format(FileTimeLayout) + ".jpg"
}

// Run captures until ctx ends or MaxShots is reached. A failed capture or
// archive upload is logged and skipped; a failed file write stops the loop.
func (l *Loop) Run(ctx context.Context) error {
	if err := os.MkdirAll(l.opts.Dir, 0o755); err != nil {
		return fmt.Errorf("capture dir: %w", err)
	}
	l.opts.Obs.LogInfo("capture_started",
		ports.Field{Key: "dir", Value: l.opts.Dir},
		ports.Field{Key: "interval", Value: l.opts.Interval})

	for {
		if err := l.once(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			l.opts.Obs.LogCritical("capture_write_failed", err)
			return err
		}
		if l.opts.MaxShots > 0 && l.shots >= l.opts.MaxShots {
			return nil
		}
		if !sleep(ctx, l.opts.Interval) {
			l.opts.Obs.LogInfo("capture_stopped", ports.Field{Key: "shots", Value: l.shots})
			return nil
		}
	}
}

func (l *Loop) once(ctx context.Context) error {
	start := time.Now()
	name := FileName(l.opts.Prefix, l.opts.Now())

	data, err := l.opts.Provider.Capture(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		l.opts.Obs.IncCounter("enviro_capture_errors_total", 1)
		l.opts.Obs.LogError("capture_failed", err, ports.Field{Key: "name", Value: name})
		return nil
	}

	path := filepath.Join(l.opts.Dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	l.shots++
	l.opts.Obs.IncCounter("enviro_captures_total", 1)
	l.opts.Obs.LogInfo("image_saved", ports.Field{Key: "path", Value: path}, ports.Field{Key: "bytes", Value: len(data)})

	if l.opts.Archive != nil {
		if err := l.opts.Archive.Put(ctx, name, data); err != nil {
			l.opts.Obs.IncCounter("enviro_capture_errors_total", 1)
			l.opts.Obs.LogError("archive_failed", err, ports.Field{Key: "name", Value: name})
		}
	}
	l.opts.Obs.ObserveLatency("enviro_capture_duration_seconds", time.Since(start).Seconds())
	return nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

type nopObs struct{}

func (nopObs) LogInfo(string, ...ports.Field)            {}
func (nopObs) LogError(string, error, ...ports.Field)    {}
func (nopObs) LogCritical(string, error, ...ports.Field) {}
func (nopObs) IncCounter(string, float64)                {}
func (nopObs) ObserveLatency(string, float64)            {}
func (nopObs) SetGauge(string, float64)                  {}
func (nopObs) ObserveReading(domain.Reading)             {}
