package enviro

import (
	"context"
	"fmt"
	"log"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jersme/enviro/internal/adapters/camera"
	"github.com/jersme/enviro/internal/adapters/observability"
	"github.com/jersme/enviro/internal/app/capture"
	"github.com/jersme/enviro/internal/ports"
)

// CaptureProvider returns one encoded still per call.
type CaptureProvider = ports.CaptureProvider

// ImageArchive stores captured stills off-device.
type ImageArchive = ports.ImageArchive

type CaptureOption func(*captureOverrides)

type captureOverrides struct {
	provider CaptureProvider
	archive  ImageArchive
	obs      Observability
	maxShots int
}

// WithCaptureProvider replaces the HTTP snapshot source.
func WithCaptureProvider(p CaptureProvider) CaptureOption {
	return func(o *captureOverrides) { o.provider = p }
}

// WithImageArchive replaces the S3 archive.
func WithImageArchive(a ImageArchive) CaptureOption {
	return func(o *captureOverrides) { o.archive = a }
}

func WithCaptureObservability(obs Observability) CaptureOption {
	return func(o *captureOverrides) { o.obs = obs }
}

// WithMaxShots stops the loop after n stored images.
func WithMaxShots(n int) CaptureOption {
	return func(o *captureOverrides) { o.maxShots = n }
}

// CaptureLoop periodically stores camera stills.
type CaptureLoop struct {
	loop *capture.Loop
}

// NewCapture builds the camera loop from cfg.Camera.
func NewCapture(cfg *Config, opts ...CaptureOption) (*CaptureLoop, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	var o captureOverrides
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	cam := cfg.Camera
	if o.provider == nil {
		if cam.URL == "" {
			return nil, fmt.Errorf("camera.url is required")
		}
		o.provider = camera.NewHTTPSnapshot(cam.URL, cam.Timeout)
	}
	if o.archive == nil && cam.Archive.Enabled {
		a, err := camera.NewMinioArchive(camera.MinioConfig{
			Endpoint:  cam.Archive.Endpoint,
			AccessKey: cam.Archive.AccessKey,
			SecretKey: cam.Archive.SecretKey,
			Bucket:    cam.Archive.Bucket,
			Prefix:    cam.Archive.Prefix,
			Secure:    cam.Archive.Secure,
		})
		if err != nil {
			return nil, err
		}
		o.archive = a
	}
	if o.obs == nil {
		o.obs = observability.NewPromObsWith(prometheus.NewRegistry(), log.Default())
	}

	loop, err := capture.New(capture.Options{
		Dir:      cam.Dir,
		Interval: cam.Interval,
		Prefix:   cam.Prefix,
		MaxShots: o.maxShots,
		Provider: o.provider,
		Archive:  o.archive,
		Obs:      o.obs,
	})
	if err != nil {
		return nil, err
	}
	return &CaptureLoop{loop: loop}, nil
}

// Run blocks until ctx ends (returns nil) or a file write fails.
func (c *CaptureLoop) Run(ctx context.Context) error { return c.loop.Run(ctx) }
