package ports

import "context"

// CaptureProvider returns one encoded still image.
type CaptureProvider interface {
	Capture(ctx context.Context) ([]byte, error)
}

// ImageArchive stores captured images off-device.
type ImageArchive interface {
	Put(ctx context.Context, name string, data []byte) error
}
