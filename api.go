package enviro

import (
	"io"
	"time"

	base "github.com/jersme/enviro/pkg/enviro"
)

// Re-exported errors for convenience.
var (
	ErrChannelSinkClosed = base.ErrChannelSinkClosed
)

// Type aliases so consumers can import github.com/jersme/enviro directly.
type (
	Config               = base.Config
	SamplerConfig        = base.SamplerConfig
	CompensationConfig   = base.CompensationConfig
	ProviderConfig       = base.ProviderConfig
	SinksConfig          = base.SinksConfig
	DisplaysConfig       = base.DisplaysConfig
	CameraConfig         = base.CameraConfig
	MetricsConfig        = base.MetricsConfig
	Flow                 = base.Flow
	FlowOption           = base.FlowOption
	StreamInOption       = base.StreamInOption
	StreamOutOption      = base.StreamOutOption
	Monitor              = base.Monitor
	MonitorOption        = base.MonitorOption
	CaptureLoop          = base.CaptureLoop
	CaptureOption        = base.CaptureOption
	Reading              = base.Reading
	Field                = base.Field
	ReadingHandler       = base.ReadingHandler
	Provider             = base.Provider
	CPUTemperatureSource = base.CPUTemperatureSource
	Sink                 = base.Sink
	Display              = base.Display
	Observability        = base.Observability
	CaptureProvider      = base.CaptureProvider
	ImageArchive         = base.ImageArchive
	State                = base.State
	ExportOptions        = base.ExportOptions
	ExportResult         = base.ExportResult
)

// Config helpers.
func LoadConfig(path string) (*Config, error) {
	return base.LoadConfig(path)
}

func ParseConfig(raw []byte) (*Config, error) {
	return base.ParseConfig(raw)
}

// Flow builder helpers.
func Conf(path string, opts ...FlowOption) (*Flow, error) {
	return base.Conf(path, opts...)
}

func ConfFromConfig(cfg *Config, opts ...FlowOption) (*Flow, error) {
	return base.ConfFromConfig(cfg, opts...)
}

func Every(d time.Duration) FlowOption {
	return base.Every(d)
}

func Ticks(n int) FlowOption {
	return base.Ticks(n)
}

func WithFlowOptions(opts ...MonitorOption) FlowOption {
	return base.WithFlowOptions(opts...)
}

func StreamInProvider(p Provider) StreamInOption {
	return base.StreamInProvider(p)
}

func StreamInCPU(src CPUTemperatureSource) StreamInOption {
	return base.StreamInCPU(src)
}

func StreamInObservability(obs Observability) StreamInOption {
	return base.StreamInObservability(obs)
}

func StreamOutSink(s Sink) StreamOutOption {
	return base.StreamOutSink(s)
}

func StreamOutDisplay(d Display) StreamOutOption {
	return base.StreamOutDisplay(d)
}

func StreamOutObservability(obs Observability) StreamOutOption {
	return base.StreamOutObservability(obs)
}

func StreamOutCallback(name string, fn ReadingHandler) StreamOutOption {
	return base.StreamOutCallback(name, fn)
}

// Monitor and options.
func NewMonitor(cfg *Config, opts ...MonitorOption) (*Monitor, error) {
	return base.NewMonitor(cfg, opts...)
}

func WithProvider(p Provider) MonitorOption {
	return base.WithProvider(p)
}

func WithSink(s Sink) MonitorOption {
	return base.WithSink(s)
}

func WithDisplay(d Display) MonitorOption {
	return base.WithDisplay(d)
}

func WithCPUSource(src CPUTemperatureSource) MonitorOption {
	return base.WithCPUSource(src)
}

func WithObservability(obs Observability) MonitorOption {
	return base.WithObservability(obs)
}

func WithSession(id string) MonitorOption {
	return base.WithSession(id)
}

func WithClock(now func() time.Time) MonitorOption {
	return base.WithClock(now)
}

// Sink adapters.
func NewCallbackSink(name string, fn ReadingHandler) Sink {
	return base.NewCallbackSink(name, fn)
}

func NewChannelSink(name string, buffer int) (Sink, <-chan Reading, func()) {
	return base.NewChannelSink(name, buffer)
}

// Camera capture.
func NewCapture(cfg *Config, opts ...CaptureOption) (*CaptureLoop, error) {
	return base.NewCapture(cfg, opts...)
}

func WithCaptureProvider(p CaptureProvider) CaptureOption {
	return base.WithCaptureProvider(p)
}

func WithImageArchive(a ImageArchive) CaptureOption {
	return base.WithImageArchive(a)
}

func WithMaxShots(n int) CaptureOption {
	return base.WithMaxShots(n)
}

// WAL export.
func ExportWAL(opts ExportOptions, w io.Writer) (ExportResult, error) {
	return base.ExportWAL(opts, w)
}

func WALStats(dir string) (oldestUnexported, latest uint64, sizeBytes int64, err error) {
	return base.WALStats(dir)
}
