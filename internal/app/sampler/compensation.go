package sampler

const (
	cpuWindowSize = 5

	DefaultCompensationFactor = 2.25
	DefaultRawField           = "temperature"
	DefaultOutputField        = "compensated_temperature"
)

// Compensation offsets an ambient temperature reading for heat radiated by
// the host board, using a trailing average of CPU temperature.
type Compensation struct {
	Factor      float64
	RawField    string
	OutputField string
}

func (c *Compensation) applyDefaults() {
	if c.Factor == 0 {
		c.Factor = DefaultCompensationFactor
	}
	if c.RawField == "" {
		c.RawField = DefaultRawField
	}
	if c.OutputField == "" {
		c.OutputField = DefaultOutputField
	}
}

// CompensatedTemperature returns raw - ((avgCPU - raw) / factor).
func CompensatedTemperature(raw, avgCPU, factor float64) float64 {
	return raw - ((avgCPU - raw) / factor)
}

// cpuWindow holds the most recent CPU samples. It is seeded once by
// replicating a priming sample; every later push evicts the oldest.
type cpuWindow struct {
	samples [cpuWindowSize]float64
	next    int
	seeded  bool
}

func (w *cpuWindow) seed(v float64) {
	for i := range w.samples {
		w.samples[i] = v
	}
	w.next = 0
	w.seeded = true
}

func (w *cpuWindow) push(v float64) {
	if !w.seeded {
		w.seed(v)
	}
	w.samples[w.next] = v
	w.next = (w.next + 1) % cpuWindowSize
}

func (w *cpuWindow) mean() float64 {
	var sum float64
	for _, v := range w.samples {
		sum += v
	}
	return sum / float64(cpuWindowSize)
}

// ordered returns the samples oldest first.
func (w *cpuWindow) ordered() []float64 {
	out := make([]float64, 0, cpuWindowSize)
	if !w.seeded {
		return out
	}
	for i := 0; i < cpuWindowSize; i++ {
		out = append(out, w.samples[(w.next+i)%cpuWindowSize])
	}
	return out
}
