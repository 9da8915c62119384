package audio

import (
	"iter"
)

const (
	// DefaultMasterGain scales the sum of all voices.
	DefaultMasterGain = 0.55

	// AnalysisWindow is the number of samples the meter looks at.
	AnalysisWindow = 2048
)

// Bus sums voices, applies the master gain and feeds the analysis tap.
type Bus struct {
	sampleRate float64
	master     float64
	tap        *tap
}

func NewBus(sampleRate int, master float64) *Bus {
	return &Bus{
		sampleRate: float64(sampleRate),
		master:     master,
		tap:        newTap(AnalysisWindow),
	}
}

// Mix renders len(dst) mono samples starting at clock time t0.
func (b *Bus) Mix(dst []float32, t0 float64, voices iter.Seq[*Voice]) {
	clear(dst)
	dt := 1 / b.sampleRate
	for v := range voices {
		v.render(dst, t0, dt, b.sampleRate)
	}
	master := float32(b.master)
	for i, s := range dst {
		s *= master
		if s > 1.0 {
			s = 1.0
		} else if s < -1.0 {
			s = -1.0
		}
		dst[i] = s
	}
	b.tap.write(dst)
}

// SampleRate returns the rate the bus renders at.
func (b *Bus) SampleRate() int { return int(b.sampleRate) }
