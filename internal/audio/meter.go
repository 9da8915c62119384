package audio

import (
	"github.com/viterin/vek/vek32"
)

// Meter measures the peak level of the most recent analysis window. It is
// meant to be sampled from a single display loop.
type Meter struct {
	tap     *tap
	window  []float32
	scratch []float32
	last    float64
}

func newMeter(t *tap) *Meter {
	return &Meter{
		tap:     t,
		window:  make([]float32, t.size()),
		scratch: make([]float32, t.size()),
	}
}

// Sample returns max |x| over the current window, in [0, 1]. If the audio
// thread holds the window the previous reading is returned instead of
// waiting for it.
func (m *Meter) Sample() float64 {
	if m == nil || m.tap == nil {
		return 0
	}
	if !m.tap.tryRead(m.window) {
		return m.last
	}
	vek32.Abs_Into(m.scratch, m.window)
	m.last = float64(vek32.Max(m.scratch))
	return m.last
}
