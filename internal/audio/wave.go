package audio

import (
	"math"
	"strings"
)

// Waveform is the oscillator shape of a voice.
type Waveform int

const (
	WaveSine Waveform = iota
	WaveSquare
	WaveSawtooth
	WaveTriangle
)

// Waveforms lists the selectable shapes in display order.
var Waveforms = []Waveform{WaveSine, WaveSquare, WaveSawtooth, WaveTriangle}

func (w Waveform) String() string {
	switch w {
	case WaveSquare:
		return "square"
	case WaveSawtooth:
		return "sawtooth"
	case WaveTriangle:
		return "triangle"
	default:
		return "sine"
	}
}

// ParseWaveform resolves a waveform name. Empty or unknown names resolve to
// sine.
func ParseWaveform(s string) Waveform {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "square":
		return WaveSquare
	case "sawtooth", "saw":
		return WaveSawtooth
	case "triangle":
		return WaveTriangle
	default:
		return WaveSine
	}
}

// Next returns the waveform after w, wrapping around. Negative steps go back.
func (w Waveform) Next(step int) Waveform {
	n := len(Waveforms)
	return Waveforms[((int(w)+step)%n+n)%n]
}

// oscillate returns the value of waveform w at phase (0-1) in [-1, 1].
func oscillate(w Waveform, phase float64) float64 {
	switch w {
	case WaveSquare:
		if phase < 0.5 {
			return 1
		}
		return -1
	case WaveSawtooth:
		return 2*phase - 1
	case WaveTriangle:
		if phase < 0.5 {
			return 4*phase - 1
		}
		return 3 - 4*phase
	default:
		return math.Sin(2 * math.Pi * phase)
	}
}
