package audio

import (
	"github.com/icco/polykeys/internal/keymap"
)

// Phase is the envelope stage of a voice.
type Phase int

const (
	PhaseAttack Phase = iota
	PhaseDecay
	PhaseSustain
	PhaseRelease
	PhaseStopped
)

func (p Phase) String() string {
	switch p {
	case PhaseAttack:
		return "attack"
	case PhaseDecay:
		return "decay"
	case PhaseSustain:
		return "sustain"
	case PhaseRelease:
		return "release"
	default:
		return "stopped"
	}
}

// Voice is one sounding note: an oscillator routed through its own gain
// envelope into the mix bus. Frequency, waveform and peak gain are fixed
// when the voice is created.
type Voice struct {
	id        uint64 // unique per engine, never reused
	key       keymap.KeyID
	frequency float64
	waveform  Waveform
	start     float64 // audio clock at note-on
	peak      float64 // attack target G
	env       Envelope
	gain      *Automation

	phase float64 // oscillator phase, 0-1

	releasing bool
	releaseAt float64
	stopTimer Stopper

	stopped      bool
	disconnected bool
}

func (v *Voice) ID() uint64            { return v.id }
func (v *Voice) Key() keymap.KeyID     { return v.key }
func (v *Voice) Frequency() float64    { return v.frequency }
func (v *Voice) Waveform() Waveform    { return v.waveform }
func (v *Voice) StartTime() float64    { return v.start }
func (v *Voice) PeakGain() float64     { return v.peak }
func (v *Voice) Releasing() bool       { return v.releasing }
func (v *Voice) ReleaseStart() float64 { return v.releaseAt }
func (v *Voice) Stopped() bool         { return v.stopped }

// Gain returns the envelope output at time t. A stopped voice is silent.
func (v *Voice) Gain(t float64) float64 {
	if v.stopped || v.disconnected {
		return 0
	}
	return v.gain.ValueAt(t)
}

// PhaseAt returns the envelope stage at time t.
func (v *Voice) PhaseAt(t float64) Phase {
	switch {
	case v.stopped:
		return PhaseStopped
	case v.releasing:
		return PhaseRelease
	case t < v.start+v.env.Attack:
		return PhaseAttack
	case t < v.start+v.env.Attack+v.env.Decay:
		return PhaseDecay
	default:
		return PhaseSustain
	}
}

// pendingStop reports whether a hard stop is scheduled.
func (v *Voice) pendingStop() bool {
	return v.stopTimer != nil
}

// render adds the voice's output for consecutive samples starting at t0 to
// dst and advances the oscillator.
func (v *Voice) render(dst []float32, t0, dt, sampleRate float64) {
	if v.stopped || v.disconnected {
		return
	}
	inc := v.frequency / sampleRate
	for i := range dst {
		t := t0 + float64(i)*dt
		if t >= v.start {
			dst[i] += float32(oscillate(v.waveform, v.phase) * v.gain.ValueAt(t))
			v.phase += inc
			if v.phase >= 1.0 {
				v.phase -= 1.0
			}
		}
	}
}

// stop halts the oscillator and clears a pending hard stop. Calling it again
// is a no-op.
func (v *Voice) stop() {
	if v.stopTimer != nil {
		v.stopTimer.Stop()
		v.stopTimer = nil
	}
	v.stopped = true
}

// disconnect detaches the voice from the bus. Calling it again is a no-op.
func (v *Voice) disconnect() {
	v.disconnected = true
}

// teardown stops and disconnects the voice.
func (v *Voice) teardown() {
	v.stop()
	v.disconnect()
}
