package audio

import (
	"math"
	"time"
)

const (
	// GainFloor is the lowest gain an envelope reaches. Exponential ramps
	// cannot start or end at zero.
	GainFloor = 0.0001

	// HardStopMargin is added to the release time before a released voice is
	// stopped and removed. Exponential ramps never reach zero.
	HardStopMargin = 20 * time.Millisecond

	// DefaultBaseGain is the per-note gain at a polyphony limit of one.
	DefaultBaseGain = 0.65
)

// Envelope holds the ADSR settings shared by every voice. Times are in
// seconds, Sustain is a fraction of the peak gain.
type Envelope struct {
	Attack  float64 `yaml:"attack"`
	Decay   float64 `yaml:"decay"`
	Sustain float64 `yaml:"sustain"`
	Release float64 `yaml:"release"`
}

// DefaultEnvelope returns a short, percussive envelope.
func DefaultEnvelope() Envelope {
	return Envelope{
		Attack:  0.010,
		Decay:   0.060,
		Sustain: 0.55,
		Release: 0.140,
	}
}

// Sanitized clamps negative times to zero and the sustain level to [0, 1].
func (e Envelope) Sanitized() Envelope {
	clampTime := func(s float64) float64 {
		if s < 0 || math.IsNaN(s) {
			return 0
		}
		return s
	}
	e.Attack = clampTime(e.Attack)
	e.Decay = clampTime(e.Decay)
	e.Release = clampTime(e.Release)
	switch {
	case math.IsNaN(e.Sustain) || e.Sustain < 0:
		e.Sustain = 0
	case e.Sustain > 1:
		e.Sustain = 1
	}
	return e
}

// HardStopDelay is how long after release begins a voice is torn down,
// rounded up to whole milliseconds.
func (e Envelope) HardStopDelay() time.Duration {
	d := time.Duration(math.Round(e.Release*float64(time.Second))) + HardStopMargin
	if rem := d % time.Millisecond; rem != 0 {
		d += time.Millisecond - rem
	}
	return d
}

// SustainGain is the peak gain of a voice created under the given polyphony
// limit. Gain is divided across the limit so a full chord stays at roughly
// the same loudness as a single note.
func SustainGain(base float64, limit int) float64 {
	return base / float64(max(1, limit))
}

// scheduleNoteOn writes attack and decay into gain. Sustain needs no point:
// the curve holds the decay target until release.
func (e Envelope) scheduleNoteOn(gain *Automation, now, peak float64) {
	attackEnd := now + e.Attack
	decayEnd := attackEnd + e.Decay

	gain.SetValueAt(GainFloor, now)
	gain.ExponentialRampTo(math.Max(GainFloor, peak), attackEnd)
	gain.ExponentialRampTo(math.Max(GainFloor, peak*e.Sustain), decayEnd)
}

// scheduleRelease re-anchors gain at its current value and ramps it to the
// floor. The snapshot is taken before cancelling so a release during attack
// or decay starts from where the curve actually is.
func (e Envelope) scheduleRelease(gain *Automation, now float64) {
	current := math.Max(GainFloor, gain.ValueAt(now))
	gain.CancelFrom(now)
	gain.SetValueAt(current, now)
	gain.ExponentialRampTo(GainFloor, now+e.Release)
}

// scheduler drives voices through their envelope and tears them down after
// release.
type scheduler struct {
	env    Envelope
	timers Timers
	// expire runs from the hard-stop timer with the voice it was scheduled
	// for.
	expire func(v *Voice)
}

// noteOn starts the attack of v at now.
func (s *scheduler) noteOn(v *Voice, now float64) {
	s.env.scheduleNoteOn(v.gain, now, v.peak)
}

// release moves v into its release phase and schedules the hard stop. It is
// a no-op for a voice that is already releasing or stopped.
func (s *scheduler) release(v *Voice, now float64) bool {
	if v.releasing || v.stopped {
		return false
	}
	v.releasing = true
	v.releaseAt = now
	s.env.scheduleRelease(v.gain, now)
	v.stopTimer = s.timers.AfterFunc(s.env.HardStopDelay(), func() {
		s.expire(v)
	})
	return true
}
