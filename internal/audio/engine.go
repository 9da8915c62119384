// Package audio is the synthesis core of the keyboard: voices with ADSR
// envelopes, a polyphony-limited voice pool, the mix bus and the peak meter.
package audio

import (
	"sync"
	"sync/atomic"

	"github.com/icco/polykeys/internal/keymap"
	"github.com/icco/polykeys/internal/log"
)

// Status values reported by Engine.Status.
const (
	StatusIdle         = "idle"
	StatusAudioStarted = "audio started"
)

// DefaultPolyphony is the voice limit used when none is configured.
const DefaultPolyphony = 2

// Engine owns the frequency table, the voice pool, the envelope settings and
// the output graph. Input handlers, the audio callback and hard-stop timers
// all take its lock and run to completion one at a time; the meter only
// touches the analysis tap.
type Engine struct {
	mu sync.Mutex

	table    *keymap.Table
	pool     *Pool
	sched    scheduler
	bus      *Bus
	meter    *Meter
	baseGain float64

	waveform  Waveform
	polyphony int

	clock   Clock
	backend Backend
	stream  *streamReader
	logger  *log.Logger

	initOnce sync.Once
	ready    atomic.Bool
	started  bool
	nextID   uint64
}

// Option configures an Engine.
type Option func(*Engine)

// WithEnvelope sets the ADSR settings.
func WithEnvelope(env Envelope) Option {
	return func(e *Engine) { e.sched.env = env.Sanitized() }
}

// WithBaseGain sets the per-note gain at a polyphony limit of one.
func WithBaseGain(g float64) Option {
	return func(e *Engine) {
		if g > 0 {
			e.baseGain = g
		}
	}
}

// WithMasterGain sets the gain applied to the mixed signal.
func WithMasterGain(g float64) Option {
	return func(e *Engine) {
		if g > 0 {
			e.bus.master = g
		}
	}
}

// WithWaveform sets the initial waveform.
func WithWaveform(w Waveform) Option {
	return func(e *Engine) { e.waveform = w }
}

// WithPolyphony sets the initial polyphony limit.
func WithPolyphony(n int) Option {
	return func(e *Engine) { e.polyphony = max(1, n) }
}

// WithBackend replaces the system audio device.
func WithBackend(b Backend) Option {
	return func(e *Engine) { e.backend = b }
}

// WithClock replaces the audio clock. By default the clock counts the frames
// handed to the backend.
func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithTimers replaces the timer source used for hard stops.
func WithTimers(t Timers) Option {
	return func(e *Engine) { e.sched.timers = t }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates an engine for table. No audio device is opened until
// EnsureAudioReady is called.
func NewEngine(table *keymap.Table, opts ...Option) *Engine {
	e := &Engine{
		table:     table,
		pool:      NewPool(),
		bus:       NewBus(sampleRate, DefaultMasterGain),
		baseGain:  DefaultBaseGain,
		waveform:  WaveSine,
		polyphony: DefaultPolyphony,
		backend:   &OtoBackend{},
		logger:    log.Discard(),
		sched: scheduler{
			env:    DefaultEnvelope(),
			timers: WallTimers(),
		},
	}
	e.sched.expire = e.expire
	e.stream = &streamReader{render: e.render, rate: sampleRate}
	e.clock = e.stream
	e.meter = newMeter(e.bus.tap)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// EnsureAudioReady opens the audio device on first use and resumes it if it
// was suspended. It is idempotent. If no device is available it returns
// false and every note operation becomes a no-op.
func (e *Engine) EnsureAudioReady() bool {
	e.initOnce.Do(func() {
		if err := e.backend.Start(e.stream, e.bus.SampleRate()); err != nil {
			e.logger.Errorf("audio unavailable: %v", err)
			return
		}
		e.ready.Store(true)
		e.logger.Infof("audio started at %d Hz", e.bus.SampleRate())
	})
	if !e.ready.Load() {
		return false
	}
	if err := e.backend.Resume(); err != nil {
		e.logger.Debugf("resume failed: %v", err)
	}
	return true
}

// Press starts a note for key. It returns true if a new voice was created.
// Keys that are not on the keyboard, keys that already sound (held or
// releasing) and presses without an audio device are ignored.
func (e *Engine) Press(key keymap.KeyID) bool {
	freq, ok := e.table.Lookup(key)
	if !ok {
		return false
	}
	if !e.EnsureAudioReady() {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	waveform, limit := e.waveform, e.polyphony
	res := e.pool.TryAcquire(key, limit, func() *Voice {
		e.nextID++
		v := &Voice{
			id:        e.nextID,
			key:       key,
			frequency: freq,
			waveform:  waveform,
			start:     now,
			peak:      SustainGain(e.baseGain, limit),
			env:       e.sched.env,
			gain:      NewAutomation(GainFloor),
		}
		e.sched.noteOn(v, now)
		return v
	})

	for _, old := range res.Evicted {
		e.sched.release(old, now)
		e.logger.Debugf("stole voice %d (%s) for %s", old.id, old.key, key)
	}
	if !res.Created() {
		return false
	}
	e.started = true
	e.logger.Debugf("note on %s %.3f Hz %s voice %d (%d/%d)",
		key, freq, waveform, res.Voice.id, e.pool.Len(), limit)
	return true
}

// Release moves the voice of key into its release phase. It is a no-op if
// the key has no voice or is already releasing.
func (e *Engine) Release(key keymap.KeyID) {
	if _, ok := e.table.Lookup(key); !ok || !e.ready.Load() {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	v, ok := e.pool.Lookup(key)
	if !ok {
		return
	}
	if e.sched.release(v, e.clock.Now()) {
		e.logger.Debugf("note off %s voice %d", key, v.id)
	}
}

// AllNotesOff releases every held voice.
func (e *Engine) AllNotesOff() {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	for v := range e.pool.All() {
		e.sched.release(v, now)
	}
}

// expire is the hard-stop callback for v. v is the voice captured when the
// release was scheduled; if its key now belongs to a newer voice, only v is
// torn down.
func (e *Engine) expire(v *Voice) {
	e.mu.Lock()
	defer e.mu.Unlock()

	v.stopTimer = nil
	if e.pool.Remove(v) {
		e.logger.Debugf("voice %d (%s) stopped", v.id, v.key)
	}
}

// IsKeyActive reports whether key has a held voice. Releasing voices are not
// active.
func (e *Engine) IsKeyActive(key keymap.KeyID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	v, ok := e.pool.Lookup(key)
	return ok && !v.releasing
}

// ActiveVoices returns the number of voices registered in the pool.
func (e *Engine) ActiveVoices() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pool.Len()
}

// SoundingVoices returns the number of voices producing output, stolen
// voices that are still releasing included.
func (e *Engine) SoundingVoices() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pool.Len() + e.pool.Detached()
}

// Voice returns the voice registered for key.
func (e *Engine) Voice(key keymap.KeyID) (*Voice, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pool.Lookup(key)
}

// SetWaveform changes the waveform of voices created from now on.
func (e *Engine) SetWaveform(w Waveform) {
	e.mu.Lock()
	e.waveform = w
	e.mu.Unlock()
}

func (e *Engine) Waveform() Waveform {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.waveform
}

// SetPolyphony changes the voice limit. It applies to the next note-on;
// voices already sounding are left alone.
func (e *Engine) SetPolyphony(n int) {
	e.mu.Lock()
	e.polyphony = max(1, n)
	e.mu.Unlock()
}

func (e *Engine) Polyphony() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.polyphony
}

// Envelope returns the ADSR settings.
func (e *Engine) Envelope() Envelope { return e.sched.env }

// Now returns the audio clock.
func (e *Engine) Now() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clock.Now()
}

// Status is "idle" until the first note sounds, then "audio started".
func (e *Engine) Status() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return StatusAudioStarted
	}
	return StatusIdle
}

// Meter returns the peak meter fed by the mix bus.
func (e *Engine) Meter() *Meter { return e.meter }

// mix renders len(dst) samples of the mixed output starting at clock time t0
// without advancing the engine clock.
func (e *Engine) mix(dst []float32, t0 float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.bus.Mix(dst, t0, e.pool.All())
}

// render is the audio callback: it mixes the next block and advances the
// frame clock inside the lock, so a note-on never lands inside a block that
// was already rendered.
func (e *Engine) render(dst []float32, frames *atomic.Int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t0 := float64(frames.Load()) / float64(e.bus.SampleRate())
	e.bus.Mix(dst, t0, e.pool.All())
	frames.Add(int64(len(dst)))
}

// Close stops every voice immediately.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pool.Clear()
	return nil
}
