package audio

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/ebitengine/oto/v3"
)

const (
	sampleRate   = 44100
	channelCount = 2 // stereo
	bitDepth     = 2 // 16-bit
)

// Backend plays the PCM stream produced by the engine: 16-bit signed little
// endian, stereo, at the engine's sample rate.
type Backend interface {
	Start(src io.Reader, sampleRate int) error
	// Resume restarts a suspended device. It must be safe to call repeatedly.
	Resume() error
}

// OtoBackend plays through the system audio device.
type OtoBackend struct {
	BufferSize time.Duration

	ctx    *oto.Context
	player *oto.Player
}

func (b *OtoBackend) Start(src io.Reader, rate int) error {
	op := &oto.NewContextOptions{
		SampleRate:   rate,
		ChannelCount: channelCount,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   b.BufferSize,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return fmt.Errorf("failed to open audio device: %w", err)
	}
	<-readyChan

	b.ctx = ctx
	b.player = ctx.NewPlayer(src)
	b.player.Play()
	return nil
}

func (b *OtoBackend) Resume() error {
	if b.ctx == nil {
		return nil
	}
	return b.ctx.Resume()
}

// streamReader implements io.Reader for continuous audio generation. The
// frames it has produced are the audio clock.
type streamReader struct {
	render func(dst []float32, frames *atomic.Int64)
	frames atomic.Int64
	rate   float64
	mono   []float32
}

func (r *streamReader) Now() float64 {
	return float64(r.frames.Load()) / r.rate
}

func (r *streamReader) Read(buf []byte) (int, error) {
	numSamples := len(buf) / (channelCount * bitDepth)
	if cap(r.mono) < numSamples {
		r.mono = make([]float32, numSamples)
	}
	mono := r.mono[:numSamples]
	r.render(mono, &r.frames)

	for i, s := range mono {
		// Convert to 16-bit signed integer
		sampleInt := int16(s * 32767)

		// Write stereo samples (same for L and R)
		idx := i * channelCount * bitDepth
		buf[idx] = byte(sampleInt)
		buf[idx+1] = byte(sampleInt >> 8)
		buf[idx+2] = byte(sampleInt)
		buf[idx+3] = byte(sampleInt >> 8)
	}

	return numSamples * channelCount * bitDepth, nil
}
