package audio

import "sync"

// ringBuffer keeps the most recent len(Buffer) values written to it.
type ringBuffer[T any] struct {
	Buffer []T
	Cursor int
}

func (r *ringBuffer[T]) WriteWrap(values []T) {
	r.Cursor = (r.Cursor + len(values)) % len(r.Buffer)
	a := min(len(values), r.Cursor)                 // values that land before the cursor
	b := min(len(values)-a, len(r.Buffer)-r.Cursor) // values that land at the end of the buffer
	copy(r.Buffer[r.Cursor-a:r.Cursor], values[len(values)-a:])
	copy(r.Buffer[len(r.Buffer)-b:], values[len(values)-a-b:])
}

// tap is the analysis point between the bus and the output: it remembers the
// last window of mixed samples for the meter.
type tap struct {
	mu   sync.Mutex
	ring ringBuffer[float32]
}

func newTap(size int) *tap {
	return &tap{ring: ringBuffer[float32]{Buffer: make([]float32, size)}}
}

func (t *tap) write(samples []float32) {
	t.mu.Lock()
	t.ring.WriteWrap(samples)
	t.mu.Unlock()
}

// tryRead copies the window into dst without waiting. It returns false if the
// audio thread is writing.
func (t *tap) tryRead(dst []float32) bool {
	if !t.mu.TryLock() {
		return false
	}
	copy(dst, t.ring.Buffer)
	t.mu.Unlock()
	return true
}

func (t *tap) size() int { return len(t.ring.Buffer) }
