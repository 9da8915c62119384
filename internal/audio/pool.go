package audio

import (
	"iter"
	"slices"

	"github.com/icco/polykeys/internal/keymap"
)

// AcquireStatus is the outcome of Pool.TryAcquire.
type AcquireStatus int

const (
	// AcquireCreated means a new voice was admitted without stealing.
	AcquireCreated AcquireStatus = iota
	// AcquireAlreadyActive means the key already has a voice, held or
	// releasing. Nothing changed.
	AcquireAlreadyActive
	// AcquireEvicted means older voices were stolen to make room before the
	// new voice was admitted.
	AcquireEvicted
)

func (s AcquireStatus) String() string {
	switch s {
	case AcquireCreated:
		return "created"
	case AcquireAlreadyActive:
		return "already active"
	case AcquireEvicted:
		return "created after eviction"
	default:
		return "unknown"
	}
}

// AcquireResult reports what TryAcquire did. Voice is the key's voice (new
// or existing). Evicted holds the stolen voices; they are no longer
// registered under their key but still sound until their release ends.
type AcquireResult struct {
	Status  AcquireStatus
	Voice   *Voice
	Evicted []*Voice
}

// Created reports whether a new voice was admitted.
func (r AcquireResult) Created() bool {
	return r.Status == AcquireCreated || r.Status == AcquireEvicted
}

// Pool is the registry of live voices, at most one per key. Voices stolen to
// make room are detached: they leave the registry, so they no longer count
// against the polyphony limit or block their key, and they stay audible
// until their release finishes. Pool is not safe for concurrent use.
type Pool struct {
	voices map[keymap.KeyID]*Voice
	// order holds registered keys in admission order. Eviction scans it, so
	// among voices with equal start times the earliest admitted goes first.
	// That tie-break is an implementation detail, not part of the contract.
	order    []keymap.KeyID
	detached []*Voice
}

func NewPool() *Pool {
	return &Pool{voices: make(map[keymap.KeyID]*Voice)}
}

// Len returns the number of registered voices.
func (p *Pool) Len() int { return len(p.voices) }

// Lookup returns the voice registered for key.
func (p *Pool) Lookup(key keymap.KeyID) (*Voice, bool) {
	v, ok := p.voices[key]
	return v, ok
}

// TryAcquire admits a voice for key. If key already has a voice the call is a
// no-op. Otherwise, while the pool holds limit or more voices, the oldest is
// detached and returned in Evicted so the caller can release it, then spawn
// builds the new voice. After a voice is created Len() <= limit.
func (p *Pool) TryAcquire(key keymap.KeyID, limit int, spawn func() *Voice) AcquireResult {
	if v, ok := p.voices[key]; ok {
		return AcquireResult{Status: AcquireAlreadyActive, Voice: v}
	}

	limit = max(1, limit)
	res := AcquireResult{Status: AcquireCreated}
	for len(p.voices) >= limit {
		oldest := p.oldest()
		if oldest == nil {
			break
		}
		p.detach(oldest)
		res.Evicted = append(res.Evicted, oldest)
		res.Status = AcquireEvicted
	}

	v := spawn()
	p.voices[key] = v
	p.order = append(p.order, key)
	res.Voice = v
	return res
}

func (p *Pool) oldest() *Voice {
	var oldest *Voice
	for _, k := range p.order {
		v := p.voices[k]
		if oldest == nil || v.start < oldest.start {
			oldest = v
		}
	}
	return oldest
}

// detach moves v from the registry to the detached list.
func (p *Pool) detach(v *Voice) {
	p.unregister(v.key)
	p.detached = append(p.detached, v)
}

func (p *Pool) unregister(key keymap.KeyID) {
	delete(p.voices, key)
	if i := slices.Index(p.order, key); i >= 0 {
		p.order = slices.Delete(p.order, i, i+1)
	}
}

// Remove tears down v and drops it from the pool. Only v itself is removed:
// if its key has since been given to a newer voice, that voice is left
// alone. Returns false if v was no longer in the pool.
func (p *Pool) Remove(v *Voice) bool {
	v.teardown()
	if cur, ok := p.voices[v.key]; ok && cur == v {
		p.unregister(v.key)
		return true
	}
	if i := slices.Index(p.detached, v); i >= 0 {
		p.detached = slices.Delete(p.detached, i, i+1)
		return true
	}
	return false
}

// ForceRemove tears down the voice registered for key, whatever its phase,
// and removes it.
func (p *Pool) ForceRemove(key keymap.KeyID) bool {
	v, ok := p.voices[key]
	if !ok {
		return false
	}
	v.teardown()
	p.unregister(key)
	return true
}

// Clear tears down and removes every voice, detached ones included.
func (p *Pool) Clear() {
	for _, k := range slices.Clone(p.order) {
		p.ForceRemove(k)
	}
	for _, v := range p.detached {
		v.teardown()
	}
	p.detached = p.detached[:0]
}

// All yields every voice in the pool: registered voices in admission order,
// then detached ones.
func (p *Pool) All() iter.Seq[*Voice] {
	return func(yield func(*Voice) bool) {
		for _, k := range p.order {
			if !yield(p.voices[k]) {
				return
			}
		}
		for _, v := range p.detached {
			if !yield(v) {
				return
			}
		}
	}
}

// Detached returns the number of stolen voices still finishing their release.
func (p *Pool) Detached() int { return len(p.detached) }
