// Package keymap holds the fixed two-octave key layout of the keyboard and
// the pitch of every key.
package keymap

import (
	"math"
	"strconv"
	"unicode"
)

// KeyID identifies one key. It is the decimal code of the upper-case key cap
// character, e.g. "90" for Z.
type KeyID string

const (
	// FirstMIDINote is the MIDI note of the lowest key (C4).
	FirstMIDINote = 60
	// NumKeys is the number of keys on the keyboard.
	NumKeys = 24
)

type key struct {
	id   KeyID
	freq float64
}

// Layout in pitch order, C4 to B5. The lower octave sits on the bottom letter
// row, the upper octave on the top letter row with the number row as the
// black keys.
var layout = [NumKeys]key{
	{"90", 261.625565300598634}, // Z  C4
	{"83", 277.182630976872096}, // S  C#4
	{"88", 293.664767917407560}, // X  D4
	{"68", 311.126983722080910}, // D  D#4
	{"67", 329.627556912869929}, // C  E4
	{"86", 349.228231433003884}, // V  F4
	{"71", 369.994422711634398}, // G  F#4
	{"66", 391.995435981749294}, // B  G4
	{"72", 415.304697579945138}, // H  G#4
	{"78", 440.000000000000000}, // N  A4
	{"74", 466.163761518089916}, // J  A#4
	{"77", 493.883301256124111}, // M  B4

	{"81", 523.251130601197269}, // Q  C5
	{"50", 554.365261953744192}, // 2  C#5
	{"87", 587.329535834815120}, // W  D5
	{"51", 622.253967444161821}, // 3  D#5
	{"69", 659.255113825739859}, // E  E5
	{"82", 698.456462866007768}, // R  F5
	{"53", 739.988845423268797}, // 5  F#5
	{"84", 783.990871963498588}, // T  G5
	{"54", 830.609395159890277}, // 6  G#5
	{"89", 880.000000000000000}, // Y  A5
	{"55", 932.327523036179832}, // 7  A#5
	{"85", 987.766602512248223}, // U  B5
}

var noteNames = []string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// Table maps keys to their frequency in Hz. It is read-only after Default
// returns it and safe for concurrent use.
type Table struct {
	freqs map[KeyID]float64
	index map[KeyID]int
	order []KeyID
}

// Default builds the table for the standard two-octave layout.
func Default() *Table {
	t := &Table{
		freqs: make(map[KeyID]float64, NumKeys),
		index: make(map[KeyID]int, NumKeys),
		order: make([]KeyID, 0, NumKeys),
	}
	for i, k := range layout {
		t.freqs[k.id] = k.freq
		t.index[k.id] = i
		t.order = append(t.order, k.id)
	}
	return t
}

// Lookup returns the frequency of id. ok is false for keys that are not on
// the keyboard.
func (t *Table) Lookup(id KeyID) (freq float64, ok bool) {
	freq, ok = t.freqs[id]
	return freq, ok
}

// Keys returns the key ids in pitch order.
func (t *Table) Keys() []KeyID {
	return append([]KeyID(nil), t.order...)
}

// FromMIDINote returns the key playing MIDI note n.
func (t *Table) FromMIDINote(n uint8) (KeyID, bool) {
	i := int(n) - FirstMIDINote
	if i < 0 || i >= len(t.order) {
		return "", false
	}
	return t.order[i], true
}

// NoteName returns the scientific pitch name of id, e.g. "C#4".
func (t *Table) NoteName(id KeyID) string {
	i, ok := t.index[id]
	if !ok {
		return ""
	}
	note := FirstMIDINote + i
	return noteNames[note%12] + strconv.Itoa(note/12-1)
}

// IsBlack reports whether id is a sharp.
func (t *Table) IsBlack(id KeyID) bool {
	i, ok := t.index[id]
	if !ok {
		return false
	}
	switch i % 12 {
	case 1, 3, 6, 8, 10:
		return true
	}
	return false
}

// FromRune returns the id of the key cap r. Letters match case-insensitively.
// The result may not be on the keyboard; callers check with Lookup.
func FromRune(r rune) KeyID {
	return KeyID(strconv.Itoa(int(unicode.ToUpper(r))))
}

// Label returns the key cap character of id.
func Label(id KeyID) string {
	code, err := strconv.Atoi(string(id))
	if err != nil || code <= 0 || code > unicode.MaxRune {
		return "?"
	}
	return string(rune(code))
}

// Hue maps a frequency to a color hue in degrees.
func Hue(freq float64) float64 {
	return math.Mod(freq, 1000) / 1000 * 360
}
