package tui

import (
	"io"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/icco/polykeys/internal/audio"
	"github.com/icco/polykeys/internal/keymap"
)

type stubBackend struct{}

func (stubBackend) Start(io.Reader, int) error { return nil }
func (stubBackend) Resume() error              { return nil }

type fakeTime struct{ t time.Time }

func (f *fakeTime) now() time.Time          { return f.t }
func (f *fakeTime) advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestModel(t *testing.T, opts ...Option) (*Model, *audio.Engine, *fakeTime) {
	t.Helper()
	table := keymap.Default()
	engine := audio.NewEngine(table, audio.WithBackend(stubBackend{}), audio.WithPolyphony(4))
	t.Cleanup(func() { _ = engine.Close() })
	clock := &fakeTime{t: time.Unix(1000, 0)}
	opts = append([]Option{WithClock(clock.now), WithHold(650 * time.Millisecond)}, opts...)
	return NewModel(engine, table, opts...), engine, clock
}

func typeRune(m *Model, r rune) {
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
}

func TestKeyRepeatsPressOnce(t *testing.T) {
	m, engine, clock := newTestModel(t)

	typeRune(m, 'z')
	first, ok := engine.Voice("90")
	if !ok {
		t.Fatal("Expected a voice for Z")
	}
	for i := 0; i < 5; i++ {
		clock.advance(30 * time.Millisecond)
		typeRune(m, 'z')
	}
	if engine.ActiveVoices() != 1 {
		t.Errorf("Expected 1 voice, got %d", engine.ActiveVoices())
	}
	if v, _ := engine.Voice("90"); v != first {
		t.Error("Repeats replaced the voice")
	}
	if !engine.IsKeyActive("90") {
		t.Error("Z should be active")
	}
	if m.lastNote != "C4" || m.lastFreq == 0 {
		t.Errorf("Expected C4 to set the color, got %q", m.lastNote)
	}
}

func TestUnmappedKeysDoNothing(t *testing.T) {
	m, engine, _ := newTestModel(t)

	typeRune(m, 'a')
	typeRune(m, 'p')
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'z'}, Alt: true})

	if engine.ActiveVoices() != 0 {
		t.Errorf("Expected no voices, got %d", engine.ActiveVoices())
	}
	if len(m.held) != 0 {
		t.Errorf("Expected no held keys, got %v", m.held)
	}
	if engine.Status() != audio.StatusIdle {
		t.Errorf("Status = %q, want idle", engine.Status())
	}
}

func TestHeldKeyReleasedWhenRepeatsStop(t *testing.T) {
	m, engine, clock := newTestModel(t)

	typeRune(m, 'q')
	clock.advance(500 * time.Millisecond)
	typeRune(m, 'q') // auto-repeat keeps it down
	clock.advance(400 * time.Millisecond)
	m.Update(frameMsg(clock.now()))
	if !engine.IsKeyActive("81") {
		t.Fatal("Key released while repeats were still arriving")
	}

	clock.advance(300 * time.Millisecond)
	m.Update(frameMsg(clock.now()))
	if engine.IsKeyActive("81") {
		t.Error("Key should be released once repeats stop")
	}
	if _, held := m.held["81"]; held {
		t.Error("Key should no longer be tracked as held")
	}
}

func TestSettingsKeys(t *testing.T) {
	m, engine, _ := newTestModel(t)

	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	if engine.Waveform() != audio.WaveSquare {
		t.Errorf("tab: waveform = %v, want square", engine.Waveform())
	}
	m.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	m.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	if engine.Waveform() != audio.WaveTriangle {
		t.Errorf("shift+tab: waveform = %v, want triangle", engine.Waveform())
	}

	m.Update(tea.KeyMsg{Type: tea.KeyUp})
	if engine.Polyphony() != 5 {
		t.Errorf("up: polyphony = %d, want 5", engine.Polyphony())
	}
	for i := 0; i < 10; i++ {
		m.Update(tea.KeyMsg{Type: tea.KeyDown})
	}
	if engine.Polyphony() != 1 {
		t.Errorf("down: polyphony = %d, want 1", engine.Polyphony())
	}
}

func TestSpaceReleasesEverything(t *testing.T) {
	m, engine, _ := newTestModel(t)
	typeRune(m, 'z')
	typeRune(m, 'x')
	m.Update(tea.KeyMsg{Type: tea.KeySpace})

	if engine.IsKeyActive("90") || engine.IsKeyActive("88") {
		t.Error("space should release all notes")
	}
	if len(m.held) != 0 {
		t.Error("space should forget held keys")
	}
}

func TestQuitKeys(t *testing.T) {
	m, _, _ := newTestModel(t)
	for _, k := range []tea.KeyType{tea.KeyCtrlC, tea.KeyEsc} {
		_, cmd := m.Update(tea.KeyMsg{Type: k})
		if cmd == nil {
			t.Fatalf("%v: expected a quit command", k)
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Errorf("%v: expected tea.QuitMsg", k)
		}
	}
}

func TestMouse(t *testing.T) {
	m, engine, _ := newTestModel(t)

	// Second key cell (S, C#4) on the keyboard's lower row.
	m.Update(tea.MouseMsg{X: keyWidth + 1, Y: keyboardTop + 1, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft})
	if !engine.IsKeyActive("83") {
		t.Fatal("Clicking a key should press it")
	}

	m.Update(tea.MouseMsg{X: keyWidth + 2, Y: keyboardTop, Action: tea.MouseActionMotion, Button: tea.MouseButtonLeft})
	if !engine.IsKeyActive("83") {
		t.Fatal("Moving within the key should keep it down")
	}

	m.Update(tea.MouseMsg{X: 3 * keyWidth, Y: keyboardTop, Action: tea.MouseActionMotion, Button: tea.MouseButtonLeft})
	if engine.IsKeyActive("83") {
		t.Error("Leaving the key should release it")
	}

	m.Update(tea.MouseMsg{X: 0, Y: keyboardTop, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft})
	m.Update(tea.MouseMsg{X: 0, Y: keyboardTop, Action: tea.MouseActionRelease})
	if engine.IsKeyActive("90") {
		t.Error("Mouse up should release the key")
	}

	m.Update(tea.MouseMsg{X: 0, Y: 0, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft})
	m.Update(tea.MouseMsg{X: keyWidth - 1, Y: keyboardTop, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft})
	if engine.ActiveVoices() > 2 {
		t.Errorf("Clicks outside keys should not play: %d voices", engine.ActiveVoices())
	}
}

func TestKeyAt(t *testing.T) {
	m, _, _ := newTestModel(t)
	tests := []struct {
		x, y int
		want keymap.KeyID
		ok   bool
	}{
		{0, keyboardTop, "90", true},
		{2, keyboardTop + 1, "90", true},
		{3, keyboardTop, "", false}, // gap
		{4, keyboardTop, "83", true},
		{23*keyWidth + 1, keyboardTop, "85", true},
		{24 * keyWidth, keyboardTop, "", false},
		{0, keyboardTop - 1, "", false},
		{0, keyboardTop + keyboardRows, "", false},
	}
	for _, tt := range tests {
		got, ok := m.keyAt(tt.x, tt.y)
		if got != tt.want || ok != tt.ok {
			t.Errorf("keyAt(%d, %d) = %q, %v; want %q, %v", tt.x, tt.y, got, ok, tt.want, tt.ok)
		}
	}
}

func TestViewLayout(t *testing.T) {
	m, _, _ := newTestModel(t, WithNotice("Listening on: test port"))
	m.Update(LogMsg("Note On: A4"))

	view := m.View()
	lines := strings.Split(view, "\n")
	if len(lines) <= keyboardTop+keyboardRows {
		t.Fatalf("View too short: %d lines", len(lines))
	}
	if !strings.Contains(lines[keyboardTop], "Z") {
		t.Errorf("Keyboard not at line %d: %q", keyboardTop, lines[keyboardTop])
	}
	for _, want := range []string{"Status: ", "idle", "sine", "0.000", "(0.0%)", "Listening on: test port", "Note On: A4"} {
		if !strings.Contains(view, want) {
			t.Errorf("View missing %q", want)
		}
	}

	typeRune(m, 'z')
	if view := m.View(); !strings.Contains(view, "audio started") || !strings.Contains(view, "C4") {
		t.Error("View should show the started status and the last note")
	}
}

func TestFrameSamplesMeter(t *testing.T) {
	m, _, _ := newTestModel(t)
	m.peak = 0.5
	_, cmd := m.Update(frameMsg(time.Now()))
	if cmd == nil {
		t.Error("The frame loop must reschedule itself")
	}
	if m.peak != 0 {
		t.Errorf("Silent meter = %v, want 0", m.peak)
	}
}

func TestMeterPercent(t *testing.T) {
	tests := []struct {
		peak, want float64
	}{
		{0, 0},
		{0.123, 12.3},
		{1, 100},
		{1.7, 100},
		{-0.2, 0},
	}
	for _, tt := range tests {
		if got := MeterPercent(tt.peak); got < tt.want-1e-9 || got > tt.want+1e-9 {
			t.Errorf("MeterPercent(%v) = %v, want %v", tt.peak, got, tt.want)
		}
	}
}

func TestBackgroundColor(t *testing.T) {
	c := BackgroundColor(440)
	if len(c) != 7 || c[0] != '#' {
		t.Fatalf("BackgroundColor(440) = %q, want #rrggbb", c)
	}
	if BackgroundColor(440) == BackgroundColor(880) {
		t.Error("Different notes should get different colors")
	}
	if BackgroundColor(200) != BackgroundColor(1200) {
		t.Error("Hue wraps every 1000 Hz")
	}
}

func TestMessageHistoryIsBounded(t *testing.T) {
	m, _, _ := newTestModel(t)
	for i := 0; i < maxMessageHistory+5; i++ {
		m.Update(LogMsg("msg"))
	}
	m.Update(LogMsg(""))
	if len(m.messageHistory) != maxMessageHistory {
		t.Errorf("History length %d, want %d", len(m.messageHistory), maxMessageHistory)
	}
	if m.messageCount != maxMessageHistory+5 {
		t.Errorf("Message count %d, want %d", m.messageCount, maxMessageHistory+5)
	}
}

func TestNoteOnMsgMovesTheBackground(t *testing.T) {
	m, engine, _ := newTestModel(t)
	m.Update(NoteOnMsg("78"))

	if !strings.Contains(m.View(), "A4  hue 158") {
		t.Error("Swatch should show A4 at hue 158")
	}
	if m.lastFreq != 440 {
		t.Errorf("lastFreq = %v, want 440", m.lastFreq)
	}
	if engine.ActiveVoices() != 0 {
		t.Error("NoteOnMsg only updates the display")
	}

	m.Update(NoteOnMsg("65"))
	if m.lastNote != "A4" {
		t.Errorf("Unknown key changed the note to %q", m.lastNote)
	}
}
