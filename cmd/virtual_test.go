package cmd

import (
	"context"
	"io"
	"os"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"gitlab.com/gomidi/midi/v2"

	"github.com/icco/polykeys/internal/audio"
	"github.com/icco/polykeys/internal/keymap"
	"github.com/icco/polykeys/internal/log"
	"github.com/icco/polykeys/internal/tui"
)

type nullBackend struct{}

func (nullBackend) Start(io.Reader, int) error { return nil }
func (nullBackend) Resume() error              { return nil }

func newTestInput(t *testing.T) (*midiInput, *audio.Engine, *[]string) {
	t.Helper()
	table := keymap.Default()
	engine := audio.NewEngine(table, audio.WithBackend(nullBackend{}), audio.WithPolyphony(4))
	t.Cleanup(func() { _ = engine.Close() })
	var lines []string
	in := &midiInput{
		engine: engine,
		table:  table,
		logger: log.Discard(),
		send: func(msg tea.Msg) {
			if line, ok := msg.(tui.LogMsg); ok {
				lines = append(lines, string(line))
			}
		},
	}
	return in, engine, &lines
}

func TestMIDINotes(t *testing.T) {
	in, engine, lines := newTestInput(t)

	in.handle(midi.NoteOn(0, 60, 100), 0)
	if !engine.IsKeyActive("90") {
		t.Fatal("Note 60 should press Z")
	}
	in.handle(midi.NoteOn(2, 83, 90), 0)
	if !engine.IsKeyActive("85") {
		t.Fatal("Note 83 should press U")
	}

	in.handle(midi.NoteOff(0, 60), 0)
	if engine.IsKeyActive("90") {
		t.Error("Note off should release Z")
	}
	// Note on with velocity 0 is a note off.
	in.handle(midi.NoteOn(2, 83, 0), 0)
	if engine.IsKeyActive("85") {
		t.Error("Zero velocity note on should release U")
	}

	want := []string{
		"Note On:  Ch1 C4   vel:100",
		"Note On:  Ch3 B5   vel:90",
		"Note Off: Ch1 C4  ",
		"Note Off: Ch3 B5  ",
	}
	if len(*lines) != len(want) {
		t.Fatalf("Got %d log lines, want %d: %q", len(*lines), len(want), *lines)
	}
	for i := range want {
		if (*lines)[i] != want[i] {
			t.Errorf("Line %d = %q, want %q", i, (*lines)[i], want[i])
		}
	}
}

func TestMIDIIgnoresNotesOffKeyboard(t *testing.T) {
	in, engine, lines := newTestInput(t)

	in.handle(midi.NoteOn(0, 59, 100), 0)
	in.handle(midi.NoteOn(0, 84, 100), 0)
	in.handle(midi.NoteOff(0, 20), 0)
	in.handle(midi.ControlChange(0, 7, 100), 0)
	in.handle(midi.Pitchbend(0, 100), 0)

	if engine.ActiveVoices() != 0 {
		t.Errorf("Expected no voices, got %d", engine.ActiveVoices())
	}
	if len(*lines) != 0 {
		t.Errorf("Expected nothing logged, got %q", *lines)
	}
}

func TestMIDIAllNotesOff(t *testing.T) {
	in, engine, _ := newTestInput(t)

	in.handle(midi.NoteOn(0, 60, 100), 0)
	in.handle(midi.NoteOn(0, 64, 100), 0)
	in.handle(midi.ControlChange(0, allNotesOff, 0), 0)

	for _, id := range []keymap.KeyID{"90", "67"} {
		if engine.IsKeyActive(id) {
			t.Errorf("%s still active after all notes off", id)
		}
	}
}

func TestMIDINoteOnMovesTheBackground(t *testing.T) {
	in, engine, _ := newTestInput(t)
	model := tui.NewModel(engine, in.table)
	var sent []tea.Msg
	in.send = func(msg tea.Msg) {
		sent = append(sent, msg)
		model.Update(msg)
	}

	in.handle(midi.NoteOn(0, 69, 100), 0)

	if len(sent) == 0 || sent[0] != tui.NoteOnMsg("78") {
		t.Fatalf("Expected a note-on for A4 first, got %v", sent)
	}
	view := model.View()
	if !strings.Contains(view, "A4  hue 158") {
		t.Errorf("Background should follow the MIDI note, view:\n%s", view)
	}

	// A repeated note-on for a sounding key starts nothing.
	sent = nil
	in.handle(midi.NoteOn(0, 69, 100), 0)
	for _, msg := range sent {
		if _, ok := msg.(tui.NoteOnMsg); ok {
			t.Error("No note-on expected for a key that is already sounding")
		}
	}
}

type quitModel struct{}

func (quitModel) Init() tea.Cmd                       { return nil }
func (quitModel) Update(tea.Msg) (tea.Model, tea.Cmd) { return quitModel{}, nil }
func (quitModel) View() string                        { return "" }

func TestRunUIExitsOnFailure(t *testing.T) {
	code := -1
	exit = func(c int) { code = c }
	t.Cleanup(func() { exit = os.Exit })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := tea.NewProgram(quitModel{},
		tea.WithContext(ctx),
		tea.WithInput(nil),
		tea.WithOutput(io.Discard),
		tea.WithoutSignalHandler(),
	)
	cleaned := false
	runUI(p, func() { cleaned = true })

	if code != 1 {
		t.Errorf("Exit code = %d, want 1", code)
	}
	if !cleaned {
		t.Error("Cleanup should run before exiting")
	}
}
