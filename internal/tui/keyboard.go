// Package tui is the terminal front end of the keyboard: it turns key and
// mouse events into note presses and releases and draws the keys, the
// settings and the peak meter.
package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/icco/polykeys/internal/audio"
	"github.com/icco/polykeys/internal/config"
	"github.com/icco/polykeys/internal/keymap"
	"github.com/icco/polykeys/internal/log"
)

const (
	// frameInterval is the display refresh cadence of the meter loop.
	frameInterval = time.Second / 60

	maxMessageHistory = 20
)

// frameMsg drives the meter and the key hold watchdog.
type frameMsg time.Time

// LogMsg adds a line to the message log. Input sources other than the
// terminal (MIDI) use it to report what they did.
type LogMsg string

// NoteOnMsg reports a voice started by another input source, so the display
// follows it like a key typed in the terminal.
type NoteOnMsg keymap.KeyID

// Model is the bubbletea model of the keyboard.
type Model struct {
	engine *audio.Engine
	table  *keymap.Table
	logger *log.Logger
	title  string
	hold   time.Duration
	now    func() time.Time

	// held maps keys pressed from the terminal to the last time a press or
	// auto-repeat for them arrived.
	held     map[keymap.KeyID]time.Time
	mouseKey keymap.KeyID

	peak float64
	// lastFreq is the frequency of the most recent note-on, 0 before the first.
	lastFreq float64
	lastNote string

	notice         string
	messageHistory []string
	messageCount   int

	width  int
	height int
}

// Option configures a Model.
type Option func(*Model)

// WithHold sets how long a terminal key stays down after its last repeat.
func WithHold(d time.Duration) Option {
	return func(m *Model) {
		if d > 0 {
			m.hold = d
		}
	}
}

// WithTitle sets the header text.
func WithTitle(title string) Option {
	return func(m *Model) { m.title = title }
}

// WithNotice shows a line under the keyboard, e.g. the MIDI port in use.
func WithNotice(notice string) Option {
	return func(m *Model) { m.notice = notice }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(m *Model) { m.logger = l }
}

// WithClock replaces the wall clock used for key holds.
func WithClock(now func() time.Time) Option {
	return func(m *Model) { m.now = now }
}

// NewModel creates the keyboard model for engine.
func NewModel(engine *audio.Engine, table *keymap.Table, opts ...Option) *Model {
	m := &Model{
		engine:         engine,
		table:          table,
		logger:         log.Discard(),
		title:          "🎹 POLYKEYS",
		hold:           config.DefaultHold,
		now:            time.Now,
		held:           make(map[keymap.KeyID]time.Time),
		messageHistory: make([]string, 0, maxMessageHistory),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Model) Init() tea.Cmd {
	return nextFrame()
}

func nextFrame() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg {
		return frameMsg(t)
	})
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case frameMsg:
		m.releaseStaleKeys()
		m.peak = m.engine.Meter().Sample()
		return m, nextFrame()

	case LogMsg:
		m.addMessage(string(msg))
		return m, nil

	case NoteOnMsg:
		m.noteOn(keymap.KeyID(msg))
		return m, nil

	case tea.MouseMsg:
		m.handleMouse(msg)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		return m, tea.Quit
	case tea.KeyTab:
		m.engine.SetWaveform(m.engine.Waveform().Next(1))
	case tea.KeyShiftTab:
		m.engine.SetWaveform(m.engine.Waveform().Next(-1))
	case tea.KeyUp:
		m.engine.SetPolyphony(min(config.MaxPolyphony, m.engine.Polyphony()+1))
	case tea.KeyDown:
		m.engine.SetPolyphony(max(1, m.engine.Polyphony()-1))
	case tea.KeySpace:
		m.releaseAll()
	case tea.KeyRunes:
		if len(msg.Runes) == 1 && !msg.Alt {
			m.keyDown(keymap.FromRune(msg.Runes[0]))
		}
	}
	return m, nil
}

// keyDown handles a press or auto-repeat of a terminal key. Only the first
// event of a hold reaches the engine.
func (m *Model) keyDown(id keymap.KeyID) {
	if _, ok := m.table.Lookup(id); !ok {
		return
	}
	now := m.now()
	if _, held := m.held[id]; held {
		m.held[id] = now
		return
	}
	m.held[id] = now
	m.press(id)
}

// releaseStaleKeys releases terminal keys whose repeats stopped arriving.
func (m *Model) releaseStaleKeys() {
	now := m.now()
	for id, seen := range m.held {
		if now.Sub(seen) > m.hold {
			delete(m.held, id)
			m.engine.Release(id)
		}
	}
}

func (m *Model) releaseAll() {
	clear(m.held)
	m.mouseKey = ""
	m.engine.AllNotesOff()
}

func (m *Model) press(id keymap.KeyID) {
	if m.engine.Press(id) {
		m.noteOn(id)
	}
}

// noteOn moves the background color to the note just started.
func (m *Model) noteOn(id keymap.KeyID) {
	freq, ok := m.table.Lookup(id)
	if !ok {
		return
	}
	m.lastFreq = freq
	m.lastNote = m.table.NoteName(id)
}

func (m *Model) handleMouse(msg tea.MouseMsg) {
	switch msg.Action {
	case tea.MouseActionPress:
		if msg.Button != tea.MouseButtonLeft {
			return
		}
		id, ok := m.keyAt(msg.X, msg.Y)
		if !ok {
			return
		}
		m.mouseKey = id
		m.press(id)
	case tea.MouseActionMotion:
		// Dragging off a key lets go of it.
		if m.mouseKey == "" {
			return
		}
		if id, ok := m.keyAt(msg.X, msg.Y); !ok || id != m.mouseKey {
			m.engine.Release(m.mouseKey)
			m.mouseKey = ""
		}
	case tea.MouseActionRelease:
		if m.mouseKey != "" {
			m.engine.Release(m.mouseKey)
			m.mouseKey = ""
		}
	}
}

// keyAt returns the key drawn at screen cell (x, y).
func (m *Model) keyAt(x, y int) (keymap.KeyID, bool) {
	if y < keyboardTop || y >= keyboardTop+keyboardRows {
		return "", false
	}
	if x < 0 || x%keyWidth == keyWidth-1 {
		return "", false
	}
	keys := m.table.Keys()
	i := x / keyWidth
	if i >= len(keys) {
		return "", false
	}
	return keys[i], true
}

func (m *Model) addMessage(message string) {
	if message == "" {
		return
	}
	m.messageCount++
	// Keep most recent at top
	m.messageHistory = append([]string{message}, m.messageHistory...)
	if len(m.messageHistory) > maxMessageHistory {
		m.messageHistory = m.messageHistory[:maxMessageHistory]
	}
}
