package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/icco/polykeys/internal/audio"
	"github.com/icco/polykeys/internal/keymap"
	"github.com/icco/polykeys/internal/log"
	"github.com/icco/polykeys/internal/tui"
)

// allNotesOff is the channel mode message that silences every note.
const allNotesOff = 123

var (
	deviceName string
)

var virtualCmd = &cobra.Command{
	Use:   "virtual",
	Short: "Create a virtual MIDI device that plays the keyboard",
	Long: `Create a virtual MIDI input device that can receive MIDI notes from other applications.

The virtual device will show up as a MIDI output destination in other music software.
Notes C4 to B5 (60 to 83) on any channel play the keyboard, with the same envelope
and voice limit as the terminal. Control change 123 releases every note. The
computer keyboard keeps working while the device is open.

Example:
  polykeys virtual --name "My Synth"
`,
	Run: runVirtual,
}

func init() {
	virtualCmd.Flags().StringVarP(&deviceName, "name", "n", "Polykeys Virtual Synth", "Name for the virtual MIDI device")
	rootCmd.AddCommand(virtualCmd)
}

func runVirtual(cmd *cobra.Command, args []string) {
	s, err := newSession(cmd)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer s.Close()

	driver, err := rtmididrv.New()
	if err != nil {
		s.Close()
		fmt.Printf("Error: failed to initialize MIDI driver: %v\n", err)
		os.Exit(1)
	}
	defer driver.Close()

	port, err := driver.OpenVirtualIn(deviceName)
	if err != nil {
		driver.Close()
		s.Close()
		fmt.Printf("Error: failed to create virtual MIDI port: %v\n", err)
		os.Exit(1)
	}
	defer port.Close()

	m := tui.NewModel(s.engine, s.table,
		tui.WithTitle("🎹 POLYKEYS "+deviceName),
		tui.WithHold(s.cfg.HoldValue()),
		tui.WithNotice("Listening on: "+port.String()),
		tui.WithLogger(s.logger),
	)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())

	// Callbacks run on the driver's thread; Send blocks until the program runs.
	in := &midiInput{engine: s.engine, table: s.table, logger: s.logger, send: p.Send}
	stop, err := port.Listen(in.handle, drivers.ListenConfig{})
	if err != nil {
		port.Close()
		driver.Close()
		s.Close()
		fmt.Printf("Error: failed to listen to MIDI port: %v\n", err)
		os.Exit(1)
	}
	defer stop()
	s.logger.Infof("listening on %s", port.String())

	// Handle graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		p.Send(tea.Quit())
	}()

	runUI(p, func() {
		stop()
		port.Close()
		driver.Close()
		s.Close()
	})
}

// midiInput plays incoming MIDI messages on the engine.
type midiInput struct {
	engine *audio.Engine
	table  *keymap.Table
	logger *log.Logger
	// send reports handled messages to the UI. May be nil.
	send func(tea.Msg)
}

func (in *midiInput) handle(data []byte, timestamp int32) {
	if in.send == nil {
		in.apply(midi.Message(data))
		return
	}
	for _, msg := range in.apply(midi.Message(data)) {
		in.send(msg)
	}
}

// apply performs msg and returns what the UI should learn about it: a
// NoteOnMsg for every voice started and a line for the message log.
func (in *midiInput) apply(msg midi.Message) []tea.Msg {
	var channel, key, velocity, controller, value uint8
	switch {
	case msg.GetNoteStart(&channel, &key, &velocity):
		id, ok := in.table.FromMIDINote(key)
		if !ok {
			in.logger.Debugf("midi: note %d out of range", key)
			return nil
		}
		line := tui.LogMsg(fmt.Sprintf("Note On:  Ch%d %-4s vel:%d", channel+1, in.table.NoteName(id), velocity))
		if in.engine.Press(id) {
			return []tea.Msg{tui.NoteOnMsg(id), line}
		}
		return []tea.Msg{line}
	case msg.GetNoteEnd(&channel, &key):
		id, ok := in.table.FromMIDINote(key)
		if !ok {
			return nil
		}
		in.engine.Release(id)
		return []tea.Msg{tui.LogMsg(fmt.Sprintf("Note Off: Ch%d %-4s", channel+1, in.table.NoteName(id)))}
	case msg.GetControlChange(&channel, &controller, &value):
		if controller != allNotesOff {
			return nil
		}
		in.engine.AllNotesOff()
		return []tea.Msg{tui.LogMsg(fmt.Sprintf("All Notes Off: Ch%d", channel+1))}
	}
	return nil
}
