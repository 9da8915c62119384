package cmd

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/icco/polykeys/internal/tui"
)

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Play the keyboard from the terminal",
	Long: `Play the keyboard with your computer keyboard or the mouse.

The audio device is opened on the first key press. Tab and shift+tab change the
waveform, the arrow keys change the polyphony limit and space releases every
note.`,
	Run: runPlay,
}

func init() {
	rootCmd.AddCommand(playCmd)
	rootCmd.Run = runPlay
}

func runPlay(cmd *cobra.Command, args []string) {
	s, err := newSession(cmd)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer s.Close()

	m := tui.NewModel(s.engine, s.table,
		tui.WithHold(s.cfg.HoldValue()),
		tui.WithLogger(s.logger),
	)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	runUI(p, s.Close)
}
