package cmd

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/icco/polykeys/internal/keymap"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Print the key to note mapping",
	Run:   runKeys,
}

func init() {
	rootCmd.AddCommand(keysCmd)
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	capStyle    = lipgloss.NewStyle().Bold(true).Width(4)
	sharpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
)

func runKeys(cmd *cobra.Command, args []string) {
	table := keymap.Default()
	fmt.Println(headerStyle.Render("Key Note  Frequency  MIDI"))
	for i, id := range table.Keys() {
		freq, _ := table.Lookup(id)
		line := fmt.Sprintf("%-4s %9.2f Hz  %d", table.NoteName(id), freq, keymap.FirstMIDINote+i)
		if table.IsBlack(id) {
			line = sharpStyle.Render(line)
		}
		fmt.Println(capStyle.Render(keymap.Label(id)) + line)
	}
}
