package cmd

import (
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/icco/polykeys/internal/audio"
	"github.com/icco/polykeys/internal/config"
	"github.com/icco/polykeys/internal/keymap"
	"github.com/icco/polykeys/internal/log"
)

var (
	configPath string
	waveform   string
	polyphony  string
	logFile    string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "polykeys",
	Short: "A polyphonic keyboard synthesizer for the terminal",
	Long: `polykeys turns your computer keyboard into a small polyphonic synthesizer.

Two octaves are mapped onto the keyboard: Z S X D C V G B H N J M play C4 to B4
and Q 2 W 3 E R 5 T 6 Y 7 U play C5 to B5. Each note gets an ADSR envelope, the
number of simultaneous voices is limited and the oldest note is stolen when the
limit is reached.

Settings are read from $XDG_CONFIG_HOME/polykeys/config.yml and can be
overridden with flags.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "config file (default $XDG_CONFIG_HOME/polykeys/config.yml)")
	flags.StringVarP(&waveform, "waveform", "w", "", "oscillator waveform: sine, square, sawtooth or triangle")
	flags.StringVarP(&polyphony, "polyphony", "p", "", "maximum number of simultaneous voices")
	flags.StringVar(&logFile, "log-file", "", "write debug logs to this file")
	flags.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error")
}

// exit is os.Exit, replaced in tests.
var exit = os.Exit

// runUI runs p. If the program fails, cleanup runs and the process exits with
// status 1.
func runUI(p *tea.Program, cleanup func()) {
	if _, err := p.Run(); err != nil {
		cleanup()
		fmt.Printf("Error running program: %v\n", err)
		exit(1)
	}
}

// session is what every command that plays sound needs.
type session struct {
	cfg     config.Config
	table   *keymap.Table
	engine  *audio.Engine
	logger  *log.Logger
	logSink io.Closer
}

// newSession loads the configuration, applies the flags and builds the
// engine. The audio device is not opened until the first note.
func newSession(cmd *cobra.Command) (*session, error) {
	s := &session{table: keymap.Default()}

	// A broken config file falls back to the defaults; it only shows up in the log.
	cfg, loadErr := config.Load(configPath)
	flags := cmd.Flags()
	if flags.Changed("waveform") {
		cfg.Waveform = waveform
	}
	if flags.Changed("polyphony") {
		cfg.Polyphony = polyphony
	}
	if flags.Changed("log-file") {
		cfg.Log.File = logFile
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	s.cfg = cfg

	s.logger = log.Discard()
	if cfg.Log.File != "" {
		f, err := tea.LogToFile(cfg.Log.File, "polykeys")
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		s.logSink = f
		s.logger = log.New(f, log.LevelFromString(cfg.Log.Level))
	}
	if loadErr != nil {
		s.logger.Warnf("config: %v, using defaults", loadErr)
	}

	wave := cfg.WaveformValue()
	if cfg.Waveform != wave.String() {
		s.logger.Debugf("config: waveform %q resolved to %s", cfg.Waveform, wave)
	}
	s.logger.Debugf("config: polyphony %q resolved to %d", cfg.Polyphony, cfg.PolyphonyValue())

	opts := append(cfg.EngineOptions(), audio.WithLogger(s.logger))
	s.engine = audio.NewEngine(s.table, opts...)
	return s, nil
}

func (s *session) Close() {
	if s.engine != nil {
		s.engine.Close()
	}
	if s.logSink != nil {
		s.logSink.Close()
	}
}
