// Package config loads keyboard settings from the embedded defaults and an
// optional user YAML file. Bad values never fail the program: they resolve
// to defaults.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/icco/polykeys/internal/audio"
)

const (
	appName  = "polykeys"
	fileName = "config.yml"

	DefaultPolyphony = audio.DefaultPolyphony
	MaxPolyphony     = 16
	DefaultHold      = 650 * time.Millisecond
)

type (
	Config struct {
		Waveform  string         `yaml:"waveform"`
		Polyphony string         `yaml:"polyphony"`
		Hold      time.Duration  `yaml:"hold"`
		Envelope  audio.Envelope `yaml:"envelope"`
		Gain      Gain           `yaml:"gain"`
		Log       Log            `yaml:"log"`
	}

	Gain struct {
		Base   float64 `yaml:"base"`
		Master float64 `yaml:"master"`
	}

	Log struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	}
)

//go:embed config.yml
var defaultConfigYaml []byte

// Default returns the built-in settings.
func Default() Config {
	var c Config
	if err := decode(defaultConfigYaml, &c); err != nil {
		panic(fmt.Errorf("failed to unmarshal default config: %w", err))
	}
	return c
}

func decode(data []byte, target *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	err := dec.Decode(target)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// Path returns the user config file location.
func Path() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, appName, fileName), nil
}

// Load reads path on top of the defaults. An empty path means the user config
// file; a missing file is not an error. If the file cannot be parsed the
// defaults are returned together with the error.
func Load(path string) (Config, error) {
	c := Default()
	if path == "" {
		p, err := Path()
		if err != nil {
			return c, nil
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return c, fmt.Errorf("error reading %s: %w", path, err)
	}

	merged := c
	if err := decode(data, &merged); err != nil {
		return c, fmt.Errorf("error parsing %s: %w", path, err)
	}
	return merged, nil
}

// WaveformValue resolves the configured waveform, sine if unset or unknown.
func (c Config) WaveformValue() audio.Waveform {
	return audio.ParseWaveform(c.Waveform)
}

// PolyphonyValue resolves the configured voice limit.
func (c Config) PolyphonyValue() int {
	return ParsePolyphony(c.Polyphony)
}

// HoldValue returns the key hold timeout, the default if unset or negative.
func (c Config) HoldValue() time.Duration {
	if c.Hold <= 0 {
		return DefaultHold
	}
	return c.Hold
}

// EngineOptions turns the settings into engine options.
func (c Config) EngineOptions() []audio.Option {
	return []audio.Option{
		audio.WithWaveform(c.WaveformValue()),
		audio.WithPolyphony(c.PolyphonyValue()),
		audio.WithEnvelope(c.Envelope),
		audio.WithBaseGain(c.Gain.Base),
		audio.WithMasterGain(c.Gain.Master),
	}
}

// ParsePolyphony reads a voice limit the way a form field is read: the
// leading integer counts, anything non-numeric means the default, and values
// below one mean one.
func ParsePolyphony(s string) int {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return DefaultPolyphony
	}

	n := 0
	for _, c := range s[digits:end] {
		n = n*10 + int(c-'0')
		if n > MaxPolyphony {
			n = MaxPolyphony
		}
	}
	if s[0] == '-' {
		n = -n
	}
	return max(1, n)
}
