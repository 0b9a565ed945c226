// Package prefs stores per-installation display preferences in a TOML
// file next to the data directory. These are device settings, not game
// state: they never replicate.
package prefs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Preferences are the accessibility and locale settings applied to every
// room hosted by this installation.
type Preferences struct {
	Language     string `toml:"language" json:"language"`
	DyslexicFont bool   `toml:"dyslexic_font" json:"dyslexicFont"`
	SoundEnabled bool   `toml:"sound_enabled" json:"soundEnabled"`
}

// Defaults returns the out-of-the-box preferences.
func Defaults() Preferences {
	return Preferences{
		Language:     "en",
		SoundEnabled: true,
	}
}

// Load reads preferences from path. A missing file is not an error: it
// returns Defaults.
func Load(path string) (Preferences, error) {
	p := Defaults()
	_, err := toml.DecodeFile(path, &p)
	if errors.Is(err, os.ErrNotExist) {
		return Defaults(), nil
	}
	if err != nil {
		return Preferences{}, fmt.Errorf("reading preferences: %w", err)
	}
	return p, nil
}

// Save writes preferences to path, creating parent directories.
func Save(path string, p Preferences) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating preferences dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("writing preferences: %w", err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(p); err != nil {
		return fmt.Errorf("encoding preferences: %w", err)
	}
	return f.Close()
}
