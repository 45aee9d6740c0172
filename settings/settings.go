// Package settings serves the process-wide settings document through a
// result cache backed by a YAML file.
package settings

import (
	"errors"
	"fmt"
	"maps"
)

var (
	// ErrInvalidSettings is returned when a settings document fails validation.
	ErrInvalidSettings = errors.New("settings: invalid settings")

	// ErrReadOnly is returned by Update when the source cannot be written.
	ErrReadOnly = errors.New("settings: source is read-only")
)

// Themes accepted by Validate.
const (
	ThemeSystem = "system"
	ThemeLight  = "light"
	ThemeDark   = "dark"
)

// Settings is the global settings document.
type Settings struct {
	Theme        string `yaml:"theme" json:"theme"`
	DefaultModel string `yaml:"defaultModel" json:"defaultModel"`

	// MaxConcurrency bounds agents running at once in auto mode.
	MaxConcurrency int `yaml:"maxConcurrency" json:"maxConcurrency"`

	Features map[string]bool `yaml:"features,omitempty" json:"features,omitempty"`

	// Extra holds keys this version does not know about. Values are shared
	// between clones.
	Extra map[string]any `yaml:"extra,omitempty" json:"extra,omitempty"`
}

// Defaults returns the settings used when no file exists.
func Defaults() Settings {
	return Settings{
		Theme:          ThemeSystem,
		DefaultModel:   "sonnet",
		MaxConcurrency: 3,
	}
}

// Validate reports the first invalid field, wrapped in ErrInvalidSettings.
func (s Settings) Validate() error {
	switch s.Theme {
	case ThemeSystem, ThemeLight, ThemeDark:
	default:
		return fmt.Errorf("%w: unknown theme %q", ErrInvalidSettings, s.Theme)
	}
	if s.DefaultModel == "" {
		return fmt.Errorf("%w: defaultModel is required", ErrInvalidSettings)
	}
	if s.MaxConcurrency < 1 || s.MaxConcurrency > 64 {
		return fmt.Errorf("%w: maxConcurrency must be in [1, 64], got %d", ErrInvalidSettings, s.MaxConcurrency)
	}
	return nil
}

// Enabled reports whether the named feature flag is on.
func (s Settings) Enabled(feature string) bool {
	return s.Features[feature]
}

// Clone returns a copy whose maps can be modified without touching s.
func (s Settings) Clone() Settings {
	s.Features = maps.Clone(s.Features)
	s.Extra = maps.Clone(s.Extra)
	return s
}
