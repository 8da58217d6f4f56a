// Package style holds the named layout presets consulted by panel views.
package style

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// ErrMissingPreset is returned when a presets document lacks "all" or "solo".
var ErrMissingPreset = errors.New("missing preset")

// StylePreset is a width/height pair.
type StylePreset struct {
	Height float64 `json:"height" yaml:"height" toml:"height"`
	Width  float64 `json:"width" yaml:"width" toml:"width"`
}

// Presets is the pair of named layouts.
type Presets struct {
	All  *StylePreset `json:"all" yaml:"all" toml:"all"`
	Solo *StylePreset `json:"solo" yaml:"solo" toml:"solo"`
}

// Validate checks both presets are present with non-negative dimensions.
func (p Presets) Validate() error {
	named := []struct {
		name string
		sp   *StylePreset
	}{{"all", p.All}, {"solo", p.Solo}}
	for _, n := range named {
		name, sp := n.name, n.sp
		if sp == nil {
			return fmt.Errorf("%w: %s", ErrMissingPreset, name)
		}
		if sp.Height < 0 || sp.Width < 0 {
			return fmt.Errorf("preset %s: negative dimensions %vx%v", name, sp.Width, sp.Height)
		}
	}
	return nil
}

// DefaultPresets returns the built-in layouts.
func DefaultPresets() Presets {
	return Presets{
		All:  &StylePreset{Height: 400, Width: 600},
		Solo: &StylePreset{Height: 200, Width: 450},
	}
}

// Source supplies presets to views. Callers must treat returned values as
// read-only; views compare them by pointer identity.
type Source interface {
	All() *StylePreset
	Solo() *StylePreset
}

type staticSource struct {
	presets Presets
}

// Static returns a Source whose preset pointers never change.
func Static(p Presets) Source {
	return &staticSource{presets: p}
}

func (s *staticSource) All() *StylePreset  { return s.presets.All }
func (s *staticSource) Solo() *StylePreset { return s.presets.Solo }

// LoadFile reads presets from a YAML (.yaml, .yml) or TOML (.toml) file.
func LoadFile(path string) (Presets, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Presets{}, fmt.Errorf("reading presets: %w", err)
	}

	var p Presets
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &p)
	case ".toml":
		err = toml.Unmarshal(data, &p)
	default:
		return Presets{}, fmt.Errorf("presets %s: unsupported extension", path)
	}
	if err != nil {
		return Presets{}, fmt.Errorf("parsing presets: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Presets{}, fmt.Errorf("presets %s: %w", path, err)
	}
	return p, nil
}
