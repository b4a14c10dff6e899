// Package buildconfig composes build configurations from a common base and a
// mode specific overlay.
//
// A Configuration is an untyped tree. Values the composer does not recognise
// as sequences or mappings (plugin and rule handles, scalars) are carried
// through by reference and never inspected.
package buildconfig

import (
	"fmt"
	"strings"
)

// Configuration describes how source assets are processed and bundled.
type Configuration map[string]any

// Mode selects which overlay is applied on top of the common configuration.
type Mode string

const (
	Production  Mode = "production"
	Development Mode = "development"
)

// Modes lists the recognized modes in the order they are reported.
var Modes = []Mode{Production, Development}

// ParseMode returns the Mode matching s exactly.
func ParseMode(s string) (Mode, error) {
	for _, m := range Modes {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w %q: expected one of %s", ErrUnknownMode, s, modeList())
}

func modeList() string {
	names := make([]string, len(Modes))
	for i, m := range Modes {
		names[i] = string(m)
	}
	return strings.Join(names, ", ")
}

// Set holds the common configuration and one overlay per mode.
type Set struct {
	Common      Configuration
	Production  Configuration
	Development Configuration
}

// Overlay returns the overlay for mode.
func (s Set) Overlay(mode Mode) Configuration {
	switch mode {
	case Production:
		return s.Production
	case Development:
		return s.Development
	default:
		return nil
	}
}

// Composer produces the final configuration for one invocation.
type Composer struct {
	mode string
	set  Set
}

// NewComposer captures the mode once; later changes to the process
// environment have no effect on the composer.
func NewComposer(mode string, set Set) *Composer {
	return &Composer{mode: mode, set: set}
}

// Mode returns the mode the composer was created with.
func (c *Composer) Mode() string {
	return c.mode
}

// Compose merges the common configuration with the overlay for the
// composer's mode. An unrecognized or empty mode fails with ErrUnknownMode.
func (c *Composer) Compose() (Configuration, error) {
	mode, err := ParseMode(c.mode)
	if err != nil {
		return nil, err
	}

	return Merge(c.set.Common, c.set.Overlay(mode)), nil
}
