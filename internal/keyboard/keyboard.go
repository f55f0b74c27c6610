// Package keyboard controls the on-screen touch keyboard and detects when it
// has been closed.
package keyboard

import (
	"fmt"
	"strings"

	"tabtip/internal/geometry"
)

// ClosedStyle is the window style the keyboard window carries while hidden.
const ClosedStyle uint32 = 0x9C000000

// DockMode selects how the keyboard presents itself when opened.
type DockMode int

const (
	DockNoChange DockMode = iota
	DockDocked
	DockUndocked
)

func (m DockMode) String() string {
	switch m {
	case DockDocked:
		return "docked"
	case DockUndocked:
		return "undocked"
	default:
		return "nochange"
	}
}

// ParseDockMode parses the String form of a DockMode.
func ParseDockMode(s string) (DockMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "nochange", "no_change":
		return DockNoChange, nil
	case "docked":
		return DockDocked, nil
	case "undocked", "floating":
		return DockUndocked, nil
	default:
		return DockNoChange, fmt.Errorf("unknown dock mode %q", s)
	}
}

func (m DockMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *DockMode) UnmarshalText(text []byte) error {
	parsed, err := ParseDockMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Window is the OS-level keyboard window and process.
type Window interface {
	// Launch starts the keyboard process, which shows the keyboard.
	Launch() error

	// PostClose asks the keyboard window to close.
	PostClose() error

	// Rect returns the keyboard window bounds in device pixels.
	Rect() (geometry.Rect, error)

	// Style returns the keyboard window style bits.
	Style() (uint32, error)
}

// DockStore persists the docked/floating preference read by the keyboard.
type DockStore interface {
	SetDocked(docked bool) error
}
