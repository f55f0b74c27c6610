// Package automation turns focus changes of bound UI elements into keyboard
// open and close requests, and moves windows so the focused element stays
// visible above the keyboard.
package automation

import (
	"context"
	"time"

	"tabtip/internal/geometry"
	"tabtip/internal/hwkbd"
	"tabtip/internal/keyboard"
)

// VisualKind tells whether a root visual is a top-level window or an element
// hosted without one.
type VisualKind int

const (
	VisualWindow VisualKind = iota
	VisualElement
)

func (k VisualKind) String() string {
	if k == VisualWindow {
		return "window"
	}
	return "element"
}

// Visual is the root of an element's visual tree, the thing that actually
// gets moved. Implementations must be comparable (typically a pointer) since
// the hub keys move state by Visual.
//
// For windows Position is the window's top edge in logical units. For other
// roots it is the vertical translation applied to the root.
type Visual interface {
	Kind() VisualKind
	Window() geometry.WindowHandle
	Alive() bool
	Bounds() (geometry.Rect, error)
	Position() (float64, error)
	SetPosition(y float64) error
}

// StateNotifier is implemented by visuals that can report being restored
// from a minimized or maximized state.
type StateNotifier interface {
	OnRestored(fn func())
}

// Element is a focusable UI element.
type Element interface {
	// Bounds returns the element rectangle in logical screen coordinates,
	// including any transform already applied to its root.
	Bounds() (geometry.Rect, error)
	// Root returns nil when the element is not attached to a visual tree.
	Root() Visual
}

// FocusSource is the host UI layer. Handlers registered for an element type
// apply to every instance of that type.
type FocusSource interface {
	RegisterFocusHandler(elementType string, handler func(el Element, focused bool)) error
	RegisterTapHandler(elementType string, handler func(el Element)) error
}

// FocusEvent is one focus change of a bound element. Tap marks a tap on an
// element that already had focus.
type FocusEvent struct {
	Element Element
	Focused bool
	Tap     bool
	Time    time.Time
}

// Keyboard is the subset of keyboard.Controller the hub drives.
type Keyboard interface {
	Open(mode keyboard.DockMode) error
	Close() error
	OnClosed(fn func()) (unsubscribe func())
}

// Geometry is the subset of geometry.Engine the hub needs.
type Geometry interface {
	WorkAreaClosed(win geometry.WindowHandle) (geometry.Rect, error)
	WorkAreaOpened(win geometry.WindowHandle) (geometry.Rect, error)
}

// PresenceChecker reports whether a hardware keyboard counts as attached.
type PresenceChecker interface {
	Present(ctx context.Context, policy hwkbd.IgnorePolicy, ignored []string) bool
}

var (
	_ Keyboard        = (*keyboard.Controller)(nil)
	_ Geometry        = (*geometry.Engine)(nil)
	_ PresenceChecker = (*hwkbd.Detector)(nil)
)
