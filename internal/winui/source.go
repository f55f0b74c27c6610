// Package winui connects the automation hub to native desktop windows:
// focus and tap notifications from system hooks, window moves, and the
// monitor and taskbar queries behind the geometry engine.
package winui

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"tabtip/internal/automation"
	"tabtip/internal/geometry"
)

// ErrUnsupportedPlatform is returned when running on an unsupported OS
var ErrUnsupportedPlatform = errors.New("unsupported platform")

// Source is an automation.FocusSource fed by system-wide hooks. Element types
// are native window class names such as "Edit" or "RichEdit20W".
type Source struct {
	logger *zap.Logger
	// element wraps a native handle; replaced in tests.
	element func(s *Source, hwnd geometry.WindowHandle) automation.Element

	mu       sync.Mutex
	focus    map[string][]func(automation.Element, bool)
	taps     map[string][]func(automation.Element)
	restored map[geometry.WindowHandle][]func()

	focused      geometry.WindowHandle
	focusedClass string

	threadID uint32
}

var _ automation.FocusSource = (*Source)(nil)

// NewSource creates a Source. Call Run to install the hooks.
func NewSource(logger *zap.Logger) *Source {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Source{
		logger:   logger.Named("winui"),
		element:  newElement,
		focus:    make(map[string][]func(automation.Element, bool)),
		taps:     make(map[string][]func(automation.Element)),
		restored: make(map[geometry.WindowHandle][]func()),
	}
}

func (s *Source) RegisterFocusHandler(elementType string, handler func(el automation.Element, focused bool)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.focus[elementType] = append(s.focus[elementType], handler)
	return nil
}

func (s *Source) RegisterTapHandler(elementType string, handler func(el automation.Element)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.taps[elementType] = append(s.taps[elementType], handler)
	return nil
}

// focusChanged records that keyboard focus moved to hwnd. The previously
// focused window loses focus first; either side is reported only when its
// class is bound.
func (s *Source) focusChanged(hwnd geometry.WindowHandle, class string) {
	s.mu.Lock()
	prev, prevClass := s.focused, s.focusedClass
	if prev == hwnd {
		s.mu.Unlock()
		return
	}
	s.focused, s.focusedClass = hwnd, class
	lost := append([]func(automation.Element, bool){}, s.focus[prevClass]...)
	gained := append([]func(automation.Element, bool){}, s.focus[class]...)
	s.mu.Unlock()

	if prev != 0 && len(lost) > 0 {
		el := s.element(s, prev)
		for _, fn := range lost {
			fn(el, false)
		}
	}
	if hwnd != 0 && len(gained) > 0 {
		s.logger.Debug("bound element focused", zap.String("class", class), zap.Uintptr("hwnd", uintptr(hwnd)))
		el := s.element(s, hwnd)
		for _, fn := range gained {
			fn(el, true)
		}
	}
}

// tapped reports a tap or click on the focused window.
func (s *Source) tapped() {
	s.mu.Lock()
	hwnd := s.focused
	handlers := append([]func(automation.Element){}, s.taps[s.focusedClass]...)
	s.mu.Unlock()

	if hwnd == 0 || len(handlers) == 0 {
		return
	}
	el := s.element(s, hwnd)
	for _, fn := range handlers {
		fn(el)
	}
}

func (s *Source) focusedWindow() geometry.WindowHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.focused
}

func (s *Source) onRestored(hwnd geometry.WindowHandle, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restored[hwnd] = append(s.restored[hwnd], fn)
}

// windowRestored fires the restore callbacks of hwnd.
func (s *Source) windowRestored(hwnd geometry.WindowHandle) {
	s.mu.Lock()
	fns := append([]func(){}, s.restored[hwnd]...)
	s.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// windowDestroyed drops state kept for hwnd. A destroyed focused window
// counts as losing focus.
func (s *Source) windowDestroyed(hwnd geometry.WindowHandle) {
	if s.focusedWindow() == hwnd {
		s.focusChanged(0, "")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.restored, hwnd)
}
