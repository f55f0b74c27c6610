//go:build windows

package winui

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"

	"tabtip/internal/automation"
	"tabtip/internal/geometry"
)

var (
	procGetWindowRect      = user32.NewProc("GetWindowRect")
	procGetAncestor        = user32.NewProc("GetAncestor")
	procIsWindow           = user32.NewProc("IsWindow")
	procIsZoomed           = user32.NewProc("IsZoomed")
	procSetWindowPos       = user32.NewProc("SetWindowPos")
	procGetDpiForWindow    = user32.NewProc("GetDpiForWindow")
	procGetDpiForSystem    = user32.NewProc("GetDpiForSystem")
	procSetDpiAwareness    = user32.NewProc("SetProcessDpiAwarenessContext")
	procSetProcessDPIAware = user32.NewProc("SetProcessDPIAware")
)

const (
	gaRoot = 2

	swpNoSize     = 0x0001
	swpNoZOrder   = 0x0004
	swpNoActivate = 0x0010
)

// dpiAwarenessPerMonitorV2 is DPI_AWARENESS_CONTEXT_PER_MONITOR_AWARE_V2.
var dpiAwarenessPerMonitorV2 = ^uintptr(3) // -4

// EnableDPIAwareness makes window and monitor queries report device pixels.
func EnableDPIAwareness() {
	if procSetDpiAwareness.Find() == nil {
		if r, _, _ := procSetDpiAwareness.Call(dpiAwarenessPerMonitorV2); r != 0 {
			return
		}
	}
	if procSetProcessDPIAware.Find() == nil {
		procSetProcessDPIAware.Call()
	}
}

// windowElement is a focused native control.
type windowElement struct {
	hwnd   uintptr
	source *Source
}

func newElement(s *Source, hwnd geometry.WindowHandle) automation.Element {
	return &windowElement{hwnd: uintptr(hwnd), source: s}
}

func (e *windowElement) Bounds() (geometry.Rect, error) {
	return logicalWindowRect(e.hwnd)
}

// Root is the top-level window of the element. A maximized window fills
// the screen and cannot be moved, and its content belongs to another
// process, so it has no root to reposition.
func (e *windowElement) Root() automation.Visual {
	root, _, _ := procGetAncestor.Call(e.hwnd, gaRoot)
	if root == 0 {
		return nil
	}
	if zoomed, _, _ := procIsZoomed.Call(root); zoomed != 0 {
		return nil
	}
	return windowVisual{hwnd: root, source: e.source}
}

// windowVisual is a top-level window. It is a value type so that every
// element of one window maps to the same key.
type windowVisual struct {
	hwnd   uintptr
	source *Source
}

func (v windowVisual) Kind() automation.VisualKind { return automation.VisualWindow }

func (v windowVisual) Window() geometry.WindowHandle { return geometry.WindowHandle(v.hwnd) }

func (v windowVisual) Alive() bool {
	r, _, _ := procIsWindow.Call(v.hwnd)
	return r != 0
}

func (v windowVisual) Bounds() (geometry.Rect, error) {
	return logicalWindowRect(v.hwnd)
}

func (v windowVisual) Position() (float64, error) {
	rect, err := logicalWindowRect(v.hwnd)
	if err != nil {
		return 0, err
	}
	return float64(rect.Top), nil
}

func (v windowVisual) SetPosition(y float64) error {
	rect, err := windowRect(v.hwnd)
	if err != nil {
		return err
	}
	top := toDevice(y, windowDPI(v.hwnd))
	r, _, err := procSetWindowPos.Call(v.hwnd, 0, uintptr(rect.Left), uintptr(top), 0, 0,
		swpNoSize|swpNoZOrder|swpNoActivate)
	if r == 0 {
		return fmt.Errorf("SetWindowPos: %w", err)
	}
	return nil
}

func (v windowVisual) OnRestored(fn func()) {
	v.source.onRestored(geometry.WindowHandle(v.hwnd), fn)
}

func windowRect(hwnd uintptr) (geometry.Rect, error) {
	var rect windows.Rect
	r, _, err := procGetWindowRect.Call(hwnd, uintptr(unsafe.Pointer(&rect)))
	if r == 0 {
		return geometry.Rect{}, fmt.Errorf("GetWindowRect: %w", err)
	}
	return geometry.FromLTRB(int(rect.Left), int(rect.Top), int(rect.Right), int(rect.Bottom)), nil
}

func logicalWindowRect(hwnd uintptr) (geometry.Rect, error) {
	rect, err := windowRect(hwnd)
	if err != nil {
		return geometry.Rect{}, err
	}
	dpi := windowDPI(hwnd)
	return geometry.ToLogical(rect, dpi, dpi), nil
}

func windowDPI(hwnd uintptr) float64 {
	if procGetDpiForWindow.Find() != nil {
		return geometry.LogicalDPI
	}
	dpi, _, _ := procGetDpiForWindow.Call(hwnd)
	if dpi == 0 {
		return geometry.LogicalDPI
	}
	return float64(dpi)
}
