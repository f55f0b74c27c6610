package geometry

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// ErrWindowUnresolved is returned by a Display when a window handle cannot be
// mapped to a monitor or DPI context, e.g. because it is not shown yet.
var ErrWindowUnresolved = errors.New("window cannot be resolved to a monitor")

// WindowHandle identifies a native top-level window. Zero means "no window".
type WindowHandle uintptr

// Display answers OS bounds queries in device pixels.
type Display interface {
	// MonitorBounds returns the bounds of the monitor nearest win, or of the
	// primary monitor when win is zero.
	MonitorBounds(win WindowHandle) (Rect, error)

	// DPI returns the effective horizontal and vertical DPI for win.
	DPI(win WindowHandle) (x, y float64, err error)

	// Taskbar returns the current taskbar bounds and edge.
	Taskbar() (Taskbar, error)
}

// KeyboardSource supplies the on-screen keyboard rectangle in device pixels.
type KeyboardSource interface {
	WouldBeRect() Rect
}

// Engine computes work areas. Nothing is cached: every call queries the
// display again because monitors, DPI and taskbar can change between calls.
type Engine struct {
	display  Display
	keyboard KeyboardSource
	logger   *zap.Logger
}

// NewEngine creates an Engine.
func NewEngine(display Display, keyboard KeyboardSource, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		display:  display,
		keyboard: keyboard,
		logger:   logger.Named("geometry"),
	}
}

type dpiScale struct {
	x, y float64
}

func (s dpiScale) logical(r Rect) Rect {
	return ToLogical(r, s.x, s.y)
}

// resolve returns the device-pixel monitor bounds for win and the DPI used to
// convert them, falling back to the primary monitor and then to the zero Rect.
func (e *Engine) resolve(win WindowHandle) (Rect, dpiScale, error) {
	scale := dpiScale{x: LogicalDPI, y: LogicalDPI}

	bounds, err := e.display.MonitorBounds(win)
	if errors.Is(err, ErrWindowUnresolved) && win != 0 {
		e.logger.Debug("window not resolvable, using primary monitor", zap.Uintptr("window", uintptr(win)))
		win = 0
		bounds, err = e.display.MonitorBounds(0)
	}
	if errors.Is(err, ErrWindowUnresolved) {
		e.logger.Debug("no monitor available")
		return Rect{}, scale, nil
	}
	if err != nil {
		return Rect{}, scale, fmt.Errorf("query monitor bounds: %w", err)
	}

	x, y, err := e.display.DPI(win)
	switch {
	case errors.Is(err, ErrWindowUnresolved):
	case err != nil:
		return Rect{}, scale, fmt.Errorf("query dpi: %w", err)
	default:
		scale = dpiScale{x: x, y: y}
	}
	return bounds, scale, nil
}

// ScreenBounds returns the logical bounds of the monitor nearest win.
func (e *Engine) ScreenBounds(win WindowHandle) (Rect, error) {
	bounds, scale, err := e.resolve(win)
	if err != nil {
		return Rect{}, err
	}
	return scale.logical(bounds), nil
}

// WorkAreaClosed returns the screen bounds minus the taskbar strip.
func (e *Engine) WorkAreaClosed(win WindowHandle) (Rect, error) {
	bounds, scale, err := e.resolve(win)
	if err != nil {
		return Rect{}, err
	}
	screen := scale.logical(bounds)

	taskbar, err := e.display.Taskbar()
	if err != nil {
		return Rect{}, fmt.Errorf("query taskbar: %w", err)
	}
	return workAreaWithoutTaskbar(screen, Taskbar{
		Bounds:   scale.logical(taskbar.Bounds),
		Position: taskbar.Position,
	}), nil
}

// WorkAreaOpened returns the closed work area cut off at the top of the
// keyboard. If the keyboard has never been measured, the vertical midpoint of
// the closed work area is used instead.
func (e *Engine) WorkAreaOpened(win WindowHandle) (Rect, error) {
	closed, err := e.WorkAreaClosed(win)
	if err != nil {
		return Rect{}, err
	}

	_, scale, err := e.resolve(win)
	if err != nil {
		return Rect{}, err
	}
	keyboardTop := scale.logical(e.keyboard.WouldBeRect()).Top
	return workAreaAboveKeyboard(closed, keyboardTop), nil
}

func workAreaWithoutTaskbar(screen Rect, taskbar Taskbar) Rect {
	switch taskbar.Position {
	case TaskbarBottom:
		return FromLTRB(screen.Left, screen.Top, screen.Right, taskbar.Bounds.Top)
	case TaskbarTop:
		return FromLTRB(screen.Left, taskbar.Bounds.Bottom, screen.Right, screen.Bottom)
	default:
		return screen
	}
}

// workAreaAboveKeyboard cuts closed at the keyboard top. An unmeasured
// keyboard is assumed to cover the lower half of the screen, so the bottom is
// closed.Bottom / 2 even when a top taskbar shifts closed.Top.
func workAreaAboveKeyboard(closed Rect, keyboardTop int) Rect {
	bottom := keyboardTop
	if keyboardTop == 0 {
		bottom = closed.Bottom / 2
	}
	return FromLTRB(closed.Left, closed.Top, closed.Right, bottom)
}
