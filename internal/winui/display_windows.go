//go:build windows

package winui

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"

	"tabtip/internal/geometry"
)

var (
	procMonitorFromWindow = user32.NewProc("MonitorFromWindow")
	procGetMonitorInfo    = user32.NewProc("GetMonitorInfoW")
	shell32               = windows.NewLazySystemDLL("shell32.dll")
	procSHAppBarMessage   = shell32.NewProc("SHAppBarMessage")
)

const (
	monitorDefaultToPrimary = 0x00000001
	monitorDefaultToNearest = 0x00000002

	abmGetTaskbarPos = 0x00000005
)

type monitorInfo struct {
	CbSize  uint32
	Monitor windows.Rect
	Work    windows.Rect
	Flags   uint32
}

type appBarData struct {
	CbSize           uint32
	HWnd             uintptr
	UCallbackMessage uint32
	UEdge            uint32
	Rc               windows.Rect
	LParam           uintptr
}

// systemDisplay answers geometry queries from user32 and the shell.
type systemDisplay struct{}

// NewDisplay returns the geometry.Display of the running OS.
func NewDisplay() (geometry.Display, error) {
	return systemDisplay{}, nil
}

func (systemDisplay) MonitorBounds(win geometry.WindowHandle) (geometry.Rect, error) {
	flags := uintptr(monitorDefaultToPrimary)
	if win != 0 {
		if r, _, _ := procIsWindow.Call(uintptr(win)); r == 0 {
			return geometry.Rect{}, geometry.ErrWindowUnresolved
		}
		flags = monitorDefaultToNearest
	}

	hmon, _, _ := procMonitorFromWindow.Call(uintptr(win), flags)
	if hmon == 0 {
		return geometry.Rect{}, geometry.ErrWindowUnresolved
	}

	mi := monitorInfo{CbSize: uint32(unsafe.Sizeof(monitorInfo{}))}
	r, _, err := procGetMonitorInfo.Call(hmon, uintptr(unsafe.Pointer(&mi)))
	if r == 0 {
		return geometry.Rect{}, fmt.Errorf("GetMonitorInfo: %w", err)
	}
	m := mi.Monitor
	return geometry.FromLTRB(int(m.Left), int(m.Top), int(m.Right), int(m.Bottom)), nil
}

func (systemDisplay) DPI(win geometry.WindowHandle) (float64, float64, error) {
	if win == 0 {
		if procGetDpiForSystem.Find() != nil {
			return geometry.LogicalDPI, geometry.LogicalDPI, nil
		}
		dpi, _, _ := procGetDpiForSystem.Call()
		return float64(dpi), float64(dpi), nil
	}
	if procGetDpiForWindow.Find() != nil {
		return geometry.LogicalDPI, geometry.LogicalDPI, nil
	}
	dpi, _, _ := procGetDpiForWindow.Call(uintptr(win))
	if dpi == 0 {
		return 0, 0, geometry.ErrWindowUnresolved
	}
	return float64(dpi), float64(dpi), nil
}

// Taskbar reports no taskbar when the shell does not answer, which leaves
// the whole screen as work area.
func (systemDisplay) Taskbar() (geometry.Taskbar, error) {
	abd := appBarData{CbSize: uint32(unsafe.Sizeof(appBarData{}))}
	r, _, _ := procSHAppBarMessage.Call(abmGetTaskbarPos, uintptr(unsafe.Pointer(&abd)))
	if r == 0 {
		return geometry.Taskbar{Position: geometry.TaskbarNone}, nil
	}
	rc := abd.Rc
	return geometry.Taskbar{
		Bounds:   geometry.FromLTRB(int(rc.Left), int(rc.Top), int(rc.Right), int(rc.Bottom)),
		Position: taskbarPosition(abd.UEdge),
	}, nil
}
