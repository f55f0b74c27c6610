//go:build windows

package keyboard

import (
	"fmt"
	"os"
	"path/filepath"
	"unsafe"

	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/registry"

	"tabtip/internal/geometry"
	"tabtip/internal/osutils"
)

var (
	user32            = windows.NewLazySystemDLL("user32.dll")
	procFindWindow    = user32.NewProc("FindWindowW")
	procGetWindowLong = user32.NewProc("GetWindowLongW")
	procGetWindowRect = user32.NewProc("GetWindowRect")
	procPostMessage   = user32.NewProc("PostMessageW")

	// GWL_STYLE is negative, so it cannot be a uintptr constant.
	gwlStyle = int32(-16)
)

const (
	windowClassName = "IPTip_Main_Window"

	wmSysCommand = 0x0112
	scClose      = 0xF060
	swShowNormal = 1

	dockKeyPath   = `Software\Microsoft\TabletTip\1.7`
	dockValueName = "EdgeTargetDockedState"
)

// systemWindow drives TabTip.exe through user32.
type systemWindow struct {
	execPath string
}

// NewSystemWindow returns the Window backed by the running OS.
func NewSystemWindow() (Window, error) {
	return &systemWindow{execPath: tabTipPath()}, nil
}

func tabTipPath() string {
	common := os.Getenv("CommonProgramW6432")
	if common == "" {
		common = os.Getenv("CommonProgramFiles")
	}
	if common == "" {
		common = `C:\Program Files\Common Files`
	}
	return filepath.Join(common, "microsoft shared", "ink", "TabTip.exe")
}

func findKeyboardWindow() (uintptr, error) {
	className, err := windows.UTF16PtrFromString(windowClassName)
	if err != nil {
		return 0, err
	}
	hwnd, _, _ := procFindWindow.Call(uintptr(unsafe.Pointer(className)), 0)
	if hwnd == 0 {
		return 0, ErrWindowNotFound
	}
	return hwnd, nil
}

func (w *systemWindow) Launch() error {
	verb, _ := windows.UTF16PtrFromString("open")
	exe, err := windows.UTF16PtrFromString(w.execPath)
	if err != nil {
		return err
	}

	err = windows.ShellExecute(0, verb, exe, nil, nil, swShowNormal)
	if err == nil {
		return nil
	}
	if osutils.Version() == osutils.Win10 {
		if tipErr := osutils.TriggerTIPBand(); tipErr == nil {
			return nil
		}
	}
	return fmt.Errorf("start %s: %w", w.execPath, err)
}

func (w *systemWindow) PostClose() error {
	hwnd, err := findKeyboardWindow()
	if err != nil {
		return err
	}
	ret, _, callErr := procPostMessage.Call(hwnd, wmSysCommand, scClose, 0)
	if ret == 0 {
		return fmt.Errorf("PostMessage: %w", callErr)
	}
	return nil
}

func (w *systemWindow) Rect() (geometry.Rect, error) {
	hwnd, err := findKeyboardWindow()
	if err != nil {
		return geometry.Rect{}, err
	}
	var r windows.Rect
	ret, _, callErr := procGetWindowRect.Call(hwnd, uintptr(unsafe.Pointer(&r)))
	if ret == 0 {
		return geometry.Rect{}, fmt.Errorf("GetWindowRect: %w", callErr)
	}
	return geometry.FromLTRB(int(r.Left), int(r.Top), int(r.Right), int(r.Bottom)), nil
}

func (w *systemWindow) Style() (uint32, error) {
	hwnd, err := findKeyboardWindow()
	if err != nil {
		return 0, err
	}
	style, _, _ := procGetWindowLong.Call(hwnd, uintptr(gwlStyle))
	return uint32(style), nil
}

// registryDockStore writes the TabTip docking preference for the current user.
type registryDockStore struct{}

// NewSystemDockStore returns the DockStore backed by the registry.
func NewSystemDockStore() (DockStore, error) {
	return registryDockStore{}, nil
}

func (registryDockStore) SetDocked(docked bool) error {
	key, _, err := registry.CreateKey(registry.CURRENT_USER, dockKeyPath, registry.SET_VALUE)
	if err != nil {
		return fmt.Errorf("open %s: %w", dockKeyPath, err)
	}
	defer key.Close()

	var value uint32
	if docked {
		value = 1
	}
	return key.SetDWordValue(dockValueName, value)
}
