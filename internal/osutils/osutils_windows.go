//go:build windows

package osutils

import (
	"fmt"
	"sync"
	"unsafe"

	"go.uber.org/zap"
	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/registry"
)

var (
	user32           = windows.NewLazySystemDLL("user32.dll")
	procFindWindow   = user32.NewProc("FindWindowW")
	procFindWindowEx = user32.NewProc("FindWindowExW")
	procPostMessage  = user32.NewProc("PostMessageW")

	versionOnce sync.Once
	version     OSVersion
)

const (
	WM_LBUTTONDOWN = 0x0201
	WM_LBUTTONUP   = 0x0202

	MK_LBUTTON = 0x0001
)

// Version returns the Windows generation, read once from the registry.
func Version() OSVersion {
	versionOnce.Do(func() {
		key, err := registry.OpenKey(registry.LOCAL_MACHINE, `SOFTWARE\Microsoft\Windows NT\CurrentVersion`, registry.QUERY_VALUE)
		if err != nil {
			zap.L().Named("osutils").Warn("cannot open CurrentVersion key", zap.Error(err))
			return
		}
		defer key.Close()

		name, _, err := key.GetStringValue("ProductName")
		if err != nil {
			zap.L().Named("osutils").Warn("cannot read ProductName", zap.Error(err))
			return
		}
		version = parseProductName(name)
	})
	return version
}

func findWindowEx(parent uintptr, class string) uintptr {
	className, err := windows.UTF16PtrFromString(class)
	if err != nil {
		return 0
	}
	hwnd, _, _ := procFindWindowEx.Call(parent, 0, uintptr(unsafe.Pointer(className)), 0)
	return hwnd
}

// TriggerTIPBand clicks the touch keyboard button in the taskbar
// notification area, which toggles the keyboard on Windows 10.
func TriggerTIPBand() error {
	trayClass, _ := windows.UTF16PtrFromString("Shell_TrayWnd")
	tray, _, _ := procFindWindow.Call(uintptr(unsafe.Pointer(trayClass)), 0)
	if tray == 0 {
		return fmt.Errorf("taskbar window not found")
	}
	notify := findWindowEx(tray, "TrayNotifyWnd")
	if notify == 0 {
		return fmt.Errorf("tray notification area not found")
	}
	band := findWindowEx(notify, "TIPBand")
	if band == 0 {
		return fmt.Errorf("touch keyboard button not found")
	}

	// lParam 0x10001 is the click point (1,1) inside the button.
	procPostMessage.Call(band, WM_LBUTTONDOWN, MK_LBUTTON, 0x10001)
	procPostMessage.Call(band, WM_LBUTTONUP, MK_LBUTTON, 0x10001)
	return nil
}
