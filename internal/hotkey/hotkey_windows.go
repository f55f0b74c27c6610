//go:build windows

package hotkey

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32                  = windows.NewLazySystemDLL("user32.dll")
	procSetWindowsHookEx    = user32.NewProc("SetWindowsHookExW")
	procCallNextHookEx      = user32.NewProc("CallNextHookEx")
	procUnhookWindowsHookEx = user32.NewProc("UnhookWindowsHookEx")
	procGetMessage          = user32.NewProc("GetMessageW")
	procPeekMessage         = user32.NewProc("PeekMessageW")
	procPostThreadMessage   = user32.NewProc("PostThreadMessageW")
	kernel32                = windows.NewLazySystemDLL("kernel32.dll")
	procGetModuleHandle     = kernel32.NewProc("GetModuleHandleW")
)

const (
	whKeyboardLL = 13
	wmKeyDown    = 0x0100
	wmKeyUp      = 0x0101
	wmSysKeyDown = 0x0104
	wmSysKeyUp   = 0x0105
	wmQuit       = 0x0012
	wmUser       = 0x0400
)

type kbdllHookStruct struct {
	VkCode      uint32
	ScanCode    uint32
	Flags       uint32
	Time        uint32
	DwExtraInfo uintptr
}

type message struct {
	Hwnd    syscall.Handle
	Message uint32
	Wparam  uintptr
	Lparam  uintptr
	Time    uint32
	Pt      struct{ X, Y int32 }
}

var (
	instanceMu      sync.Mutex
	instanceManager *Manager
	keyboardHook    uintptr
)

var keyboardCallback = syscall.NewCallback(keyboardHookProc)

// Run installs the low-level keyboard hook and pumps messages on a locked
// OS thread until ctx is done.
func (m *Manager) Run(ctx context.Context) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	instanceMu.Lock()
	if instanceManager != nil {
		instanceMu.Unlock()
		return errors.New("hotkey: a manager is already running")
	}
	instanceManager = m
	instanceMu.Unlock()
	defer func() {
		instanceMu.Lock()
		instanceManager = nil
		instanceMu.Unlock()
	}()

	var msg message
	procPeekMessage.Call(uintptr(unsafe.Pointer(&msg)), 0, wmUser, wmUser, 0)
	threadID := windows.GetCurrentThreadId()

	hMod, _, _ := procGetModuleHandle.Call(0)
	hook, _, err := procSetWindowsHookEx.Call(whKeyboardLL, keyboardCallback, hMod, 0)
	if hook == 0 {
		return fmt.Errorf("SetWindowsHookEx: %w", err)
	}
	keyboardHook = hook
	defer procUnhookWindowsHookEx.Call(hook)

	stop := context.AfterFunc(ctx, func() {
		procPostThreadMessage.Call(uintptr(threadID), wmQuit, 0, 0)
	})
	defer stop()

	m.logger.Info("keyboard hook installed")
	for {
		ret, _, err := procGetMessage.Call(uintptr(unsafe.Pointer(&msg)), 0, 0, 0)
		switch int32(ret) {
		case -1:
			return fmt.Errorf("GetMessage: %w", err)
		case 0:
			return ctx.Err()
		}
	}
}

func keyboardHookProc(nCode int, wParam uintptr, lParam uintptr) uintptr {
	if m := instanceManager; nCode == 0 && m != nil {
		kbd := (*kbdllHookStruct)(unsafe.Pointer(lParam))
		if name := vkCodeToName(kbd.VkCode); name != "" {
			switch wParam {
			case wmKeyDown, wmSysKeyDown:
				m.UpdateState(name, true)
			case wmKeyUp, wmSysKeyUp:
				m.UpdateState(name, false)
			}
		}
	}
	ret, _, _ := procCallNextHookEx.Call(keyboardHook, uintptr(nCode), wParam, lParam)
	return ret
}

func vkCodeToName(vk uint32) string {
	switch vk {
	case 0x11, 0xA2, 0xA3:
		return "CTRL"
	case 0x12, 0xA4, 0xA5:
		return "ALT"
	case 0x10, 0xA0, 0xA1:
		return "SHIFT"
	case 0x5B, 0x5C:
		return "CMD"
	case 0x20:
		return "SPACE"
	case 0x0D:
		return "ENTER"
	case 0x1B:
		return "ESC"
	case 0x08:
		return "BACKSPACE"
	case 0x09:
		return "TAB"
	case 0x14:
		return "CAPSLOCK"
	case 0x21:
		return "PAGEUP"
	case 0x22:
		return "PAGEDOWN"
	case 0x23:
		return "END"
	case 0x24:
		return "HOME"
	case 0x25:
		return "LEFT"
	case 0x26:
		return "UP"
	case 0x27:
		return "RIGHT"
	case 0x28:
		return "DOWN"
	case 0x2C:
		return "PRINTSCREEN"
	case 0x2D:
		return "INSERT"
	case 0x2E:
		return "DELETE"
	case 0x13:
		return "PAUSE"
	case 0x91:
		return "SCROLLLOCK"
	}

	if vk >= 0x41 && vk <= 0x5A || vk >= 0x30 && vk <= 0x39 {
		return string(rune(vk))
	}
	if vk >= 0x70 && vk <= 0x7B {
		return fmt.Sprintf("F%d", vk-0x6F)
	}
	return ""
}
