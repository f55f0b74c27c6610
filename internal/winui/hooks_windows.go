//go:build windows

package winui

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"syscall"
	"unsafe"

	"go.uber.org/zap"
	"golang.org/x/sys/windows"

	"tabtip/internal/geometry"
)

var (
	user32                  = windows.NewLazySystemDLL("user32.dll")
	procSetWinEventHook     = user32.NewProc("SetWinEventHook")
	procUnhookWinEvent      = user32.NewProc("UnhookWinEvent")
	procSetWindowsHookEx    = user32.NewProc("SetWindowsHookExW")
	procCallNextHookEx      = user32.NewProc("CallNextHookEx")
	procUnhookWindowsHookEx = user32.NewProc("UnhookWindowsHookEx")
	procGetMessage          = user32.NewProc("GetMessageW")
	procPeekMessage         = user32.NewProc("PeekMessageW")
	procTranslateMessage    = user32.NewProc("TranslateMessage")
	procDispatchMessage     = user32.NewProc("DispatchMessageW")
	procPostThreadMessage   = user32.NewProc("PostThreadMessageW")
	procGetClassName        = user32.NewProc("GetClassNameW")
	kernel32                = windows.NewLazySystemDLL("kernel32.dll")
	procGetModuleHandle     = kernel32.NewProc("GetModuleHandleW")
)

const (
	eventSystemMinimizeEnd = 0x0017
	eventObjectDestroy     = 0x8001
	eventObjectFocus       = 0x8005

	winEventOutOfContext   = 0x0000
	winEventSkipOwnProcess = 0x0002

	objidWindow = 0
	childidSelf = 0

	whMouseLL     = 14
	wmLButtonDown = 0x0201
	wmQuit        = 0x0012
	wmUser        = 0x0400
	pmNoRemove    = 0x0000
)

type msllHookStruct struct {
	Point       struct{ X, Y int32 }
	MouseData   uint32
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

// Hook callbacks carry no user data, so the running source is global.
var (
	activeMu     sync.Mutex
	activeSource *Source
	mouseHook    uintptr
)

var (
	winEventCallback = syscall.NewCallback(winEventProc)
	mouseCallback    = syscall.NewCallback(mouseHookProc)
)

// Run installs the focus, restore and mouse hooks and pumps messages on a
// locked OS thread until ctx is done.
func (s *Source) Run(ctx context.Context) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	activeMu.Lock()
	if activeSource != nil {
		activeMu.Unlock()
		return fmt.Errorf("winui: a source is already running")
	}
	activeSource = s
	activeMu.Unlock()
	defer func() {
		activeMu.Lock()
		activeSource = nil
		activeMu.Unlock()
	}()

	// Force creation of the thread message queue so WM_QUIT can be posted.
	var msg message
	procPeekMessage.Call(uintptr(unsafe.Pointer(&msg)), 0, wmUser, wmUser, pmNoRemove)
	s.threadID = windows.GetCurrentThreadId()

	var eventHooks []uintptr
	for _, event := range []uintptr{eventObjectFocus, eventSystemMinimizeEnd, eventObjectDestroy} {
		h, _, err := procSetWinEventHook.Call(event, event, 0, winEventCallback, 0, 0,
			winEventOutOfContext|winEventSkipOwnProcess)
		if h == 0 {
			unhookWinEvents(eventHooks)
			return fmt.Errorf("SetWinEventHook(0x%x): %w", event, err)
		}
		eventHooks = append(eventHooks, h)
	}
	defer unhookWinEvents(eventHooks)

	hMod, _, _ := procGetModuleHandle.Call(0)
	hook, _, err := procSetWindowsHookEx.Call(whMouseLL, mouseCallback, hMod, 0)
	if hook == 0 {
		s.logger.Warn("mouse hook not installed, taps will not reopen the keyboard", zap.Error(err))
	} else {
		mouseHook = hook
		defer procUnhookWindowsHookEx.Call(hook)
	}

	stop := context.AfterFunc(ctx, func() {
		procPostThreadMessage.Call(uintptr(s.threadID), wmQuit, 0, 0)
	})
	defer stop()

	s.logger.Info("focus hooks installed")
	for {
		ret, _, err := procGetMessage.Call(uintptr(unsafe.Pointer(&msg)), 0, 0, 0)
		switch int32(ret) {
		case -1:
			return fmt.Errorf("GetMessage: %w", err)
		case 0:
			return ctx.Err()
		}
		procTranslateMessage.Call(uintptr(unsafe.Pointer(&msg)))
		procDispatchMessage.Call(uintptr(unsafe.Pointer(&msg)))
	}
}

func unhookWinEvents(hooks []uintptr) {
	for _, h := range hooks {
		procUnhookWinEvent.Call(h)
	}
}

func winEventProc(hook, event, hwnd, idObject, idChild, thread, eventTime uintptr) uintptr {
	s := activeSource
	if s == nil || hwnd == 0 || int32(idChild) != childidSelf {
		return 0
	}
	handle := geometry.WindowHandle(hwnd)

	switch event {
	case eventObjectFocus:
		s.focusChanged(handle, className(hwnd))
	case eventSystemMinimizeEnd:
		s.windowRestored(handle)
	case eventObjectDestroy:
		if int32(idObject) == objidWindow {
			s.windowDestroyed(handle)
		}
	}
	return 0
}

func mouseHookProc(nCode int, wParam uintptr, lParam uintptr) uintptr {
	if s := activeSource; nCode == 0 && wParam == wmLButtonDown && s != nil {
		ms := (*msllHookStruct)(unsafe.Pointer(lParam))
		if s.hitsFocused(int(ms.Point.X), int(ms.Point.Y)) {
			s.tapped()
		}
	}
	ret, _, _ := procCallNextHookEx.Call(mouseHook, uintptr(nCode), wParam, lParam)
	return ret
}

func (s *Source) hitsFocused(x, y int) bool {
	hwnd := s.focusedWindow()
	if hwnd == 0 {
		return false
	}
	rect, err := windowRect(uintptr(hwnd))
	if err != nil {
		return false
	}
	return x >= rect.Left && x < rect.Right && y >= rect.Top && y < rect.Bottom
}

func className(hwnd uintptr) string {
	buf := make([]uint16, 256)
	n, _, _ := procGetClassName.Call(hwnd, uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	if n == 0 {
		return ""
	}
	return windows.UTF16ToString(buf[:n])
}
