package keyboard

import "errors"

var (
	// ErrWindowNotFound is returned when the keyboard window does not exist.
	ErrWindowNotFound = errors.New("keyboard window not found")

	// ErrUnsupportedPlatform is returned when running on an unsupported OS
	ErrUnsupportedPlatform = errors.New("unsupported platform")

	// ErrLaunchFailed is returned when the keyboard process cannot be started
	ErrLaunchFailed = errors.New("keyboard launch failed")
)
