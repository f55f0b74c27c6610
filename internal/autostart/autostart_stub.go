//go:build !windows

package autostart

// Enable is a stub for non-Windows platforms
func Enable() error {
	return ErrUnsupportedPlatform
}

// Disable is a stub for non-Windows platforms
func Disable() error {
	return ErrUnsupportedPlatform
}

// IsEnabled is a stub for non-Windows platforms
func IsEnabled() (bool, error) {
	return false, nil
}
