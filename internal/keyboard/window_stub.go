//go:build !windows

package keyboard

// NewSystemWindow is a stub for non-Windows platforms
func NewSystemWindow() (Window, error) {
	return nil, ErrUnsupportedPlatform
}

// NewSystemDockStore is a stub for non-Windows platforms
func NewSystemDockStore() (DockStore, error) {
	return nil, ErrUnsupportedPlatform
}
