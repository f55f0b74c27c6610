//go:build !windows

package hwkbd

// NewSystemEnumerator is a stub for non-Windows platforms
func NewSystemEnumerator() (Enumerator, error) {
	return nil, ErrUnsupportedPlatform
}
