//go:build !windows

package hotkey

import "context"

// Run reports that global hooks are unavailable.
func (m *Manager) Run(ctx context.Context) error {
	return ErrUnsupportedPlatform
}
