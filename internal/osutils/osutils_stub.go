//go:build !windows

package osutils

import (
	"fmt"
	"runtime"
)

// Version is a stub for non-Windows platforms
func Version() OSVersion {
	return Undefined
}

// TriggerTIPBand is a stub for non-Windows platforms
func TriggerTIPBand() error {
	return fmt.Errorf("TriggerTIPBand not supported on %s", runtime.GOOS)
}
