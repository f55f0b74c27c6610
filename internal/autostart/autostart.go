// Package autostart provides auto-start functionality.
package autostart

import (
	"errors"
	"fmt"
	"strings"
)

const appName = "tabtip"

// ErrUnsupportedPlatform is returned when running on an unsupported OS
var ErrUnsupportedPlatform = errors.New("unsupported platform")

// Apply enables or disables auto-start on login, touching the OS only when
// the current state differs.
func Apply(enabled bool) error {
	current, err := IsEnabled()
	if err != nil {
		return err
	}
	switch {
	case enabled == current:
		return nil
	case enabled:
		return Enable()
	default:
		return Disable()
	}
}

// commandLine builds the login command for exe.
func commandLine(exe string, args ...string) (string, error) {
	exe = strings.TrimSpace(exe)
	if exe == "" {
		return "", errors.New("empty executable path")
	}
	cmd := fmt.Sprintf(`"%s"`, exe)
	if len(args) > 0 {
		cmd += " " + strings.Join(args, " ")
	}
	return cmd, nil
}
