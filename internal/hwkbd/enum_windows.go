//go:build windows

package hwkbd

import (
	"context"
	"fmt"
	"os/exec"
	"syscall"
)

const createNoWindow = 0x08000000

const keyboardQuery = "Get-CimInstance -ClassName Win32_Keyboard | ForEach-Object { $_.Description }"

// wmiEnumerator lists keyboards through WMI via PowerShell.
type wmiEnumerator struct{}

// NewSystemEnumerator returns the Enumerator backed by the running OS.
func NewSystemEnumerator() (Enumerator, error) {
	return wmiEnumerator{}, nil
}

func (wmiEnumerator) Keyboards(ctx context.Context) ([]Device, error) {
	cmd := exec.CommandContext(ctx, "powershell", "-NoProfile", "-NonInteractive", "-Command", keyboardQuery)
	cmd.SysProcAttr = &syscall.SysProcAttr{HideWindow: true, CreationFlags: createNoWindow}

	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("query Win32_Keyboard: %w", err)
	}
	return parseDescriptions(string(output)), nil
}
