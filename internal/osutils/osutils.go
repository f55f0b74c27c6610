// Package osutils holds small OS helpers used by the keyboard adapters.
package osutils

import "strings"

// OSVersion is the coarse Windows generation.
type OSVersion int

const (
	Undefined OSVersion = iota
	Win7
	Win8
	Win10
)

func (v OSVersion) String() string {
	switch v {
	case Win7:
		return "Windows 7"
	case Win8:
		return "Windows 8/8.1"
	case Win10:
		return "Windows 10+"
	default:
		return "undefined"
	}
}

// parseProductName maps a ProductName registry value to an OSVersion.
// "Windows 11" still reports "Windows 10" in ProductName.
func parseProductName(name string) OSVersion {
	switch {
	case strings.Contains(name, "10"), strings.Contains(name, "11"):
		return Win10
	case strings.Contains(name, "8"):
		return Win8
	case strings.Contains(name, "7"):
		return Win7
	default:
		return Undefined
	}
}
