package winui

import "tabtip/internal/geometry"

// Screen edges reported by the shell for the taskbar.
const (
	abeLeft   = 0
	abeTop    = 1
	abeRight  = 2
	abeBottom = 3
)

func taskbarPosition(edge uint32) geometry.TaskbarPosition {
	switch edge {
	case abeLeft:
		return geometry.TaskbarLeft
	case abeTop:
		return geometry.TaskbarTop
	case abeRight:
		return geometry.TaskbarRight
	case abeBottom:
		return geometry.TaskbarBottom
	default:
		return geometry.TaskbarNone
	}
}

// toDevice converts a logical coordinate to device pixels at dpi.
func toDevice(v, dpi float64) int {
	if dpi <= 0 {
		dpi = geometry.LogicalDPI
	}
	scaled := v * dpi / geometry.LogicalDPI
	if scaled < 0 {
		return int(scaled - 0.5)
	}
	return int(scaled + 0.5)
}
