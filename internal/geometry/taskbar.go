package geometry

// TaskbarPosition is the screen edge the taskbar is docked to.
type TaskbarPosition int

const (
	TaskbarNone TaskbarPosition = iota
	TaskbarTop
	TaskbarBottom
	TaskbarLeft
	TaskbarRight
)

func (p TaskbarPosition) String() string {
	switch p {
	case TaskbarTop:
		return "top"
	case TaskbarBottom:
		return "bottom"
	case TaskbarLeft:
		return "left"
	case TaskbarRight:
		return "right"
	default:
		return "none"
	}
}

// Taskbar describes the shell taskbar in device pixels.
type Taskbar struct {
	Bounds   Rect
	Position TaskbarPosition
}
