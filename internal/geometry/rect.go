// Package geometry computes screen, taskbar and work-area rectangles and the
// vertical offset needed to bring a rectangle into a work area.
package geometry

import "fmt"

// LogicalDPI is the DPI of device-independent units.
const LogicalDPI = 96.0

// Rect is an edge-based rectangle. The zero Rect means "unknown".
type Rect struct {
	Left   int `json:"left" yaml:"left"`
	Top    int `json:"top" yaml:"top"`
	Right  int `json:"right" yaml:"right"`
	Bottom int `json:"bottom" yaml:"bottom"`
}

// FromLTRB builds a Rect from its edges.
func FromLTRB(left, top, right, bottom int) Rect {
	return Rect{Left: left, Top: top, Right: right, Bottom: bottom}
}

func (r Rect) Width() int  { return r.Right - r.Left }
func (r Rect) Height() int { return r.Bottom - r.Top }

// IsZero reports whether r is the "unknown/unavailable" sentinel.
func (r Rect) IsZero() bool {
	return r == Rect{}
}

// ContainsVertically reports whether r's vertical span lies within outer.
// Edges may touch.
func (r Rect) ContainsVertically(outer Rect) bool {
	return r.Top >= outer.Top && r.Bottom <= outer.Bottom
}

// OffsetY returns r moved vertically by dy.
func (r Rect) OffsetY(dy int) Rect {
	r.Top += dy
	r.Bottom += dy
	return r
}

func (r Rect) String() string {
	return fmt.Sprintf("(%d,%d,%d,%d)", r.Left, r.Top, r.Right, r.Bottom)
}

// ToLogical converts a rectangle in device pixels to logical units at the
// given DPI. Conversion truncates toward zero.
func ToLogical(r Rect, dpiX, dpiY float64) Rect {
	if dpiX <= 0 {
		dpiX = LogicalDPI
	}
	if dpiY <= 0 {
		dpiY = LogicalDPI
	}
	return Rect{
		Left:   int(float64(r.Left) * LogicalDPI / dpiX),
		Top:    int(float64(r.Top) * LogicalDPI / dpiY),
		Right:  int(float64(r.Right) * LogicalDPI / dpiX),
		Bottom: int(float64(r.Bottom) * LogicalDPI / dpiY),
	}
}
