package geometry

const (
	PaddingTop    = 30
	PaddingBottom = 10
)

// VerticalOffsetToFit returns how far target must move vertically to lie in
// workArea. Positive values move down, negative values move up.
//
// Only the vertical span decides containment; a target that touches the work
// area edges is contained.
func VerticalOffsetToFit(target, workArea Rect) float64 {
	if target.ContainsVertically(workArea) {
		return 0
	}

	if target.Top < workArea.Top {
		return float64(workArea.Top - target.Top + PaddingTop)
	}

	candidate := workArea.Bottom - target.Bottom - PaddingBottom
	if target.Top+candidate >= workArea.Top {
		return float64(candidate)
	}
	// Moving the bottom into view would push the top out; keep the top just
	// inside the work area instead.
	return float64(workArea.Top - target.Top + PaddingTop)
}
