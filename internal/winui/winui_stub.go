//go:build !windows

package winui

import (
	"context"

	"tabtip/internal/automation"
	"tabtip/internal/geometry"
)

// Run is a stub for non-Windows platforms
func (s *Source) Run(ctx context.Context) error {
	return ErrUnsupportedPlatform
}

// NewDisplay is a stub for non-Windows platforms
func NewDisplay() (geometry.Display, error) {
	return nil, ErrUnsupportedPlatform
}

// EnableDPIAwareness is a stub for non-Windows platforms
func EnableDPIAwareness() {}

type stubElement struct{}

func newElement(*Source, geometry.WindowHandle) automation.Element { return stubElement{} }

func (stubElement) Bounds() (geometry.Rect, error) { return geometry.Rect{}, ErrUnsupportedPlatform }
func (stubElement) Root() automation.Visual        { return nil }
