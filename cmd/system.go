package main

import (
	"fmt"

	"tabtip/internal/geometry"
	"tabtip/internal/hwkbd"
	"tabtip/internal/keyboard"
	"tabtip/internal/winui"
)

// system holds the OS-backed components shared by the commands.
type system struct {
	controller *keyboard.Controller
	engine     *geometry.Engine
	detector   *hwkbd.Detector
}

// newSystem wires the keyboard, geometry and hardware detection against the
// running OS. onError receives close-detection poll failures.
func (a *app) newSystem(onError func(error)) (*system, error) {
	winui.EnableDPIAwareness()

	window, err := keyboard.NewSystemWindow()
	if err != nil {
		return nil, fmt.Errorf("keyboard window: %w", err)
	}
	dock, err := keyboard.NewSystemDockStore()
	if err != nil {
		return nil, fmt.Errorf("dock store: %w", err)
	}
	display, err := winui.NewDisplay()
	if err != nil {
		return nil, fmt.Errorf("display: %w", err)
	}
	enum, err := hwkbd.NewSystemEnumerator()
	if err != nil {
		return nil, fmt.Errorf("keyboard enumeration: %w", err)
	}

	controller := keyboard.NewController(window, dock, a.logger, onError)
	return &system{
		controller: controller,
		engine:     geometry.NewEngine(display, controller, a.logger),
		detector:   hwkbd.NewDetector(enum, a.logger),
	}, nil
}
