package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"tabtip/internal/automation"
	"tabtip/internal/autostart"
	"tabtip/internal/config"
	"tabtip/internal/hotkey"
	"tabtip/internal/hwkbd"
	"tabtip/internal/keyboard"
	"tabtip/internal/tray"
	"tabtip/internal/winui"
)

var policyTitles = map[hwkbd.IgnorePolicy]string{
	hwkbd.DoNotIgnore:                  "Pause while any keyboard is attached",
	hwkbd.IgnoreIfSingleInstanceOnList: "Ignore a single listed keyboard",
	hwkbd.IgnoreIfSingleInstance:       "Ignore a single keyboard",
	hwkbd.IgnoreIfOnList:               "Ignore listed keyboards",
	hwkbd.IgnoreAll:                    "Always automate",
}

var dockTitles = []struct {
	mode  keyboard.DockMode
	title string
}{
	{keyboard.DockDocked, "Docked"},
	{keyboard.DockUndocked, "Floating"},
	{keyboard.DockNoChange, "Leave as is"},
}

func (a *app) runService(parent context.Context) error {
	a.logger.Info("tabtip service starting", zap.String("version", version))
	cfg := a.cfgMgr.Get()

	var hub *automation.Hub
	sys, err := a.newSystem(func(err error) { hub.Report(err) })
	if err != nil {
		return err
	}
	defer sys.controller.Shutdown()

	source := winui.NewSource(a.logger)
	hub, err = automation.New(automation.Options{
		Source:           source,
		Keyboard:         sys.controller,
		Geometry:         sys.engine,
		Presence:         sys.detector,
		Logger:           a.logger,
		QuietWindow:      cfg.Automation.QuietWindow,
		IgnorePolicy:     cfg.Automation.IgnorePolicy,
		IgnoredKeyboards: cfg.Automation.IgnoredKeyboards,
		DockMode:         cfg.Keyboard.DockMode,
	})
	if err != nil {
		return err
	}
	defer hub.Close()

	for _, b := range cfg.Automation.Bindings {
		if err := hub.BindElementType(b.Class, b.PopupOnTap); err != nil {
			a.logger.Warn("failed to bind element type", zap.String("class", b.Class), zap.Error(err))
		}
	}

	a.cfgMgr.RegisterChangeCallback(func() {
		c := a.cfgMgr.Get()
		hub.SetIgnorePolicy(c.Automation.IgnorePolicy)
		hub.SetIgnoredKeyboards(c.Automation.IgnoredKeyboards)
		hub.SetDockMode(c.Keyboard.DockMode)
	})

	if err := autostart.Apply(cfg.General.StartOnBoot); err != nil {
		a.logger.Warn("failed to apply start on login", zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	keys := hotkey.NewManager(a.logger)
	if err := keys.Register(cfg.Keyboard.ToggleHotkey, func() {
		if err := sys.controller.Toggle(hub.DockMode()); err != nil {
			a.logger.Warn("failed to toggle keyboard", zap.Error(err))
		}
	}); err != nil {
		a.logger.Warn("failed to register toggle hotkey", zap.Error(err))
	}

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		if err := hub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Error("automation stopped", zap.Error(err))
		}
	}()
	go func() {
		defer wg.Done()
		if err := source.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Error("focus hooks stopped", zap.Error(err))
			cancel()
		}
	}()
	go func() {
		defer wg.Done()
		if err := keys.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Warn("toggle hotkey unavailable", zap.Error(err))
		}
	}()

	t := a.buildTray(sys, hub, cancel)
	alerts := rate.Sometimes{Interval: 10 * time.Second}
	unsubscribe := hub.OnException(func(err error) {
		alerts.Do(func() { t.SetTooltip("Touch keyboard automation: " + err.Error()) })
	})
	defer unsubscribe()

	go func() {
		<-ctx.Done()
		a.logger.Info("shutting down")
		t.Stop()
	}()

	a.logger.Info("tabtip service running")
	t.Run()

	cancel()
	wg.Wait()
	return nil
}

func (a *app) buildTray(sys *system, hub *automation.Hub, quit func()) *tray.Tray {
	cfg := a.cfgMgr.Get()
	t := tray.New("TabTip", "Touch keyboard automation")

	t.AddLabel("Touch keyboard automation")
	t.AddMenuItem("Open keyboard", func() {
		if err := sys.controller.Open(hub.DockMode()); err != nil {
			a.logger.Warn("failed to open keyboard", zap.Error(err))
		}
	})
	t.AddMenuItem("Close keyboard", func() {
		if err := sys.controller.Close(); err != nil {
			a.logger.Warn("failed to close keyboard", zap.Error(err))
		}
	})
	t.AddSeparator()

	dockMenu := t.AddSubMenu("Keyboard mode")
	for _, d := range dockTitles {
		mode := d.mode
		var id int
		id = t.AddRadioItem(dockMenu, "dock", d.title, cfg.Keyboard.DockMode == mode, func() {
			a.updateConfig(func(c *config.Config) { c.Keyboard.DockMode = mode })
			t.Select(id)
		})
	}

	policyMenu := t.AddSubMenu("Hardware keyboard")
	for _, p := range hwkbd.Policies() {
		policy := p
		var id int
		id = t.AddRadioItem(policyMenu, "policy", policyTitles[policy], cfg.Automation.IgnorePolicy == policy, func() {
			a.updateConfig(func(c *config.Config) { c.Automation.IgnorePolicy = policy })
			t.Select(id)
		})
	}

	var loginID int
	loginID = t.AddCheckbox("Start on login", cfg.General.StartOnBoot, func() {
		enabled := !t.Checked(loginID)
		if err := autostart.Apply(enabled); err != nil {
			a.logger.Warn("failed to change start on login", zap.Error(err))
			return
		}
		a.updateConfig(func(c *config.Config) { c.General.StartOnBoot = enabled })
		t.SetItemChecked(loginID, enabled)
	})

	t.AddSeparator()
	t.AddMenuItem("Quit", quit)
	return t
}

func (a *app) updateConfig(fn func(*config.Config)) {
	if err := a.cfgMgr.Update(fn); err != nil {
		a.logger.Warn("failed to save config", zap.Error(err))
	}
}
