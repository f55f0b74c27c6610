package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"tabtip/internal/geometry"
	"tabtip/internal/keyboard"
	"tabtip/internal/osutils"
)

func (a *app) openCommand() *cobra.Command {
	var dock string
	cmd := &cobra.Command{
		Use:   "open",
		Short: "Show the touch keyboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			mode := a.cfgMgr.Get().Keyboard.DockMode
			if dock != "" {
				parsed, err := keyboard.ParseDockMode(dock)
				if err != nil {
					return err
				}
				mode = parsed
			}

			sys, err := a.newSystem(nil)
			if err != nil {
				return err
			}
			defer sys.controller.Shutdown()
			return sys.controller.Open(mode)
		},
	}
	cmd.Flags().StringVar(&dock, "dock", "", "docked, floating or nochange (default from config)")
	return cmd
}

func (a *app) closeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "close",
		Short: "Hide the touch keyboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			sys, err := a.newSystem(nil)
			if err != nil {
				return err
			}
			defer sys.controller.Shutdown()
			return sys.controller.Close()
		},
	}
}

func (a *app) statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show keyboard state and work areas",
		RunE: func(cmd *cobra.Command, args []string) error {
			sys, err := a.newSystem(nil)
			if err != nil {
				return err
			}
			defer sys.controller.Shutdown()

			st := sys.controller.Status()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "OS:            %s\n", osutils.Version())
			fmt.Fprintf(out, "Keyboard:      %s\n", openOrClosed(st.Closed))
			fmt.Fprintf(out, "Keyboard rect: %s\n", st.LiveRect)

			for _, q := range []struct {
				name string
				fn   func(geometry.WindowHandle) (geometry.Rect, error)
			}{
				{"Screen", sys.engine.ScreenBounds},
				{"Work area", sys.engine.WorkAreaClosed},
				{"With keyboard", sys.engine.WorkAreaOpened},
			} {
				rect, err := q.fn(0)
				if err != nil {
					return fmt.Errorf("%s: %w", q.name, err)
				}
				fmt.Fprintf(out, "%-14s %s\n", q.name+":", rect)
			}
			return nil
		},
	}
}

func openOrClosed(closed bool) string {
	if closed {
		return "closed"
	}
	return "open"
}

func (a *app) keyboardsCommand() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "keyboards",
		Short: "List attached hardware keyboards and whether automation would run",
		RunE: func(cmd *cobra.Command, args []string) error {
			sys, err := a.newSystem(nil)
			if err != nil {
				return err
			}
			defer sys.controller.Shutdown()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			devices, err := sys.detector.Devices(ctx)
			if err != nil {
				return fmt.Errorf("enumerate keyboards: %w", err)
			}

			cfg := a.cfgMgr.Get().Automation
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Attached keyboards:")
			for _, d := range devices {
				fmt.Fprintf(out, "  %s\n", d.Description)
			}
			present := sys.detector.Present(ctx, cfg.IgnorePolicy, cfg.IgnoredKeyboards)
			a.logger.Debug("presence evaluated", zap.Stringer("policy", cfg.IgnorePolicy), zap.Bool("present", present))
			fmt.Fprintf(out, "Policy %s: automation %s\n", cfg.IgnorePolicy, map[bool]string{true: "paused", false: "active"}[present])
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "enumeration timeout")
	return cmd
}

func (a *app) configCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the config file location and effective settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := yaml.Marshal(a.cfgMgr.Get())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "# %s\n", a.cfgMgr.Path())
			if _, err := os.Stat(a.cfgMgr.Path()); err != nil {
				fmt.Fprintln(out, "# (file not found, showing defaults)")
			}
			_, err = out.Write(data)
			return err
		},
	}
}
