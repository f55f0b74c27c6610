// tabtip - touch keyboard automation helper
// Opens the Windows touch keyboard when a text field gains focus and keeps
// the field visible above it.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tabtip/internal/config"
	"tabtip/internal/logging"
)

var version = "0.1.0"

// app carries what every command needs once the root command has run.
type app struct {
	configPath string
	logLevel   string

	cfgMgr     *config.Manager
	logger     *zap.Logger
	undoLogger func()
}

func main() {
	a := &app{}
	if err := a.rootCommand().Execute(); err != nil {
		if a.logger != nil {
			a.logger.Error("command failed", zap.Error(err))
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		a.close()
		os.Exit(1)
	}
	a.close()
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "tabtip",
		Short:         "Opens the touch keyboard for focused text fields",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runService(cmd.Context())
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "config file (default is the per-user config)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override the configured log level")
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Run the automation service with a tray icon (default)",
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.runService(cmd.Context())
			},
		},
		a.openCommand(),
		a.closeCommand(),
		a.statusCommand(),
		a.keyboardsCommand(),
		a.configCommand(),
	)
	return root
}

// init loads the configuration and installs the logger.
func (a *app) init() error {
	var err error
	if a.configPath != "" {
		a.cfgMgr = config.NewManagerAt(a.configPath, nil)
	} else if a.cfgMgr, err = config.NewManager(nil); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}
	loadErr := a.cfgMgr.Load()

	logCfg := a.cfgMgr.Get().Log
	if a.logLevel != "" {
		logCfg.Level = a.logLevel
	}
	a.logger, a.undoLogger = logging.Init(logCfg)

	if loadErr != nil {
		a.logger.Warn("failed to load config, using defaults", zap.Error(loadErr))
	}
	a.logger.Debug("starting", zap.String("version", version), zap.String("config", a.cfgMgr.Path()))
	return nil
}

func (a *app) close() {
	if a.undoLogger != nil {
		a.undoLogger()
	}
}
