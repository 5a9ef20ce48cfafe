// Package cmd wires the leafscan command line.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/leafscan/cmd/detect"
	"github.com/tphakala/leafscan/cmd/history"
	"github.com/tphakala/leafscan/cmd/labels"
	"github.com/tphakala/leafscan/cmd/serve"
	"github.com/tphakala/leafscan/internal/buildinfo"
	"github.com/tphakala/leafscan/internal/conf"
	"github.com/tphakala/leafscan/internal/logger"
	"github.com/tphakala/leafscan/internal/telemetry"
)

// RootCommand creates and returns the root command. settings is filled in
// by PersistentPreRunE before any subcommand runs.
func RootCommand(info *buildinfo.Context) *cobra.Command {
	settings := &conf.Settings{}
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "leafscan",
		Short:         "Coffee leaf disease detection",
		Version:       info.String(),
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (default ./config.yaml or ~/.config/leafscan/config.yaml)")
	if err := setupFlags(rootCmd); err != nil {
		panic(err)
	}

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		if configFile != "" {
			conf.SetConfigFile(configFile)
		}
		loaded, err := conf.Load()
		if err != nil {
			return err
		}
		*settings = *loaded

		if err := initLogging(settings); err != nil {
			return err
		}
		if err := telemetry.Init(settings.Sentry, info.GetVersion()); err != nil {
			logger.Global().Module("main").Warn("telemetry disabled", logger.Error(err))
		}
		return nil
	}
	rootCmd.PersistentPostRunE = func(*cobra.Command, []string) error {
		telemetry.Close()
		return logger.Global().Flush()
	}

	rootCmd.AddCommand(
		detect.Command(settings),
		serve.Command(settings, info),
		history.Command(settings),
		labels.Command(settings),
	)
	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
// and binds them to their configuration keys.
func setupFlags(rootCmd *cobra.Command) error {
	flags := rootCmd.PersistentFlags()
	flags.BoolP("debug", "d", false, "Enable debug output")
	flags.String("model", "", "Path to the float32 TFLite model")
	flags.String("labels", "", "Path to labels.json")
	flags.Int("threads", 0, "Interpreter threads, 0 uses all CPUs")

	for key, flag := range map[string]string{
		"debug":                 "debug",
		"classifier.modelpath":  "model",
		"classifier.labelspath": "labels",
		"classifier.threads":    "threads",
	} {
		if err := viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", flag, err)
		}
	}
	return nil
}

// initLogging replaces the fallback console logger with one built from
// the logging settings.
func initLogging(settings *conf.Settings) error {
	cfg := settings.Logging
	if settings.Debug {
		cfg.DefaultLevel = "debug"
		if cfg.Console != nil {
			console := *cfg.Console
			console.Level = "debug"
			cfg.Console = &console
		}
	}
	cl, err := logger.NewCentralLogger(&cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger.SetGlobal(cl)
	return nil
}
