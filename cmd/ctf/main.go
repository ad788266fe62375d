package main

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/config"
)

// Flags shared by every subcommand
var (
	configPath string
	configEnv  string
	logLevel   string
)

func main() {
	for _, envFile := range []string{
		".env",
		"../.env",
		"../../.env",
	} {
		if err := godotenv.Load(envFile); err == nil {
			break
		}
	}

	if err := newRootCmd().Execute(); err != nil {
		log.Fatal().Err(err).Msg("Command failed")
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "ctf",
		Short:         "Two-agent capture-the-flag sandbox trained with online Q-learning",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig()
		},
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&configEnv, "env", os.Getenv("APP_ENV"), "Environment overlay, merges config.<env>.yaml")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error) (empty to use config default)")

	rootCmd.AddCommand(newTrainCmd(), newDemoCmd(), newScenarioCmd())
	return rootCmd
}

func loadConfig() error {
	if err := config.Init(configPath); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}
	if err := config.LoadEnvironmentConfig(configEnv); err != nil {
		return err
	}

	cfg := config.Get()
	if logLevel == "" {
		logLevel = cfg.Logging.Level
	}
	setupLogging(logLevel, cfg.Logging.Format)

	if path := config.ConfigFilePath(); path != "" {
		log.Debug().Str("path", path).Msg("Loaded config")
	}
	return nil
}

func setupLogging(level, format string) {
	logLevel, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		logLevel = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(logLevel)

	if os.Getenv("APP_ENV") == "production" || format == "json" {
		// JSON output for production
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		// Pretty console output for development
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		})
	}
}

// applyOverrides copies explicitly set flags onto config keys
func applyOverrides(cmd *cobra.Command, keys map[string]string) error {
	for flag, key := range keys {
		f := cmd.Flags().Lookup(flag)
		if f == nil || !f.Changed {
			continue
		}
		if err := config.Set(key, f.Value.String()); err != nil {
			return fmt.Errorf("--%s: %w", flag, err)
		}
	}
	return nil
}
