package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"droneops-console/internal/config"
	"droneops-console/internal/logging"
)

var (
	rootConfigPath string
	rootProfile    string
	rootBackend    string
	rootLogLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "droneops-console",
	Short: "DroneOps incident-response operator console",
	Long: "droneops-console talks to the DroneOps backend: it streams the assistant's replies, " +
		"follows network system events and keeps the mission dashboard in sync.",
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootConfigPath, "config", "", "Path to console configuration YAML")
	pf.StringVar(&rootProfile, "profile", "", "Mission profile name or path to a profile YAML")
	pf.StringVar(&rootBackend, "backend", "", "Backend base URL (overrides config)")
	pf.StringVar(&rootLogLevel, "log-level", "", "Log level: debug, info, warn or error")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(commandsCmd)
}

// loadConfig reads the configuration file and applies flag overrides, which
// win over both the file and the environment.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(rootConfigPath)
	if err != nil {
		return config.Config{}, err
	}
	if rootProfile != "" {
		cfg.Profile = rootProfile
	}
	if rootBackend != "" {
		cfg.BackendURL = rootBackend
	}
	if rootLogLevel != "" {
		cfg.LogLevel = rootLogLevel
	}
	return cfg, nil
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	log, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(log)
	return log, nil
}
