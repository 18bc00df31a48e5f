package cmd

import (
	"fmt"
	"os"

	"github.com/gradebook/apiserver/config"
	"github.com/gradebook/apiserver/internal/logging"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "gradebook",
	Short: "Class and grade management API",
	Long: `gradebook serves a small REST API for grading rubrics ("classes")
made of partials and activities, persisted as JSON documents on disk.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and runs it.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads and validates the configuration and builds the logger
// every command shares.
func loadConfig() (config.Config, logging.Logger, error) {
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		return cfg, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, logging.New(os.Stderr, cfg.Log.Format, cfg.Log.Level), nil
}
