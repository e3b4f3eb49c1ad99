package main

import (
	"fmt"
	"os"

	"github.com/artpar/restmodel/bootstrap"
	"github.com/artpar/restmodel/config"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "restmodel",
	Short: "Serve schema-described resources over REST",
	Long: `restmodel exposes resources declared in YAML (plus the builtin
chores example) as REST collections backed by memory or SQLite.

Quick start:
  restmodel serve              # Start the server
  restmodel routes             # Show the route table
  restmodel schema chore       # Show a resource schema
  restmodel validate           # Validate configuration`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "restmodel.yaml", "config file path")
}

// inspect builds the app against an in-memory backend so read-only
// commands never touch the configured database.
func inspect(cmd *cobra.Command) (*bootstrap.App, error) {
	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return nil, err
	}
	cfg.Database = config.DatabaseConfig{Driver: "memory"}

	logger := bootstrap.NewLogger(config.LoggingConfig{Level: "error"}, cmd.ErrOrStderr())
	return bootstrap.NewFromConfig(cmd.Context(), cfg, logger)
}
