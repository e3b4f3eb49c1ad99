package main

import (
	"fmt"
	"os"

	"github.com/artpar/restmodel/config"
	"github.com/spf13/cobra"
)

const (
	checkMark = "✓"
	crossMark = "✗"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration before deployment",
	Long: `Validate the restmodel configuration file.

Checks:
  - YAML syntax is valid
  - Settings and resource definitions are valid
  - Every resource registers without name or path collisions

Examples:
  restmodel validate
  restmodel validate --config /etc/restmodel/restmodel.yaml`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Validating %s...\n\n", cfgFile)

	if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
		fmt.Fprintf(out, "  %s Config file exists\n", crossMark)
		return fmt.Errorf("config file not found: %s", cfgFile)
	}
	fmt.Fprintf(out, "  %s Config file exists\n", checkMark)

	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(out, "  %s Config valid\n", crossMark)
		return fmt.Errorf("config error: %w", err)
	}
	fmt.Fprintf(out, "  %s Config valid\n", checkMark)
	fmt.Fprintf(out, "  %s Database: %s %s\n", checkMark, cfg.Database.Driver, cfg.Database.DSN)
	fmt.Fprintf(out, "  %s Listen: %s\n", checkMark, cfg.Server.Addr())

	app, err := inspect(cmd)
	if err != nil {
		fmt.Fprintf(out, "  %s Resources register\n", crossMark)
		return err
	}
	defer app.Close()

	for _, res := range app.Registry.List() {
		fmt.Fprintf(out, "  %s Resource %s at %s\n", checkMark, res.Name, res.Path)
	}

	fmt.Fprintln(out, "\nConfiguration is valid.")
	return nil
}
