package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var schemaCmd = &cobra.Command{
	Use:   "schema [resource]",
	Short: "Print resource schemas as JSON",
	Long: `Print the introspection document of one resource, or of every
resource keyed by name. A resource is named by its name or its path.

Examples:
  restmodel schema
  restmodel schema chore
  restmodel schema /chores`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSchema,
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}

func runSchema(cmd *cobra.Command, args []string) error {
	app, err := inspect(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	var out any
	if len(args) == 1 {
		res, err := app.Registry.Lookup(args[0])
		if err != nil {
			byPath, ok := app.Registry.ByPath(args[0])
			if !ok {
				return fmt.Errorf("%w (known: %s)", err, strings.Join(app.Registry.Names(), ", "))
			}
			res = byPath
		}
		out = res.Schema.Introspect()
	} else {
		all := make(map[string]any)
		for _, res := range app.Registry.List() {
			all[res.Name] = res.Schema.Introspect()
		}
		out = all
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encode schema: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
