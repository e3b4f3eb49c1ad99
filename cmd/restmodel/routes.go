package main

import (
	"fmt"
	"path"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "List the route table",
	Long: `List every route in dispatch order, per resource.

Examples:
  restmodel routes
  restmodel routes --config restmodel.yaml`,
	Args: cobra.NoArgs,
	RunE: runRoutes,
}

func init() {
	rootCmd.AddCommand(routesCmd)
}

func runRoutes(cmd *cobra.Command, args []string) error {
	app, err := inspect(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RESOURCE\tVERB\tPATH\tMETHOD\tSTATUS")
	for _, res := range app.Registry.List() {
		for _, rt := range app.Router.Routes(res.Name) {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n", res.Name, rt.Verb, joinPattern(res.Path, rt.Pattern), rt.Method, rt.Status)
		}
	}
	return w.Flush()
}

func joinPattern(base, pattern string) string {
	if strings.HasPrefix(pattern, "^") {
		return base + " " + pattern
	}
	return path.Join(base, pattern)
}
