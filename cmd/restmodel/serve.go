package main

import (
	"github.com/artpar/restmodel/bootstrap"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST server",
	Long: `Start the restmodel server.

The server will:
  - Load configuration from restmodel.yaml (or --config)
  - Fall back to an in-memory chores service when the file is missing
  - Register every configured resource and freeze the route table
  - Reload the log level when the config file changes or on SIGHUP

Environment variables override the file:
  RESTMODEL_SERVER_PORT     - Server port (default: 8080)
  RESTMODEL_DATABASE_DRIVER - memory or sqlite (default: memory)
  RESTMODEL_DATABASE_DSN    - SQLite path (default: restmodel.db)
  RESTMODEL_LOG_LEVEL       - debug, info, warn, error

Examples:
  restmodel serve
  restmodel serve --config /etc/restmodel/restmodel.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	app, err := bootstrap.New(bootstrap.Options{ConfigPath: cfgFile})
	if err != nil {
		return err
	}

	// Run (blocks until shutdown)
	return app.Run(cmd.Context())
}
