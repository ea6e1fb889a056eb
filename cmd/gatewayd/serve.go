package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/artpar/gatewayd/bootstrap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gateway server",
	Long: `Start the gatewayd server.

The server will:
  - Load configuration from config.yaml (or --config)
  - Connect to every configured backend client
  - Match incoming requests against declared routes
  - Dispatch subrequests and return the transformed response

Examples:
  gatewayd serve
  gatewayd serve --config /etc/gatewayd/config.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s (use --config to point at one)", cfgFile)
	}

	host := os.Getenv(bootstrap.EnvHost)
	if host == "" {
		host = "0.0.0.0"
	}
	port := os.Getenv(bootstrap.EnvPort)
	if port == "" {
		port = "3000"
	}

	a, err := bootstrap.New(cfgFile, host, port)
	if err != nil {
		return fmt.Errorf("error initializing: %w", err)
	}

	return a.Run()
}
