package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "gatewayd",
	Short: "Declarative API gateway that fans requests out to backend subrequests",
	Long: `gatewayd is a declarative API gateway.

Each route declares one or more subrequests against configured backend
clients (HTTP, Postgres, MySQL, SQLite, MongoDB, Redis), runs them
sequentially or in parallel, and assembles the results into a response.

Quick start:
  gatewayd serve     # Start the gateway server
  gatewayd validate  # Validate a configuration file`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	defaultCfgPath := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		defaultCfgPath = v
	}
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", defaultCfgPath, "config file path")
}
