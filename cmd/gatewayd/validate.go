package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/artpar/gatewayd/client"
	"github.com/artpar/gatewayd/config"
	"github.com/artpar/gatewayd/domain/route"
)

var validateCheckClients bool

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration before deployment",
	Long: `Validate the gatewayd configuration file.

Checks:
  - YAML syntax is valid and every field is known
  - Client and route invariants hold (spec.md §3)
  - Route patterns compile (equal route priorities are not reported)
  - Every configured client is reachable (optional, --check-clients)

Examples:
  gatewayd validate
  gatewayd validate --config /etc/gatewayd/config.yaml --check-clients`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().BoolVar(&validateCheckClients, "check-clients", false, "dial every configured client")
}

func runValidate(cmd *cobra.Command, args []string) error {
	fmt.Printf("Validating %s...\n\n", cfgFile)

	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Printf("  %s Config syntax and invariants valid\n", crossMark)
		return fmt.Errorf("config error: %w", err)
	}
	fmt.Printf("  %s Config syntax and invariants valid\n", checkMark)

	if _, err := route.NewMatcher(cfg.Routes); err != nil {
		fmt.Printf("  %s Route patterns compile\n", crossMark)
		return fmt.Errorf("route error: %w", err)
	}
	fmt.Printf("  %s Route patterns compile\n", checkMark)

	fmt.Printf("  %s Clients configured: %d\n", checkMark, len(cfg.Clients))
	fmt.Printf("  %s Routes configured: %d\n", checkMark, len(cfg.Routes))

	if validateCheckClients {
		registry, err := client.Build(context.Background(), cfg.Clients, zerolog.Nop())
		if err != nil {
			fmt.Printf("  %s Clients reachable\n", crossMark)
			fmt.Printf("      Error: %v\n", err)
			return err
		}
		_ = registry.CloseAll()
		fmt.Printf("  %s Clients reachable\n", checkMark)
	}

	fmt.Println()
	fmt.Println("Configuration is valid.")
	return nil
}

const (
	checkMark = "\033[32m✓\033[0m"
	crossMark = "\033[31m✗\033[0m"
)
