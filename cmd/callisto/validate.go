package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"verity-hq/callisto/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Load and validate a configuration file without starting the service.

All validation problems are reported at once, so a single run surfaces
every field that needs fixing.

Examples:
  # Validate the default config
  callisto validate

  # Validate a specific file
  callisto validate --config /etc/callisto/config.yaml`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func validateConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		var verr config.ValidationError
		if errors.As(err, &verr) {
			fmt.Printf("✗ Configuration invalid (%d problems):\n", len(verr.Errors))
			for _, fieldErr := range verr.Errors {
				fmt.Printf("  - %s: %s\n", fieldErr.Field, fieldErr.Message)
			}
			return fmt.Errorf("validation failed")
		}
		return err
	}

	fmt.Println("✓ Configuration valid")
	fmt.Printf("  Mode: %s\n", cfg.Mode)
	fmt.Printf("  Providers: %d\n", len(cfg.Providers))
	for _, capability := range cfg.RequiredCapabilities {
		fmt.Printf("  Required capability: %s\n", capability)
	}
	return nil
}
