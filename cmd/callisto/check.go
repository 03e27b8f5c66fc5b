package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"verity-hq/callisto/pkg/cli"
	"verity-hq/callisto/pkg/config"
	"verity-hq/callisto/pkg/manager"
	"verity-hq/callisto/pkg/telemetry/logging"
)

var checkFlags struct {
	output  string
	timeout time.Duration
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Probe all configured providers once",
	Long: `Initialize every configured provider, probe each one concurrently,
and print a health report.

The command exits non-zero when any provider is unhealthy, so it works
as a deployment smoke test.

Examples:
  # Probe providers and print a table
  callisto check

  # Machine-readable report
  callisto check --output json

  # Tighter probe deadline
  callisto check --timeout 10s`,
	RunE: checkProviders,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringVarP(&checkFlags.output, "output", "o", "text", "output format: text, json")
	checkCmd.Flags().DurationVar(&checkFlags.timeout, "timeout", 30*time.Second, "overall probe deadline")
}

func checkProviders(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}
	// One-shot probing below; the periodic sweep loop stays off.
	cfg.HealthCheck.Enabled = false

	logCfg := cfg.Telemetry.Logging
	if !verbose {
		logCfg.Level = "error"
	}
	logger, err := logging.New(logCfg, os.Stderr)
	if err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}

	ctx, cancel := context.WithTimeout(context.Background(), checkFlags.timeout)
	defer cancel()

	mgr := manager.New(manager.Options{Config: cfg, Logger: logger})
	if err := mgr.Initialize(ctx); err != nil {
		return cli.NewCommandError("check", err)
	}
	defer mgr.Shutdown()

	mgr.Registry().SweepHealth(ctx)

	report, err := mgr.HealthStatus()
	if err != nil {
		return cli.NewCommandError("check", err)
	}

	formatter := cli.NewFormatter(cli.OutputFormat(checkFlags.output))
	if checkFlags.output == string(cli.FormatJSON) {
		if err := formatter.FormatTo(os.Stdout, report); err != nil {
			return err
		}
	} else {
		table := cli.Table{
			Headers: []string{"PROVIDER", "HEALTHY", "FAILURES", "RESPONSE", "LAST ERROR"},
		}
		for name, status := range report.Providers {
			table.Rows = append(table.Rows, []string{
				name,
				strconv.FormatBool(status.IsHealthy),
				strconv.Itoa(status.ConsecutiveFailures),
				status.ResponseTime.Round(time.Millisecond).String(),
				status.LastError,
			})
		}
		table.SortRows(0)
		if err := formatter.FormatTo(os.Stdout, table); err != nil {
			return err
		}
	}

	if report.Registry.UnhealthyProviders > 0 {
		return fmt.Errorf("%d of %d providers unhealthy",
			report.Registry.UnhealthyProviders, report.Registry.TotalProviders)
	}
	return nil
}
