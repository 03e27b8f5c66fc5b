package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"verity-hq/callisto/pkg/cli"
	"verity-hq/callisto/pkg/config"
	"verity-hq/callisto/pkg/history"
	"verity-hq/callisto/pkg/manager"
	"verity-hq/callisto/pkg/providers"
	"verity-hq/callisto/pkg/telemetry/health"
	"verity-hq/callisto/pkg/telemetry/logging"
	"verity-hq/callisto/pkg/telemetry/metrics"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Callisto provider service",
	Long: `Start the Callisto provider service with the specified configuration.

The service initializes all configured providers, starts scheduled
health sweeps, and serves status, readiness, and metrics endpoints on
the configured address.

Examples:
  # Start with default config
  callisto run

  # Start with custom config
  callisto run --config /etc/callisto/config.yaml

  # Override listen address
  callisto run --listen 0.0.0.0:8090

  # Validate config without starting
  callisto run --dry-run`,
	RunE: runService,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting the service")
}

func runService(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}

	// Apply flag overrides
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	logger, err := logging.New(cfg.Telemetry.Logging, os.Stdout)
	if err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}
	slog.SetDefault(logger)

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	fmt.Printf("Callisto v%s\n", Version)
	fmt.Printf("Loading configuration from: %s\n", cfgFile)
	fmt.Println("✓ Configuration loaded")

	collector := metrics.NewCollector(nil)

	// Health history store, when enabled.
	var store *history.Store
	if cfg.History.Enabled {
		store, err = history.Open(cfg.History.Path, logger)
		if err != nil {
			return cli.NewCommandError("run", err)
		}
		defer store.Close()

		scheduler := history.NewScheduler(store, cfg.History.PruneSchedule, cfg.History.RetentionDays, logger)
		if err := scheduler.Start(); err != nil {
			return cli.NewCommandError("run", err)
		}
		defer scheduler.Stop()

		fmt.Println("✓ Health history store initialized")
	}

	// Every sweep observation feeds the metrics gauges and, when
	// enabled, the history store.
	var mgr *manager.Manager
	observer := func(name string, capability providers.CapabilityType, status providers.HealthStatus) {
		if store != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := store.Record(ctx, name, capability, status); err != nil {
				logger.Warn("failed to record health snapshot", "provider", name, "error", err)
			}
		}
		if mgr != nil {
			for capability, tm := range mgr.Registry().GetMetrics().ByCapability {
				collector.UpdateRegistryCounts(string(capability), tm.Total, tm.Healthy)
			}
		}
	}

	mgr = manager.New(manager.Options{
		Config:        cfg,
		Logger:        logger,
		MetricsSink:   collector,
		SweepObserver: observer,
	})
	defer mgr.Shutdown()

	ctx, stop := cli.SignalContext()
	defer stop()

	slog.Info("initializing provider manager")
	if err := mgr.Initialize(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}
	fmt.Printf("✓ Providers initialized (%d providers)\n", mgr.Registry().Count())

	// Reload providers when the config file changes on disk.
	watcher, err := config.NewWatcher(cfgFile, logger)
	if err != nil {
		logger.Warn("config watcher unavailable", "error", err)
	} else {
		err = watcher.Start(func() error {
			newCfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
			if err != nil {
				return err
			}
			mgr.UpdateConfig(newCfg)
			return mgr.Reinitialize(context.Background())
		})
		if err != nil {
			logger.Warn("config watcher failed to start", "error", err)
		} else {
			defer watcher.Stop()
		}
	}

	srv := buildServer(cfg, mgr, collector, logger)

	errChan := make(chan error, 1)
	go func() {
		slog.Info("starting HTTP server", "address", cfg.Server.ListenAddress)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	fmt.Println()
	fmt.Printf("✓ Server listening on %s\n", cfg.Server.ListenAddress)
	fmt.Printf("✓ Status endpoint: http://%s/status\n", cfg.Server.ListenAddress)
	if cfg.Telemetry.Metrics.Enabled {
		fmt.Printf("✓ Metrics endpoint: http://%s%s\n", cfg.Server.ListenAddress, cfg.Telemetry.Metrics.Path)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	select {
	case err := <-errChan:
		return cli.NewCommandError("run", err)
	case <-ctx.Done():
		fmt.Println("\nShutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown failed", "error", err)
			return cli.NewCommandError("run", err)
		}
		fmt.Println("✓ Server stopped")
		return nil
	}
}

func buildServer(cfg *config.Config, mgr *manager.Manager, collector *metrics.Collector, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()

	checker := health.New(0)
	checker.RegisterCheck("providers", func(ctx context.Context) error {
		report, err := mgr.HealthStatus()
		if err != nil {
			return err
		}
		if report.Registry.TotalProviders > 0 && report.Registry.HealthyProviders == 0 {
			return errors.New("no healthy providers")
		}
		return nil
	})
	health.Mount(mux, checker, Version, GitCommit, BuildDate)

	mux.HandleFunc("/status", health.StatusHandler(func(ctx context.Context) (any, error) {
		return mgr.Status()
	}))
	mux.HandleFunc("/status/providers", health.StatusHandler(func(ctx context.Context) (any, error) {
		return mgr.HealthStatus()
	}))

	if cfg.Telemetry.Metrics.Enabled {
		mux.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
	}

	return &http.Server{
		Addr:         cfg.Server.ListenAddress,
		Handler:      logging.RequestIDMiddleware(mux, logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}
