package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/alvmarrod/job-harvester/internal/api"
	"github.com/alvmarrod/job-harvester/internal/scheduler"
	"github.com/alvmarrod/job-harvester/internal/version"
)

const shutdownTimeout = 30 * time.Second

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, worker pool and scheduled harvests",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(ctx context.Context) error {
	logrus.Infof("Job Harvester v%s starting...", version.Version)
	logrus.Infof("Configuration loaded: workers=%d, store=%s, addr=%s",
		cfg.ConcurrentWorkers, cfg.Store.Driver, cfg.HTTPAddr)

	deps, err := newHarvestDeps(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	deps.orch.Start()

	sched := scheduler.New(deps.orch, cfg.Scrape.APIKey, cfg.Schedules)
	if err := sched.Start(ctx); err != nil {
		_ = deps.orch.Shutdown(ctx)
		return err
	}

	handler := api.NewHandler(deps.orch, deps.store, cfg.Scrape.APIKey)
	server := api.NewServer(cfg.HTTPAddr, handler, deps.registry, debug)
	serverErr := server.StartAsync()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	reason := "signal"
	select {
	case sig := <-sigChan:
		logrus.Infof("Received signal: %v", sig)
	case err := <-serverErr:
		if err != nil {
			logrus.Errorf("HTTP server failed: %v", err)
			reason = "server_error"
		}
	}

	logrus.Info("Initiating graceful shutdown...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	logrus.Info("Step 1/4: Stopping HTTP server...")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("%v", err)
	}

	logrus.Info("Step 2/4: Stopping scheduler...")
	sched.Stop()

	logrus.Info("Step 3/4: Draining harvest workers...")
	if err := deps.orch.Shutdown(shutdownCtx); err != nil {
		logrus.Warnf("Workers did not drain: %v", err)
	}

	logrus.Info("Step 4/4: Writing final metrics...")
	logrus.Info("Final stats: " + deps.tracker.LogProgress())
	if err := deps.tracker.WriteToFile(cfg.MetricsPath, reason); err != nil {
		logrus.Errorf("Failed to write metrics: %v", err)
	} else {
		logrus.Infof("Metrics written to %s", cfg.MetricsPath)
	}

	logrus.Info("Graceful shutdown complete. Goodbye!")
	return nil
}
