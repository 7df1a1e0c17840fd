package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/alvmarrod/job-harvester/internal/batch"
	"github.com/alvmarrod/job-harvester/internal/storage"
	"github.com/alvmarrod/job-harvester/internal/version"
)

const progressInterval = 10 * time.Second

func newRunCommand() *cobra.Command {
	var (
		titles      []string
		apiKey      string
		storeDriver string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Harvest one batch in the foreground and print its records",
		Example: `  harvester run --title "Data Analyst" --title "Nurse"
  harvester run --title "Welder" --store memory`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if storeDriver != "" {
				cfg.Store.Driver = storeDriver
			}
			if apiKey == "" {
				apiKey = cfg.Scrape.APIKey
			}
			return runBatch(cmd, titles, apiKey)
		},
	}

	cmd.Flags().StringArrayVarP(&titles, "title", "t", nil, "job title to harvest (repeatable)")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "scraping provider API key (default from config)")
	cmd.Flags().StringVar(&storeDriver, "store", "", "override store.driver (sqlite, postgres, memory)")
	_ = cmd.MarkFlagRequired("title")

	return cmd
}

func runBatch(cmd *cobra.Command, titles []string, apiKey string) error {
	ctx := cmd.Context()
	logrus.Infof("Job Harvester v%s starting...", version.Version)

	deps, err := newHarvestDeps(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	deps.orch.Start()

	handle, err := deps.orch.StartBatch(ctx, titles, apiKey)
	if err != nil {
		_ = deps.orch.Shutdown(ctx)
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	// Second signal = force quit
	forceQuit := make(chan os.Signal, 1)
	signal.Notify(forceQuit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(forceQuit)
	go func() {
		<-forceQuit
		sig := <-forceQuit
		logrus.Warnf("Received second signal (%v) - forcing immediate exit!", sig)
		if err := deps.tracker.WriteToFile(cfg.MetricsPath, "forced_exit"); err != nil {
			logrus.Errorf("Emergency metrics save failed: %v", err)
		}
		os.Exit(1)
	}()

	var wg sync.WaitGroup
	stopProgress := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		logProgress(deps.store, deps.tracker.LogProgress, handle, stopProgress)
	}()

	reason := "completed"
	select {
	case <-handle.Done():
		logrus.Infof("Batch %s completed", handle.BatchID)
	case sig := <-sigChan:
		logrus.Infof("Received signal: %v", sig)
		reason = "signal"
	}

	logrus.Info("Step 1/3: Stopping harvest workers...")
	close(stopProgress)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := deps.orch.Shutdown(shutdownCtx); err != nil {
		logrus.Warnf("Workers did not drain: %v", err)
	}
	wg.Wait()

	logrus.Info("Step 2/3: Writing final metrics...")
	logrus.Info("Final stats: " + deps.tracker.LogProgress())
	if err := deps.tracker.WriteToFile(cfg.MetricsPath, reason); err != nil {
		logrus.Errorf("Failed to write metrics: %v", err)
	} else {
		logrus.Infof("Metrics written to %s", cfg.MetricsPath)
	}

	logrus.Info("Step 3/3: Printing results...")
	b, err := deps.store.GetBatch(shutdownCtx, handle.BatchID)
	if err != nil {
		return err
	}
	records, err := deps.store.ListRecords(shutdownCtx, handle.BatchID)
	if err != nil {
		return err
	}
	renderBatch(cmd.OutOrStdout(), b)
	renderRecords(cmd.OutOrStdout(), records)

	if b.Status != storage.StatusCompleted {
		return errors.New("batch interrupted before completion")
	}
	return nil
}

// logProgress prints a progress line every progressInterval until stop closes
func logProgress(store storage.ResultStore, stats func() string, handle *batch.Handle, stop <-chan struct{}) {
	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			b, err := store.GetBatch(ctx, handle.BatchID)
			cancel()
			if err != nil {
				logrus.Warnf("Progress unavailable: %v", err)
				continue
			}
			logrus.Infof("Batch %s: %d/%d sources | %s", b.ID, b.CompletedSources, b.TotalSources, stats())
		case <-stop:
			return
		}
	}
}
