package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/alvmarrod/profile-weaver/internal/messaging"
	"github.com/alvmarrod/profile-weaver/internal/metrics"
	"github.com/alvmarrod/profile-weaver/internal/version"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newScrapeCmd() *cobra.Command {
	var duration time.Duration

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Observe the configured page and store every profile card it shows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScrape(cmd.Context(), duration)
		},
	}
	cmd.Flags().DurationVar(&duration, "duration", 0, "stop after this long (0 runs until interrupted)")
	return cmd
}

func runScrape(ctx context.Context, duration time.Duration) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := cfg.RequirePage(); err != nil {
		return err
	}

	sessionID := uuid.New().String()
	logrus.Infof("Profile Weaver v%s starting session %s...", version.Version, sessionID)
	logrus.Infof("Configuration loaded: source=%s, page=%s, batch=%d, flush=%s",
		cfg.Source, cfg.PageURL, cfg.BatchSize, cfg.FlushInterval())

	// Initialize metrics tracker
	tracker := metrics.NewTracker(sessionID)

	messenger, closer, err := connect(ctx, cfg, tracker)
	if err != nil {
		return err
	}
	defer closer.Close()

	page, err := openPage(cfg)
	if err != nil {
		return err
	}
	defer page.Close()

	session := newSession(cfg, page, messenger, tracker)

	// In-process dispatchers drive the session through the message protocol
	if d, ok := messenger.(*messaging.Dispatcher); ok {
		d.Attach(session)
		if err := messaging.AsError(d.Handle(ctx, messaging.Request{Type: messaging.TypeStartScraping})); err != nil {
			return err
		}
	} else if err := session.Start(ctx); err != nil {
		return err
	}

	// Setup signal handler for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	// Handle force quit on second signal
	forceQuitChan := make(chan os.Signal, 1)
	signal.Notify(forceQuitChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(forceQuitChan)
	go func() {
		<-forceQuitChan        // First signal (consumed by main handler)
		sig := <-forceQuitChan // Second signal = force quit
		logrus.Warnf("Received second signal (%v) - forcing immediate exit!", sig)
		logrus.Warn("Attempting emergency flush...")

		flushCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := session.Flush(flushCtx); err != nil {
			logrus.Errorf("Emergency flush failed: %v", err)
		}
		if err := tracker.WriteToFile(cfg.MetricsPath, "forced_exit"); err != nil {
			logrus.Errorf("Emergency metrics save failed: %v", err)
		}
		os.Exit(1)
	}()

	var wg sync.WaitGroup
	stopProgress := make(chan struct{})

	var elapsed <-chan time.Time
	if duration > 0 {
		timer := time.NewTimer(duration)
		defer timer.Stop()
		elapsed = timer.C
	}

	// Start progress logger
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				logrus.Info(tracker.LogProgress())
			case <-stopProgress:
				return
			}
		}
	}()

	// Wait for a signal or the end of the requested duration
	var terminationReason string
	select {
	case sig := <-sigChan:
		logrus.Infof("Received signal: %v", sig)
		terminationReason = "signal"
	case <-elapsed:
		logrus.Infof("Scraped for %s, stopping", duration)
		terminationReason = "duration_elapsed"
	}
	close(stopProgress)

	logrus.Info("Initiating graceful shutdown...")
	logrus.Info("Step 1/4: Stopping session and flushing buffered profiles...")

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := session.Stop(stopCtx); err != nil {
		logrus.Errorf("Final flush failed: %v", err)
	}

	logrus.Info("Step 2/4: Waiting for background goroutines...")

	bgDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(bgDone)
	}()

	select {
	case <-bgDone:
		logrus.Info("All background tasks completed")
	case <-time.After(5 * time.Second):
		logrus.Warn("Background tasks timeout (5s), continuing with shutdown")
	}

	logrus.Info("Step 3/4: Writing final metrics...")
	logrus.Info("Final stats: " + tracker.LogProgress())

	if err := tracker.WriteToFile(cfg.MetricsPath, terminationReason); err != nil {
		logrus.Errorf("Failed to write metrics: %v", err)
	} else {
		logrus.Infof("Metrics written to %s", cfg.MetricsPath)
	}

	logrus.Info("Step 4/4: Finishing uploads and closing storage...")

	// Page, uploads and storage are closed via defer

	logrus.Info("Graceful shutdown complete. Goodbye!")
	return nil
}
