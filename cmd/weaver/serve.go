package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alvmarrod/profile-weaver/internal/messaging"
	"github.com/alvmarrod/profile-weaver/internal/metrics"
	"github.com/alvmarrod/profile-weaver/internal/version"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var attachPage bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Answer messages over HTTP so several scrapers can share one store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(attachPage)
		},
	}
	cmd.Flags().BoolVar(&attachPage, "page", false, "open the configured page so START_SCRAPING/STOP_SCRAPING/FLUSH act on it")
	return cmd
}

func runServe(attachPage bool) error {
	sessionID := uuid.New().String()
	logrus.Infof("Profile Weaver v%s serving on %s (session %s)", version.Version, cfg.ListenAddr, sessionID)

	tracker := metrics.NewTracker(sessionID)

	a, err := newApp(context.Background(), cfg, tracker)
	if err != nil {
		return err
	}
	defer a.Close()

	if attachPage {
		if err := cfg.RequirePage(); err != nil {
			return err
		}
		page, err := openPage(cfg)
		if err != nil {
			return err
		}
		defer page.Close()

		session := newSession(cfg, page, a.dispatcher, tracker)
		a.dispatcher.Attach(session)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := session.Stop(ctx); err != nil {
				logrus.Errorf("Final flush failed: %v", err)
			}
		}()
		logrus.Infof("Page %s attached, waiting for %s", cfg.PageURL, messaging.TypeStartScraping)
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           messaging.NewRouter(a.dispatcher),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		logrus.Infof("Received signal: %v", sig)
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	logrus.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logrus.Warnf("Server shutdown: %v", err)
	}

	if err := tracker.WriteToFile(cfg.MetricsPath, "signal"); err != nil {
		logrus.Errorf("Failed to write metrics: %v", err)
	}
	return nil
}
