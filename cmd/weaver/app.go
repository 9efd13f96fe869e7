package main

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/alvmarrod/profile-weaver/internal/config"
	"github.com/alvmarrod/profile-weaver/internal/extract"
	"github.com/alvmarrod/profile-weaver/internal/memory"
	"github.com/alvmarrod/profile-weaver/internal/messaging"
	"github.com/alvmarrod/profile-weaver/internal/metrics"
	"github.com/alvmarrod/profile-weaver/internal/scraper"
	"github.com/alvmarrod/profile-weaver/internal/settings"
	"github.com/alvmarrod/profile-weaver/internal/source"
	"github.com/alvmarrod/profile-weaver/internal/storage"
	"github.com/alvmarrod/profile-weaver/internal/store"
	"github.com/alvmarrod/profile-weaver/internal/upload"
	"github.com/sirupsen/logrus"
)

// Bucket names, one for collected data and one for user settings
const (
	bucketLocal = "local"
	bucketSync  = "sync"
)

type backend struct {
	local storage.KV
	sync  storage.KV
	close func() error
}

func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	switch cfg.Backend {
	case config.BackendRedis:
		client := storage.NewRedisClient(cfg.RedisAddr, cfg.RedisDB)
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.RedisAddr, err)
		}
		logrus.Infof("Using redis backend: %s (db %d)", cfg.RedisAddr, cfg.RedisDB)
		return &backend{
			local: storage.NewRedisKV(client, "weaver:"+bucketLocal),
			sync:  storage.NewRedisKV(client, "weaver:"+bucketSync),
			close: client.Close,
		}, nil

	case config.BackendMemory:
		logrus.Warn("Using in-memory backend, profiles are lost on exit")
		return &backend{
			local: memory.NewKV(),
			sync:  memory.NewKV(),
			close: func() error { return nil },
		}, nil

	default:
		db, err := storage.NewStorage(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		logrus.Infof("Database initialized: %s", cfg.DBPath)
		return &backend{
			local: db.Bucket(bucketLocal),
			sync:  db.Bucket(bucketSync),
			close: db.Close,
		}, nil
	}
}

// app is the in-process message handler and what it owns
type app struct {
	backend    *backend
	dispatcher *messaging.Dispatcher
	forwarder  *upload.Forwarder
}

func newApp(ctx context.Context, cfg *config.Config, tracker *metrics.Tracker) (*app, error) {
	be, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}

	forwarder := upload.NewForwarder(upload.NewClient(&http.Client{}), tracker)
	dispatcher := messaging.NewDispatcher(
		store.New(be.local),
		settings.New(be.sync),
		messaging.WithForwarder(forwarder),
		messaging.WithTracker(tracker),
		messaging.WithDownloadDir(cfg.DownloadDir),
	)

	return &app{backend: be, dispatcher: dispatcher, forwarder: forwarder}, nil
}

// Close waits for queued uploads, then closes the backend
func (a *app) Close() error {
	a.forwarder.Stop()
	return a.backend.close()
}

// connect returns the remote server when server_url is set, else a local app
// The returned closer is always non-nil
func connect(ctx context.Context, cfg *config.Config, tracker *metrics.Tracker) (messaging.Messenger, io.Closer, error) {
	if cfg.ServerURL != "" {
		logrus.Debugf("Sending messages to %s", cfg.ServerURL)
		return messaging.NewClient(cfg.ServerURL, cfg.RequestTimeout()), closeFunc(func() error { return nil }), nil
	}

	a, err := newApp(ctx, cfg, tracker)
	if err != nil {
		return nil, nil, err
	}
	return a.dispatcher, a, nil
}

// observedPage is a page that can also be watched, closed when the session ends
type observedPage interface {
	scraper.Page
	scraper.ChangeSource
	io.Closer
}

type closeFunc func() error

func (f closeFunc) Close() error { return f() }

type nopCloser struct {
	scraper.Page
	scraper.ChangeSource
}

func (nopCloser) Close() error { return nil }

func openPage(cfg *config.Config) (observedPage, error) {
	switch cfg.Source {
	case config.SourceFile:
		p := source.NewFilePage(cfg.HTMLPath, cfg.PageURL)
		return nopCloser{Page: p, ChangeSource: p}, nil

	case config.SourceBrowser:
		p, err := source.NewBrowserPage(cfg.PageURL, source.BrowserOptions{
			Headless:     *cfg.BrowserHeadless,
			Proxy:        cfg.BrowserProxy,
			PollInterval: cfg.PollInterval(),
			LoadTimeout:  cfg.RequestTimeout(),
		})
		if err != nil {
			return nil, err
		}
		return p, nil

	default:
		p, err := source.NewHTTPPage(cfg.PageURL, cfg.PollInterval(), cfg.RequestTimeout(), cfg.BrowserProxy)
		if err != nil {
			return nil, err
		}
		return nopCloser{Page: p, ChangeSource: p}, nil
	}
}

// newSession wires a page to a batcher that sends SCRAPE_BATCH messages through m
func newSession(cfg *config.Config, page observedPage, m messaging.Messenger, tracker *metrics.Tracker) *scraper.Session {
	batcher := scraper.NewBatcher(
		messaging.NewSink(m),
		scraper.WithBatchSize(cfg.BatchSize),
		scraper.WithFlushInterval(cfg.FlushInterval()),
		scraper.WithTracker(tracker),
	)
	scanner := scraper.NewScanner(
		page,
		extract.NewExtractor(extract.DefaultSelectors(), nil),
		scraper.DefaultCardSelectors(),
		batcher,
		tracker,
	)
	return scraper.NewSession(scanner, batcher, page, scraper.RealClock{}, cfg.NavigationDelay())
}
