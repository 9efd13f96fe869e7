package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alvmarrod/profile-weaver/internal/export"
	"github.com/alvmarrod/profile-weaver/internal/metrics"
	"github.com/alvmarrod/profile-weaver/internal/settings"
	"github.com/alvmarrod/profile-weaver/internal/store"
	"github.com/alvmarrod/profile-weaver/internal/upload"
	"github.com/sirupsen/logrus"
)

// Controller drives a scraping session
type Controller interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Flush(ctx context.Context) error
}

// Forwarder accepts batches for best-effort upload
type Forwarder interface {
	Forward(job upload.Job) bool
}

// Dispatcher answers messages against the store and settings
type Dispatcher struct {
	store       *store.Store
	settings    *settings.Settings
	forwarder   Forwarder
	tracker     *metrics.Tracker
	downloadDir string
	now         func() time.Time

	mu         sync.RWMutex
	controller Controller
}

// Option configures a Dispatcher
type Option func(*Dispatcher)

func WithForwarder(f Forwarder) Option {
	return func(d *Dispatcher) { d.forwarder = f }
}

func WithTracker(t *metrics.Tracker) Option {
	return func(d *Dispatcher) { d.tracker = t }
}

func WithDownloadDir(dir string) Option {
	return func(d *Dispatcher) { d.downloadDir = dir }
}

func WithController(c Controller) Option {
	return func(d *Dispatcher) { d.controller = c }
}

func WithNow(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// NewDispatcher creates a dispatcher
func NewDispatcher(st *store.Store, cfg *settings.Settings, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		store:       st,
		settings:    cfg,
		downloadDir: ".",
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Attach sets the session that START/STOP/FLUSH act on; nil detaches
func (d *Dispatcher) Attach(c Controller) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.controller = c
}

// Send implements Messenger for in-process callers
func (d *Dispatcher) Send(ctx context.Context, req Request) (Response, error) {
	return d.Handle(ctx, req), nil
}

// Handle answers one request; failures and panics become error responses
func (d *Dispatcher) Handle(ctx context.Context, req Request) (resp Response) {
	defer func() {
		if r := recover(); r != nil {
			logrus.Errorf("Message %s panicked: %v", req.Type, r)
			resp = failure(fmt.Errorf("%v", r))
		}
	}()

	resp, err := d.handle(ctx, req)
	if err != nil {
		logrus.Errorf("Message %s failed: %v", req.Type, err)
		return failure(err)
	}
	return resp
}

func (d *Dispatcher) handle(ctx context.Context, req Request) (Response, error) {
	switch req.Type {
	case TypeScrapeBatch:
		return d.scrapeBatch(ctx, req)
	case TypeExportCSV:
		return d.exportCSV(ctx, req)
	case TypeClearScraped:
		if err := d.store.Clear(ctx); err != nil {
			return nil, err
		}
		return ok(Response{"cleared": true}), nil
	case TypeGetCount:
		count, err := d.store.Count(ctx)
		if err != nil {
			return nil, err
		}
		return ok(Response{"count": count}), nil
	case TypeGetProxy:
		proxy, err := d.settings.Proxy(ctx)
		if err != nil {
			return nil, err
		}
		return ok(Response{"proxy": nullable(proxy)}), nil
	case TypeSaveProxy:
		if err := d.settings.SaveProxy(ctx, req.Proxy); err != nil {
			return nil, err
		}
		return ok(Response{"saved": true}), nil
	case TypeSaveUploadURL:
		u := settings.Upload{URL: req.UploadURL, AutoUpload: req.AutoUpload}
		if err := d.settings.SaveUpload(ctx, u); err != nil {
			return nil, err
		}
		return ok(Response{"saved": true}), nil
	case TypeGetUploadURL:
		u, err := d.settings.Upload(ctx)
		if err != nil {
			return nil, err
		}
		return ok(Response{"uploadUrl": nullable(u.URL), "autoUpload": u.AutoUpload}), nil
	case TypeStartScraping, TypeStopScraping, TypeFlush:
		return d.control(ctx, req.Type)
	default:
		return nil, fmt.Errorf("unknown message type: %q", req.Type)
	}
}

// scrapeBatch merges first; forwarding is best-effort and never changes the response
func (d *Dispatcher) scrapeBatch(ctx context.Context, req Request) (Response, error) {
	res, err := d.store.MergeBatch(ctx, req.Items)
	if err != nil {
		return nil, err
	}
	d.tracker.AddProfilesAdded(res.Added)
	logrus.Infof("Stored batch: %d received, %d added, %d total", len(req.Items), res.Added, res.Total)

	d.maybeForward(ctx, req)

	return ok(Response{"added": res.Added, "total": res.Total}), nil
}

func (d *Dispatcher) maybeForward(ctx context.Context, req Request) {
	if d.forwarder == nil || len(req.Items) == 0 {
		return
	}

	u, err := d.settings.Upload(ctx)
	if err != nil {
		logrus.Warnf("Failed to check auto-upload config: %v", err)
		return
	}
	if !u.Enabled() {
		return
	}

	proxy, err := d.settings.Proxy(ctx)
	if err != nil {
		logrus.Warnf("Failed to read proxy, uploading without it: %v", err)
	}

	if !d.forwarder.Forward(upload.Job{Endpoint: u.URL, Items: req.Items, Proxy: proxy}) {
		logrus.Warn("Forwarder stopped, batch not uploaded")
	}
}

func (d *Dispatcher) exportCSV(ctx context.Context, req Request) (Response, error) {
	items, err := d.store.ExportAll(ctx)
	if err != nil {
		return nil, err
	}
	csv := export.ToDelimitedText(items)

	if !req.BackgroundDownload {
		return ok(Response{"csv": csv, "count": len(items)}), nil
	}

	filename := req.Filename
	if filename == "" {
		filename = export.Filename(d.now())
	}
	path, err := export.WriteFile(d.downloadDir, filename, csv)
	if err != nil {
		return nil, err
	}
	logrus.Infof("Exported %d profiles to %s", len(items), path)
	return ok(Response{"downloaded": true, "count": len(items), "filename": path}), nil
}

func (d *Dispatcher) control(ctx context.Context, msgType string) (Response, error) {
	d.mu.RLock()
	c := d.controller
	d.mu.RUnlock()

	if c == nil {
		return nil, errors.New(ErrNoActiveTab)
	}

	switch msgType {
	case TypeStartScraping:
		if err := c.Start(ctx); err != nil {
			return nil, err
		}
		return Response{"status": StatusStarted}, nil
	case TypeStopScraping:
		if err := c.Stop(ctx); err != nil {
			return nil, err
		}
		return Response{"status": StatusStopped}, nil
	default:
		if err := c.Flush(ctx); err != nil {
			return nil, err
		}
		return Response{"status": StatusFlushed}, nil
	}
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
