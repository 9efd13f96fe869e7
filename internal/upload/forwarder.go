package upload

import (
	"context"
	"sync"

	"github.com/alvmarrod/profile-weaver/internal/metrics"
	"github.com/alvmarrod/profile-weaver/internal/storage"
	"github.com/sirupsen/logrus"
)

// Uploader sends one batch
type Uploader interface {
	Upload(ctx context.Context, endpoint string, items []storage.Profile, proxy string) (map[string]interface{}, error)
}

// Forwarder uploads batches on its own goroutine so slow endpoints never block callers
type Forwarder struct {
	uploader Uploader
	queue    *Queue
	tracker  *metrics.Tracker
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewForwarder starts the worker; tracker may be nil
func NewForwarder(uploader Uploader, tracker *metrics.Tracker) *Forwarder {
	f := &Forwarder{
		uploader: uploader,
		queue:    NewQueue(),
		tracker:  tracker,
	}

	f.wg.Add(1)
	go f.worker()
	return f
}

// Forward queues a batch; returns false once the forwarder is stopped
func (f *Forwarder) Forward(job Job) bool {
	return f.queue.Push(job)
}

// Stop rejects new jobs and waits for queued ones to finish (safe to call multiple times)
func (f *Forwarder) Stop() {
	f.stopOnce.Do(func() {
		f.queue.Stop()
		f.wg.Wait()
	})
}

func (f *Forwarder) worker() {
	defer f.wg.Done()

	for {
		job, ok := f.queue.Pop()
		if !ok {
			return
		}

		// No timeout: a slow endpoint only delays later uploads
		if _, err := f.uploader.Upload(context.Background(), job.Endpoint, job.Items, job.Proxy); err != nil {
			f.tracker.IncrementUploadsFailed()
			logrus.Errorf("Auto-upload failed: %v", err)
			continue
		}

		f.tracker.IncrementUploadsSent()
		logrus.Infof("Auto-uploaded batch of %d profiles to %s", len(job.Items), job.Endpoint)
	}
}
