package scraper

import (
	"context"
	"sync"
	"time"

	"github.com/alvmarrod/profile-weaver/internal/metrics"
	"github.com/alvmarrod/profile-weaver/internal/storage"
	"github.com/sirupsen/logrus"
)

const (
	DefaultBatchSize     = 10
	DefaultFlushInterval = 5 * time.Second
)

// BatchSink receives flushed batches
type BatchSink interface {
	SendBatch(ctx context.Context, items []storage.Profile) error
}

// Batcher buffers unseen profiles and flushes them by size or age
type Batcher struct {
	sink          BatchSink
	clock         Clock
	tracker       *metrics.Tracker
	batchSize     int
	flushInterval time.Duration

	mu       sync.Mutex
	buffer   []storage.Profile
	seen     map[string]bool
	timer    Timer
	timerSeq int // bumped whenever the pending timer is cleared
	enabled  bool
}

// BatcherOption configures a Batcher
type BatcherOption func(*Batcher)

func WithClock(c Clock) BatcherOption {
	return func(b *Batcher) { b.clock = c }
}

func WithBatchSize(n int) BatcherOption {
	return func(b *Batcher) {
		if n > 0 {
			b.batchSize = n
		}
	}
}

func WithFlushInterval(d time.Duration) BatcherOption {
	return func(b *Batcher) {
		if d > 0 {
			b.flushInterval = d
		}
	}
}

func WithTracker(t *metrics.Tracker) BatcherOption {
	return func(b *Batcher) { b.tracker = t }
}

// NewBatcher creates an enabled batcher delivering to sink
func NewBatcher(sink BatchSink, opts ...BatcherOption) *Batcher {
	b := &Batcher{
		sink:          sink,
		clock:         RealClock{},
		batchSize:     DefaultBatchSize,
		flushInterval: DefaultFlushInterval,
		seen:          make(map[string]bool),
		enabled:       true,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Enqueue buffers p unless its id was already seen this session
// Returns true if the profile was buffered
func (b *Batcher) Enqueue(p storage.Profile) bool {
	b.mu.Lock()

	if !b.enabled {
		b.mu.Unlock()
		return false
	}
	if b.seen[p.ID] {
		b.mu.Unlock()
		b.tracker.IncrementDuplicatesIgnored()
		return false
	}

	b.seen[p.ID] = true
	b.buffer = append(b.buffer, p)

	full := len(b.buffer) >= b.batchSize
	if !full && b.timer == nil {
		seq := b.timerSeq
		b.timer = b.clock.AfterFunc(b.flushInterval, func() { b.onTimer(seq) })
	}
	b.mu.Unlock()

	b.tracker.IncrementProfilesEnqueued()

	if full {
		// Error already logged by deliver
		_ = b.Flush(context.Background())
	}
	return true
}

// Flush delivers everything buffered right now
// A failed delivery is logged and returned; the batch is not re-buffered
func (b *Batcher) Flush(ctx context.Context) error {
	b.mu.Lock()
	batch := b.takeLocked()
	b.mu.Unlock()

	return b.deliver(ctx, batch)
}

// Stop disables enqueuing and flushes what is left
func (b *Batcher) Stop(ctx context.Context) error {
	b.mu.Lock()
	b.enabled = false
	batch := b.takeLocked()
	b.mu.Unlock()

	return b.deliver(ctx, batch)
}

// Reset forgets seen ids and re-enables enqueuing for a new session
func (b *Batcher) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seen = make(map[string]bool)
	b.enabled = true
}

// Buffered returns the number of profiles waiting for a flush
func (b *Batcher) Buffered() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buffer)
}

// HasPendingFlush reports whether a flush timer is scheduled
func (b *Batcher) HasPendingFlush() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.timer != nil
}

func (b *Batcher) onTimer(seq int) {
	b.mu.Lock()
	if seq != b.timerSeq {
		// Superseded by an earlier flush
		b.mu.Unlock()
		return
	}
	batch := b.takeLocked()
	b.mu.Unlock()

	_ = b.deliver(context.Background(), batch)
}

// takeLocked drains the buffer and clears the pending timer; b.mu must be held
func (b *Batcher) takeLocked() []storage.Profile {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.timerSeq++

	if len(b.buffer) == 0 {
		return nil
	}
	batch := b.buffer
	b.buffer = nil
	return batch
}

func (b *Batcher) deliver(ctx context.Context, batch []storage.Profile) error {
	if len(batch) == 0 {
		return nil
	}

	if err := b.sink.SendBatch(ctx, batch); err != nil {
		b.tracker.IncrementFlushFailures()
		logrus.Warnf("Failed to deliver batch of %d profiles: %v", len(batch), err)
		return err
	}

	b.tracker.IncrementFlushes()
	logrus.Infof("Flushed batch of %d profiles", len(batch))
	return nil
}
