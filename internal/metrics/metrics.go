package metrics

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/alvmarrod/profile-weaver/internal/storage"
)

// Tracker holds and manages session metrics
// All methods are safe on a nil receiver so components can run without one
type Tracker struct {
	mu   sync.Mutex
	data storage.Metrics
}

// NewTracker creates a new metrics tracker for one session
func NewTracker(sessionID string) *Tracker {
	return &Tracker{
		data: storage.Metrics{
			SessionID: sessionID,
			StartTime: time.Now(),
		},
	}
}

func (t *Tracker) update(f func(m *storage.Metrics)) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	f(&t.data)
}

// IncrementScans counts one page scan
func (t *Tracker) IncrementScans() {
	t.update(func(m *storage.Metrics) { m.Scans++ })
}

// AddCardsScanned counts candidate cards found by a scan
func (t *Tracker) AddCardsScanned(n int) {
	t.update(func(m *storage.Metrics) { m.CardsScanned += n })
}

// IncrementCardsSkipped counts a card that yielded no id
func (t *Tracker) IncrementCardsSkipped() {
	t.update(func(m *storage.Metrics) { m.CardsSkipped++ })
}

// IncrementProfilesEnqueued counts a profile accepted by the batcher
func (t *Tracker) IncrementProfilesEnqueued() {
	t.update(func(m *storage.Metrics) { m.ProfilesEnqueued++ })
}

// IncrementDuplicatesIgnored counts a profile rejected by the seen-set
func (t *Tracker) IncrementDuplicatesIgnored() {
	t.update(func(m *storage.Metrics) { m.DuplicatesIgnored++ })
}

// IncrementFlushes counts a delivered batch
func (t *Tracker) IncrementFlushes() {
	t.update(func(m *storage.Metrics) { m.Flushes++ })
}

// IncrementFlushFailures counts a batch whose delivery failed
func (t *Tracker) IncrementFlushFailures() {
	t.update(func(m *storage.Metrics) { m.FlushFailures++ })
}

// AddProfilesAdded counts profiles newly merged into the store
func (t *Tracker) AddProfilesAdded(n int) {
	t.update(func(m *storage.Metrics) { m.ProfilesAdded += n })
}

// IncrementUploadsSent counts a successful forward
func (t *Tracker) IncrementUploadsSent() {
	t.update(func(m *storage.Metrics) { m.UploadsSent++ })
}

// IncrementUploadsFailed counts a failed forward
func (t *Tracker) IncrementUploadsFailed() {
	t.update(func(m *storage.Metrics) { m.UploadsFailed++ })
}

// GetSnapshot returns a copy of current metrics
func (t *Tracker) GetSnapshot() storage.Metrics {
	if t == nil {
		return storage.Metrics{}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.data
}

// WriteToFile exports metrics to a JSON file
func (t *Tracker) WriteToFile(path, reason string) error {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	// Finalize metrics
	t.data.EndTime = time.Now()
	t.data.TerminationReason = reason

	jsonData, err := json.MarshalIndent(t.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}

	if err := os.WriteFile(path, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}

	return nil
}

// LogProgress formats current metrics for periodic console updates
func (t *Tracker) LogProgress() string {
	m := t.GetSnapshot()
	return fmt.Sprintf("Scans: %d | Cards: %d scanned, %d skipped | Profiles: %d enqueued, %d duplicate, %d stored | Flushes: %d ok, %d failed | Uploads: %d ok, %d failed",
		m.Scans,
		m.CardsScanned,
		m.CardsSkipped,
		m.ProfilesEnqueued,
		m.DuplicatesIgnored,
		m.ProfilesAdded,
		m.Flushes,
		m.FlushFailures,
		m.UploadsSent,
		m.UploadsFailed,
	)
}
