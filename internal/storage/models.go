package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by KV.Get when a key has never been written
var ErrNotFound = errors.New("key not found")

// KV is a flat key-value bucket holding opaque byte values
// Each Put replaces the whole value atomically
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Profile is one record scraped from a profile card
type Profile struct {
	ID        string   `json:"id"`
	URL       string   `json:"url,omitempty"`
	Name      string   `json:"name,omitempty"`
	Age       *int     `json:"age,omitempty"`
	Location  string   `json:"location,omitempty"`
	Photos    []string `json:"photos,omitempty"`
	Bio       string   `json:"bio,omitempty"`
	ScrapedAt string   `json:"scrapedAt"`
}

// Metrics tracks session statistics for export on exit
type Metrics struct {
	SessionID         string    `json:"session_id"`
	StartTime         time.Time `json:"start_time"`
	EndTime           time.Time `json:"end_time"`
	Scans             int       `json:"scans"`
	CardsScanned      int       `json:"cards_scanned"`
	CardsSkipped      int       `json:"cards_skipped"`
	ProfilesEnqueued  int       `json:"profiles_enqueued"`
	DuplicatesIgnored int       `json:"duplicates_ignored"`
	Flushes           int       `json:"flushes"`
	FlushFailures     int       `json:"flush_failures"`
	ProfilesAdded     int       `json:"profiles_added"`
	UploadsSent       int       `json:"uploads_sent"`
	UploadsFailed     int       `json:"uploads_failed"`
	TerminationReason string    `json:"termination_reason"`
}
