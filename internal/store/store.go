package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/alvmarrod/profile-weaver/internal/storage"
	"github.com/sirupsen/logrus"
)

// ProfilesKey is the bucket key holding the id -> profile map
const ProfilesKey = "scrapedProfiles"

// MergeResult reports the outcome of a MergeBatch call
type MergeResult struct {
	Added int `json:"added"`
	Total int `json:"total"`
}

// Store aggregates scraped profiles keyed by id
// Every read-modify-persist cycle runs under mu; the backing KV has no compare-and-swap
type Store struct {
	kv storage.KV
	mu sync.Mutex
}

// New creates a store over the given bucket
func New(kv storage.KV) *Store {
	return &Store{kv: kv}
}

// MergeBatch inserts each profile whose id is not stored yet
// Existing entries are never overwritten, including duplicates inside items
func (s *Store) MergeBatch(ctx context.Context, items []storage.Profile) (MergeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	profiles, err := s.load(ctx)
	if err != nil {
		return MergeResult{}, err
	}

	added := 0
	for _, item := range items {
		if item.ID == "" {
			logrus.Debug("Ignoring profile without id")
			continue
		}
		if _, exists := profiles[item.ID]; exists {
			continue
		}
		profiles[item.ID] = item
		added++
	}

	if added > 0 {
		if err := s.save(ctx, profiles); err != nil {
			return MergeResult{}, err
		}
	}

	logrus.Debugf("Merged batch: %d received, %d added, %d total", len(items), added, len(profiles))
	return MergeResult{Added: added, Total: len(profiles)}, nil
}

// ExportAll returns every stored profile, sorted by id
func (s *Store) ExportAll(ctx context.Context) ([]storage.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	profiles, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]storage.Profile, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Clear replaces the stored map with an empty one
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(ctx, map[string]storage.Profile{})
}

// Count returns the number of stored profiles
func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	profiles, err := s.load(ctx)
	if err != nil {
		return 0, err
	}
	return len(profiles), nil
}

func (s *Store) load(ctx context.Context) (map[string]storage.Profile, error) {
	raw, err := s.kv.Get(ctx, ProfilesKey)
	if errors.Is(err, storage.ErrNotFound) {
		return make(map[string]storage.Profile), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load profiles: %w", err)
	}

	profiles := make(map[string]storage.Profile)
	if len(raw) == 0 {
		return profiles, nil
	}
	if err := json.Unmarshal(raw, &profiles); err != nil {
		return nil, fmt.Errorf("failed to decode profiles: %w", err)
	}
	return profiles, nil
}

func (s *Store) save(ctx context.Context, profiles map[string]storage.Profile) error {
	raw, err := json.Marshal(profiles)
	if err != nil {
		return fmt.Errorf("failed to encode profiles: %w", err)
	}
	if err := s.kv.Put(ctx, ProfilesKey, raw); err != nil {
		return fmt.Errorf("failed to save profiles: %w", err)
	}
	return nil
}
