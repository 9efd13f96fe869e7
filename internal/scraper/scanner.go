package scraper

import (
	"context"
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"github.com/alvmarrod/profile-weaver/internal/extract"
	"github.com/alvmarrod/profile-weaver/internal/metrics"
	"github.com/sirupsen/logrus"
)

// Page provides the current DOM and the URL it was loaded from
type Page interface {
	Snapshot(ctx context.Context) (*goquery.Document, string, error)
}

// Scanner finds cards on a page and feeds extracted profiles to a Batcher
type Scanner struct {
	page      Page
	extractor *extract.Extractor
	selectors CardSelectors
	batcher   *Batcher
	tracker   *metrics.Tracker
}

// NewScanner wires a scanner; tracker may be nil
func NewScanner(page Page, extractor *extract.Extractor, selectors CardSelectors, batcher *Batcher, tracker *metrics.Tracker) *Scanner {
	return &Scanner{
		page:      page,
		extractor: extractor,
		selectors: selectors,
		batcher:   batcher,
		tracker:   tracker,
	}
}

// Scan snapshots the page once and returns how many new profiles were buffered
func (s *Scanner) Scan(ctx context.Context) (int, error) {
	doc, pageURL, err := s.page.Snapshot(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to snapshot page: %w", err)
	}

	cards := FindCards(doc, s.selectors)
	s.tracker.IncrementScans()
	s.tracker.AddCardsScanned(len(cards))

	enqueued := 0
	for _, card := range cards {
		p := s.extractor.Extract(card, pageURL)
		if p == nil {
			s.tracker.IncrementCardsSkipped()
			continue
		}
		if s.batcher.Enqueue(*p) {
			enqueued++
		}
	}

	logrus.Debugf("Scanned %s: %d cards, %d new profiles", pageURL, len(cards), enqueued)
	return enqueued, nil
}
