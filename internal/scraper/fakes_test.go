package scraper

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/alvmarrod/profile-weaver/internal/storage"
)

// fakeClock fires timers only when Advance is called
type fakeClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now + d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && t.at <= c.now {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	for _, t := range due {
		t.f()
	}
}

func (c *fakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// fakeSink records delivered batches
type fakeSink struct {
	mu      sync.Mutex
	batches [][]storage.Profile
	calls   int
	err     error
}

func (s *fakeSink) SendBatch(ctx context.Context, items []storage.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return s.err
	}
	s.batches = append(s.batches, items)
	return nil
}

func (s *fakeSink) Batches() [][]storage.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]storage.Profile(nil), s.batches...)
}

func (s *fakeSink) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// fakePage serves mutable HTML
type fakePage struct {
	mu   sync.Mutex
	html string
	url  string
}

func (p *fakePage) Set(html, url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.html = html
	p.url = url
}

func (p *fakePage) Snapshot(ctx context.Context) (*goquery.Document, string, error) {
	p.mu.Lock()
	html, url := p.html, p.url
	p.mu.Unlock()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	return doc, url, err
}

// fakeSource hands its notify callback to the test
type fakeSource struct {
	watching chan func(Change)
}

func newFakeSource() *fakeSource {
	return &fakeSource{watching: make(chan func(Change), 1)}
}

func (s *fakeSource) Watch(ctx context.Context, notify func(Change)) error {
	s.watching <- notify
	<-ctx.Done()
	return ctx.Err()
}
