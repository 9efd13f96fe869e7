package scraper

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultNavigationDelay lets a new page render before it is scanned
const DefaultNavigationDelay = 500 * time.Millisecond

// Change is a hint that new cards may be present
type Change int

const (
	// ContentAdded means nodes were added to the current page
	ContentAdded Change = iota
	// Navigated means the page URL changed without a full reload
	Navigated
)

func (c Change) String() string {
	if c == Navigated {
		return "navigated"
	}
	return "content_added"
}

// ChangeSource reports potential new content until ctx is cancelled
type ChangeSource interface {
	Watch(ctx context.Context, notify func(Change)) error
}

// State of a session
type State int

const (
	StateStopped State = iota
	StateObserving
)

func (s State) String() string {
	if s == StateObserving {
		return "observing"
	}
	return "stopped"
}

// Session drives scans from change notifications between Start and Stop
type Session struct {
	scanner  *Scanner
	batcher  *Batcher
	source   ChangeSource
	clock    Clock
	navDelay time.Duration

	mu        sync.Mutex
	state     State
	gen       int
	cancel    context.CancelFunc
	done      chan struct{}
	navTimers map[int]Timer
	navSeq    int
}

// NewSession creates a stopped session
func NewSession(scanner *Scanner, batcher *Batcher, source ChangeSource, clock Clock, navDelay time.Duration) *Session {
	if clock == nil {
		clock = RealClock{}
	}
	if navDelay <= 0 {
		navDelay = DefaultNavigationDelay
	}
	return &Session{
		scanner:   scanner,
		batcher:   batcher,
		source:    source,
		clock:     clock,
		navDelay:  navDelay,
		navTimers: make(map[int]Timer),
	}
}

// State returns the current state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start resets the seen-set, scans once and begins watching for changes
// Starting an observing session is a no-op
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateObserving {
		s.mu.Unlock()
		return nil
	}

	s.batcher.Reset()
	s.state = StateObserving
	s.gen++
	gen := s.gen

	// The watch outlives the request that started it
	watchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	logrus.Info("Scraping started")
	s.scanIfCurrent(gen)

	go func() {
		defer close(done)
		err := s.source.Watch(watchCtx, func(c Change) { s.onChange(gen, c) })
		if err != nil && watchCtx.Err() == nil {
			logrus.Errorf("Change source stopped: %v", err)
		}
	}()

	return nil
}

// Stop cancels observation and pending navigation scans, then flushes the batcher
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateStopped {
		s.mu.Unlock()
		return nil
	}

	s.state = StateStopped
	s.cancel()
	for id, t := range s.navTimers {
		t.Stop()
		delete(s.navTimers, id)
	}
	done := s.done
	s.mu.Unlock()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		logrus.Warn("Change source did not stop within 5s")
	}

	logrus.Info("Scraping stopped, flushing remaining profiles")
	return s.batcher.Stop(ctx)
}

// Flush delivers buffered profiles without stopping
func (s *Session) Flush(ctx context.Context) error {
	return s.batcher.Flush(ctx)
}

func (s *Session) onChange(gen int, c Change) {
	logrus.Debugf("Change detected: %s", c)

	if c == ContentAdded {
		s.scanIfCurrent(gen)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateObserving || s.gen != gen {
		return
	}
	s.navSeq++
	id := s.navSeq
	s.navTimers[id] = s.clock.AfterFunc(s.navDelay, func() {
		s.mu.Lock()
		delete(s.navTimers, id)
		s.mu.Unlock()
		s.scanIfCurrent(gen)
	})
}

// scanIfCurrent scans only while the session that scheduled it is still observing
func (s *Session) scanIfCurrent(gen int) {
	s.mu.Lock()
	current := s.state == StateObserving && s.gen == gen
	s.mu.Unlock()
	if !current {
		return
	}

	if _, err := s.scanner.Scan(context.Background()); err != nil {
		logrus.Warnf("Scan failed: %v", err)
	}
}
