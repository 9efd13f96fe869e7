package scraper

import (
	"context"
	"testing"

	"github.com/alvmarrod/profile-weaver/internal/extract"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sessionFixture struct {
	page    *fakePage
	sink    *fakeSink
	clock   *fakeClock
	source  *fakeSource
	batcher *Batcher
	session *Session
}

func newSessionFixture() *sessionFixture {
	f := &sessionFixture{
		page:   &fakePage{},
		sink:   &fakeSink{},
		clock:  &fakeClock{},
		source: newFakeSource(),
	}
	f.batcher = NewBatcher(f.sink, WithClock(f.clock))
	scanner := NewScanner(f.page, extract.NewExtractor(extract.DefaultSelectors(), nil), DefaultCardSelectors(), f.batcher, nil)
	f.session = NewSession(scanner, f.batcher, f.source, f.clock, 0)
	return f
}

func cards(ids ...string) string {
	html := ""
	for _, id := range ids {
		html += `<div class="user-card"><a href="/profile/` + id + `">` + id + `</a></div>`
	}
	return html
}

func TestSession_StartScansAndObserves(t *testing.T) {
	f := newSessionFixture()
	ctx := context.Background()
	f.page.Set(cards("1", "2"), listingURL)

	require.NoError(t, f.session.Start(ctx))
	assert.Equal(t, StateObserving, f.session.State())
	assert.Equal(t, 2, f.batcher.Buffered())

	notify := <-f.source.watching

	f.page.Set(cards("1", "2", "3"), listingURL)
	notify(ContentAdded)
	assert.Equal(t, 3, f.batcher.Buffered())

	require.NoError(t, f.session.Stop(ctx))
}

func TestSession_NavigationScanIsDelayed(t *testing.T) {
	f := newSessionFixture()
	ctx := context.Background()
	f.page.Set("", listingURL)

	require.NoError(t, f.session.Start(ctx))
	notify := <-f.source.watching

	f.page.Set(cards("9"), "https://site.example/search?page=2")
	notify(Navigated)
	assert.Equal(t, 0, f.batcher.Buffered())

	f.clock.Advance(DefaultNavigationDelay - 1)
	assert.Equal(t, 0, f.batcher.Buffered())

	f.clock.Advance(1)
	assert.Equal(t, 1, f.batcher.Buffered())

	require.NoError(t, f.session.Stop(ctx))
}

func TestSession_StopFlushesAndIgnoresLateEvents(t *testing.T) {
	f := newSessionFixture()
	ctx := context.Background()
	f.page.Set(cards("1"), listingURL)

	require.NoError(t, f.session.Start(ctx))
	notify := <-f.source.watching

	// A navigation scan scheduled before stop must not run after it
	notify(Navigated)

	require.NoError(t, f.session.Stop(ctx))
	assert.Equal(t, StateStopped, f.session.State())

	batches := f.sink.Batches()
	require.Len(t, batches, 1)
	assert.Equal(t, "1", batches[0][0].ID)
	assert.Equal(t, 0, f.clock.Pending())

	f.page.Set(cards("1", "2"), listingURL)
	notify(ContentAdded)
	f.clock.Advance(DefaultNavigationDelay)
	assert.Equal(t, 0, f.batcher.Buffered())

	// Stopping twice is harmless
	require.NoError(t, f.session.Stop(ctx))
	assert.Len(t, f.sink.Batches(), 1)
}

func TestSession_RestartResetsSeenSet(t *testing.T) {
	f := newSessionFixture()
	ctx := context.Background()
	f.page.Set(cards("1"), listingURL)

	require.NoError(t, f.session.Start(ctx))
	<-f.source.watching
	require.NoError(t, f.session.Stop(ctx))

	require.NoError(t, f.session.Start(ctx))
	<-f.source.watching
	assert.Equal(t, 1, f.batcher.Buffered())

	// Start while observing is a no-op
	require.NoError(t, f.session.Start(ctx))
	assert.Equal(t, 1, f.batcher.Buffered())

	require.NoError(t, f.session.Flush(ctx))
	assert.Len(t, f.sink.Batches(), 2)
	require.NoError(t, f.session.Stop(ctx))
}
