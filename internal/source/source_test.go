package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alvmarrod/profile-weaver/internal/scraper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type changeLog struct {
	mu      sync.Mutex
	changes []scraper.Change
}

func (l *changeLog) notify(c scraper.Change) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.changes = append(l.changes, c)
}

func (l *changeLog) contains(c scraper.Change) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, got := range l.changes {
		if got == c {
			return true
		}
	}
	return false
}

func (l *changeLog) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.changes)
}

func TestPollChanges(t *testing.T) {
	readings := []struct {
		fp, url string
		err     error
	}{
		{"a", "u1", nil},
		{"a", "u1", nil},
		{"b", "u1", nil},
		{"", "", errors.New("transient")},
		{"c", "u2", nil},
	}

	var calls int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log := &changeLog{}
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = pollChanges(ctx, time.Millisecond, func(ctx context.Context) (string, string, error) {
			i := int(atomic.AddInt32(&calls, 1)) - 1
			if i >= len(readings) {
				cancel()
				return "", "", ctx.Err()
			}
			r := readings[i]
			return r.fp, r.url, r.err
		}, log.notify)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("poll loop did not stop")
	}

	assert.Equal(t, []scraper.Change{scraper.ContentAdded, scraper.Navigated}, log.changes)
}

func TestHTTPPage_SnapshotAndWatch(t *testing.T) {
	var version int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		v := atomic.LoadInt32(&version)
		fmt.Fprintf(w, `<html><body><div class="user-card"><a href="/profile/%d">p</a></div></body></html>`, v)
	}))
	defer srv.Close()

	page, err := NewHTTPPage(srv.URL+"/search", 10*time.Millisecond, 2*time.Second, "")
	require.NoError(t, err)

	doc, pageURL, err := page.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/search", pageURL)
	href, _ := doc.Find(".user-card a").Attr("href")
	assert.Equal(t, "/profile/0", href)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	log := &changeLog{}
	go func() { _ = page.Watch(ctx, log.notify) }()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, log.len(), "unchanged page must not be reported")

	atomic.StoreInt32(&version, 1)
	assert.Eventually(t, func() bool { return log.contains(scraper.ContentAdded) }, 2*time.Second, 10*time.Millisecond)
}

func TestHTTPPage_FetchError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	page, err := NewHTTPPage(srv.URL, time.Second, 2*time.Second, "")
	require.NoError(t, err)

	_, _, err = page.Snapshot(context.Background())
	assert.Error(t, err)
}

func TestFilePage_SnapshotAndWatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "page.html")
	require.NoError(t, os.WriteFile(path, []byte(`<div class="user-card"><a href="/profile/1">x</a></div>`), 0644))

	page := NewFilePage(path, "https://site.example/search")
	doc, pageURL, err := page.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://site.example/search", pageURL)
	assert.Equal(t, 1, doc.Find(".user-card").Length())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	log := &changeLog{}
	watching := make(chan error, 1)
	go func() { watching <- page.Watch(ctx, log.notify) }()

	// Give the watcher time to register
	time.Sleep(100 * time.Millisecond)

	// Unrelated files in the same directory are ignored
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.html"), []byte("x"), 0644))

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString(`<div class="user-card"><a href="/profile/2">y</a></div>`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	assert.Eventually(t, func() bool { return log.contains(scraper.ContentAdded) }, 2*time.Second, 10*time.Millisecond)

	// Replacing the file is a navigation
	tmp := filepath.Join(dir, "next.tmp")
	require.NoError(t, os.WriteFile(tmp, []byte(`<div></div>`), 0644))
	require.NoError(t, os.Rename(tmp, path))

	assert.Eventually(t, func() bool { return log.contains(scraper.Navigated) }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-watching:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestFilePage_MissingFile(t *testing.T) {
	page := NewFilePage(filepath.Join(t.TempDir(), "absent.html"), "")
	_, _, err := page.Snapshot(context.Background())
	assert.Error(t, err)
}
