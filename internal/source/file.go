package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/PuerkitoBio/goquery"
	"github.com/alvmarrod/profile-weaver/internal/scraper"
	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// FilePage serves an HTML file saved from a live page
// Writes to the file count as added content; replacing it counts as navigation
type FilePage struct {
	path    string
	pageURL string
}

// NewFilePage reads path; pageURL resolves relative links and may be empty
func NewFilePage(path, pageURL string) *FilePage {
	return &FilePage{path: path, pageURL: pageURL}
}

// Snapshot parses the current file contents
func (p *FilePage) Snapshot(ctx context.Context) (*goquery.Document, string, error) {
	f, err := os.Open(p.path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open page file: %w", err)
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return nil, "", fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, p.pageURL, nil
}

// Watch reports file events until ctx is cancelled
// The parent directory is watched so atomic replace-by-rename is seen as a Create
func (p *FilePage) Watch(ctx context.Context, notify func(scraper.Change)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	target, err := filepath.Abs(p.path)
	if err != nil {
		return fmt.Errorf("failed to resolve page file: %w", err)
	}
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(target), err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			name, err := filepath.Abs(event.Name)
			if err != nil || name != target {
				continue
			}

			switch {
			case event.Has(fsnotify.Create):
				notify(scraper.Navigated)
			case event.Has(fsnotify.Write):
				notify(scraper.ContentAdded)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logrus.Errorf("File watcher error: %v", err)
		}
	}
}
