package source

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/alvmarrod/profile-weaver/internal/scraper"
	"github.com/gocolly/colly/v2"
)

// HTTPPage fetches a server-rendered page and polls it for changes
type HTTPPage struct {
	pageURL  string
	interval time.Duration

	mu        sync.Mutex // one visit at a time; the collector callback writes below
	collector *colly.Collector
	body      []byte
	finalURL  string
}

// NewHTTPPage configures a collector for pageURL; proxy may be empty
func NewHTTPPage(pageURL string, interval, timeout time.Duration, proxy string) (*HTTPPage, error) {
	c := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.MaxDepth(0),
	)
	c.SetRequestTimeout(timeout)

	if proxy != "" {
		if err := c.SetProxy(proxy); err != nil {
			return nil, fmt.Errorf("failed to set proxy: %w", err)
		}
	}

	p := &HTTPPage{
		pageURL:   pageURL,
		interval:  interval,
		collector: c,
	}

	c.OnResponse(func(r *colly.Response) {
		p.body = r.Body
		p.finalURL = r.Request.URL.String()
	})

	return p, nil
}

// fetch visits the page and returns its body and the URL after redirects
func (p *HTTPPage) fetch(ctx context.Context) ([]byte, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.body, p.finalURL = nil, ""
	if err := p.collector.Visit(p.pageURL); err != nil {
		return nil, "", fmt.Errorf("failed to fetch %s: %w", p.pageURL, err)
	}
	if p.finalURL == "" {
		return nil, "", fmt.Errorf("no response from %s", p.pageURL)
	}
	return p.body, p.finalURL, nil
}

// Snapshot fetches and parses the page
func (p *HTTPPage) Snapshot(ctx context.Context) (*goquery.Document, string, error) {
	body, finalURL, err := p.fetch(ctx)
	if err != nil {
		return nil, "", err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, "", fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, finalURL, nil
}

// Watch polls the page; a changed body reports ContentAdded, a changed final URL Navigated
func (p *HTTPPage) Watch(ctx context.Context, notify func(scraper.Change)) error {
	return pollChanges(ctx, p.interval, func(ctx context.Context) (string, string, error) {
		body, finalURL, err := p.fetch(ctx)
		if err != nil {
			return "", "", err
		}
		return fingerprint(body), finalURL, nil
	}, notify)
}
