package source

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/alvmarrod/profile-weaver/internal/scraper"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// BrowserPage drives a real browser tab, for pages that render cards with scripts
type BrowserPage struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	page     *rod.Page
	interval time.Duration
}

// BrowserOptions configures the launched browser
type BrowserOptions struct {
	Headless     bool
	Proxy        string
	PollInterval time.Duration
	LoadTimeout  time.Duration
}

// NewBrowserPage launches a browser and opens pageURL in a new tab
func NewBrowserPage(pageURL string, opts BrowserOptions) (*BrowserPage, error) {
	l := launcher.New().Headless(opts.Headless)
	if opts.Proxy != "" {
		l = l.Proxy(opts.Proxy)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	bp := &BrowserPage{
		browser:  browser,
		launcher: l,
		interval: opts.PollInterval,
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: pageURL})
	if err != nil {
		bp.Close()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	bp.page = page

	if err := page.Timeout(opts.LoadTimeout).WaitLoad(); err != nil {
		bp.Close()
		return nil, fmt.Errorf("failed to load %s: %w", pageURL, err)
	}

	return bp, nil
}

func (p *BrowserPage) read(ctx context.Context) (string, string, error) {
	page := p.page.Context(ctx)

	html, err := page.HTML()
	if err != nil {
		return "", "", fmt.Errorf("failed to get page HTML: %w", err)
	}
	info, err := page.Info()
	if err != nil {
		return "", "", fmt.Errorf("failed to get page info: %w", err)
	}
	return html, info.URL, nil
}

// Snapshot parses the live DOM of the tab
func (p *BrowserPage) Snapshot(ctx context.Context) (*goquery.Document, string, error) {
	html, pageURL, err := p.read(ctx)
	if err != nil {
		return nil, "", err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, "", fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, pageURL, nil
}

// Watch polls the tab; a URL change reports Navigated, a DOM change ContentAdded
func (p *BrowserPage) Watch(ctx context.Context, notify func(scraper.Change)) error {
	return pollChanges(ctx, p.interval, func(ctx context.Context) (string, string, error) {
		html, pageURL, err := p.read(ctx)
		if err != nil {
			return "", "", err
		}
		return fingerprint([]byte(html)), pageURL, nil
	}, notify)
}

// Close shuts the browser down
func (p *BrowserPage) Close() error {
	var err error
	if p.browser != nil {
		err = p.browser.Close()
	}
	if p.launcher != nil {
		p.launcher.Kill()
	}
	return err
}
