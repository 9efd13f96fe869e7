package extract

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/alvmarrod/profile-weaver/internal/storage"
)

// TimeLayout is the sortable UTC form used for ScrapedAt
const TimeLayout = "2006-01-02T15:04:05.000Z"

var agePattern = regexp.MustCompile(`\d{1,3}`)

// Selectors lists candidate CSS selectors, tried in order
type Selectors struct {
	// Links are tried in order; the first one matching an anchor wins
	Links    []string
	Name     []string
	Age      []string
	Location []string
	Bio      []string
	// LazySrcAttr is read when an image has no src
	LazySrcAttr string
	// URLAttr on the card is the fallback when it has no anchor
	URLAttr string
}

// DefaultSelectors returns generic profile-listing heuristics
func DefaultSelectors() Selectors {
	return Selectors{
		Links:       []string{`a[href*="/profile"]`, `a[href*="/user"]`, `a`},
		Name:        []string{`[data-test="user-name"]`, `.user-name`, `.profile-name`, `h3`, `h2`, `.name`},
		Age:         []string{`.age`, `.user-age`},
		Location:    []string{`.location`, `.user-location`},
		Bio:         []string{`.bio`, `.description`, `.user-bio`},
		LazySrcAttr: "data-src",
		URLAttr:     "data-url",
	}
}

// Extractor turns card elements into profiles
type Extractor struct {
	selectors Selectors
	now       func() time.Time

	mu   sync.Mutex
	last time.Time
}

// NewExtractor creates an extractor; a nil now uses time.Now
func NewExtractor(selectors Selectors, now func() time.Time) *Extractor {
	if now == nil {
		now = time.Now
	}
	return &Extractor{selectors: selectors, now: now}
}

// Extract derives a profile from card, resolving links against pageURL
// Returns nil when no id can be derived
func (e *Extractor) Extract(card *goquery.Selection, pageURL string) *storage.Profile {
	link := e.findLink(card, pageURL)
	normalized := NormalizeURL(link, pageURL)
	id := IDFromURL(normalized, pageURL)
	if id == "" {
		return nil
	}

	return &storage.Profile{
		ID:        id,
		URL:       normalized,
		Name:      firstText(card, e.selectors.Name),
		Age:       ParseAge(firstText(card, e.selectors.Age)),
		Location:  firstText(card, e.selectors.Location),
		Photos:    e.photos(card, pageURL),
		Bio:       firstText(card, e.selectors.Bio),
		ScrapedAt: e.stamp(),
	}
}

// findLink picks the representative link of a card
func (e *Extractor) findLink(card *goquery.Selection, pageURL string) string {
	for _, sel := range e.selectors.Links {
		anchor := card.Find(sel).First()
		if anchor.Length() > 0 {
			href, _ := anchor.Attr("href")
			return href
		}
	}

	if e.selectors.URLAttr != "" {
		if v, ok := card.Attr(e.selectors.URLAttr); ok && v != "" {
			return v
		}
	}

	return pageURL
}

func (e *Extractor) photos(card *goquery.Selection, pageURL string) []string {
	var photos []string
	card.Find("img").Each(func(_ int, img *goquery.Selection) {
		src, _ := img.Attr("src")
		if src == "" && e.selectors.LazySrcAttr != "" {
			src, _ = img.Attr(e.selectors.LazySrcAttr)
		}
		if src == "" {
			return
		}
		photos = append(photos, NormalizeURL(src, pageURL))
	})
	return photos
}

// stamp returns the current time, never earlier than a previous stamp
func (e *Extractor) stamp() string {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now().UTC()
	if now.Before(e.last) {
		now = e.last
	}
	e.last = now
	return now.Format(TimeLayout)
}

// NormalizeURL resolves raw against base; malformed input is returned unchanged
func NormalizeURL(raw, base string) string {
	ref, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	baseURL, err := url.Parse(base)
	if err != nil || base == "" {
		if ref.IsAbs() {
			return ref.String()
		}
		return raw
	}

	return baseURL.ResolveReference(ref).String()
}

// IDFromURL returns the last non-empty path segment, or the whole URL when the path has none
func IDFromURL(rawURL, base string) string {
	u, err := url.Parse(NormalizeURL(rawURL, base))
	if err != nil {
		return rawURL
	}

	var last string
	for _, part := range strings.Split(u.EscapedPath(), "/") {
		if part != "" {
			last = part
		}
	}
	if last == "" {
		return rawURL
	}
	return last
}

// ParseAge reads the first run of 1-3 digits
func ParseAge(text string) *int {
	m := agePattern.FindString(text)
	if m == "" {
		return nil
	}
	age, err := strconv.Atoi(m)
	if err != nil {
		return nil
	}
	return &age
}

func firstText(card *goquery.Selection, selectors []string) string {
	for _, sel := range selectors {
		el := card.Find(sel).First()
		if el.Length() == 0 {
			continue
		}
		return strings.TrimSpace(el.Text())
	}
	return ""
}
