// Package source provides the pages a scraping session observes.
//
// Every page implements both scraper.Page (snapshot the current DOM) and
// scraper.ChangeSource (report that new content may have appeared).
package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/alvmarrod/profile-weaver/internal/scraper"
	"github.com/sirupsen/logrus"
)

// probe returns a content fingerprint and the current page URL
type probe func(ctx context.Context) (fingerprint, pageURL string, err error)

// pollChanges calls p every interval and reports differences from the previous reading
// The first successful reading is the baseline and is not reported
func pollChanges(ctx context.Context, interval time.Duration, p probe, notify func(scraper.Change)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastPrint, lastURL string
	baseline := false

	for {
		fp, pageURL, err := p(ctx)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil
			}
			logrus.Warnf("Page poll failed: %v", err)
		case !baseline:
			lastPrint, lastURL, baseline = fp, pageURL, true
		case pageURL != lastURL:
			logrus.Debugf("Page navigated: %s -> %s", lastURL, pageURL)
			lastPrint, lastURL = fp, pageURL
			notify(scraper.Navigated)
		case fp != lastPrint:
			lastPrint = fp
			notify(scraper.ContentAdded)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func fingerprint(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}
