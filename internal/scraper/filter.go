package scraper

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// CardSelectors describe how candidate cards are found on a page
type CardSelectors struct {
	// Primary selectors match card wrappers directly
	Primary []string
	// ProfileLinks are used only when Primary yields nothing
	ProfileLinks []string
	// Container is the closest ancestor of a profile link treated as its card
	Container string
}

// DefaultCardSelectors returns generic listing heuristics
func DefaultCardSelectors() CardSelectors {
	return CardSelectors{
		Primary:      []string{`[data-test="user-card"]`, `.user-card`, `.profile`, `.profile-item`, `[data-qa="card"]`},
		ProfileLinks: []string{`a[href*="/profile"]`, `a[href*="/user"]`},
		Container:    "article, li, div",
	}
}

// FindCards selects candidate card elements in document order
// The profile-link fallback runs only when no primary selector matches
func FindCards(doc *goquery.Document, sel CardSelectors) []*goquery.Selection {
	var cards []*goquery.Selection

	if len(sel.Primary) > 0 {
		doc.Find(strings.Join(sel.Primary, ", ")).Each(func(_ int, s *goquery.Selection) {
			cards = append(cards, s)
		})
	}
	if len(cards) > 0 || len(sel.ProfileLinks) == 0 {
		return cards
	}

	// Broad fallback: walk each profile link up to its container
	doc.Find(strings.Join(sel.ProfileLinks, ", ")).Each(func(_ int, a *goquery.Selection) {
		parent := a.Closest(sel.Container)
		if parent.Length() == 0 {
			return
		}
		// Skip duplicates (several links inside one container)
		if containsNode(cards, parent) {
			return
		}
		cards = append(cards, parent)
	})

	return cards
}

func containsNode(cards []*goquery.Selection, s *goquery.Selection) bool {
	node := s.Get(0)
	for _, c := range cards {
		if c.Get(0) == node {
			return true
		}
	}
	return false
}
