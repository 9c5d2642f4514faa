// Package extract pulls internship listings out of the source page HTML.
//
// Selection is a class-name keyword heuristic. It is tied to the current markup of
// the listing page and will silently return fewer (or zero) listings when that markup
// changes.
package extract

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/pm-internship-scraper/internal/internship"
)

// MaxListings caps the number of containers turned into listings per page.
const MaxListings = 10

// minTitleRunes is the length a trimmed heading must exceed to be used as a title.
const minTitleRunes = 5

var (
	containerTags = map[string]struct{}{"div": {}, "article": {}}
	classKeywords = []string{"internship", "job", "card", "listing"}
	headingTags   = "h1, h2, h3, h4"
)

// Extractor implements internship.Extractor with goquery.
type Extractor struct {
	clock internship.Clock
	limit int
}

// New creates an Extractor that stamps listings with clock.
func New(clock internship.Clock) *Extractor {
	return &Extractor{clock: clock, limit: MaxListings}
}

// Extract parses body and returns up to MaxListings listings in document order.
func (e *Extractor) Extract(body []byte) ([]internship.Listing, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, internship.ParseError(fmt.Errorf("parse html: %w", err))
	}

	containers := Containers(doc.Selection)
	if containers.Length() > e.limit {
		containers = containers.Slice(0, e.limit)
	}

	listings := make([]internship.Listing, 0, containers.Length())
	var last int64
	containers.Each(func(_ int, card *goquery.Selection) {
		ts := e.clock.Now().UnixMilli()
		if ts < last {
			ts = last
		}
		last = ts
		listings = append(listings, internship.NewListing(Title(card), ts))
	})
	return listings, nil
}

// Containers returns every element under root, in document order, that looks like
// a listing card.
func Containers(root *goquery.Selection) *goquery.Selection {
	return root.Find("*").FilterFunction(func(_ int, s *goquery.Selection) bool {
		if _, ok := containerTags[goquery.NodeName(s)]; !ok {
			return false
		}
		class, ok := s.Attr("class")
		if !ok || class == "" {
			return false
		}
		class = strings.ToLower(class)
		for _, keyword := range classKeywords {
			if strings.Contains(class, keyword) {
				return true
			}
		}
		return false
	})
}

// Title returns the first qualifying heading text inside card, or the fallback.
func Title(card *goquery.Selection) string {
	title := internship.FallbackTitle
	card.Find(headingTags).EachWithBreak(func(_ int, h *goquery.Selection) bool {
		text := strings.TrimSpace(h.Text())
		if utf8.RuneCountInString(text) > minTitleRunes {
			title = text
			return false
		}
		return true
	})
	return title
}
