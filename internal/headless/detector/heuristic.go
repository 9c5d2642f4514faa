// Package detector decides when a fetched listing page must be re-rendered headless.
package detector

import (
	"bytes"
	"net/http"
	"regexp"
	"strings"

	"github.com/JakeFAU/pm-internship-scraper/internal/internship"
)

const defaultThreshold = 2048

// listingClass matches a class attribute, quoted or not, carrying one of the
// container keywords.
var listingClass = regexp.MustCompile(`(?i)class\s*=\s*(?:["'][^"']*|[^\s"'>]*)(internship|job|card|listing)`)

var spaMarkers = [][]byte{
	[]byte("__next"),
	[]byte(`id="root"`),
	[]byte(`id="app"`),
	[]byte("data-reactroot"),
	[]byte("ng-version"),
}

// Heuristic promotes pages that look like client-rendered shells without listing markup.
type Heuristic struct {
	BodyLengthThreshold int
}

// NewHeuristic creates a new detector.
func NewHeuristic(threshold int) *Heuristic {
	if threshold <= 0 {
		threshold = defaultThreshold
	}
	return &Heuristic{BodyLengthThreshold: threshold}
}

// ShouldPromote reports whether a headless fetch is required.
func (h *Heuristic) ShouldPromote(resp internship.FetchResponse) bool {
	if resp.StatusCode != http.StatusOK {
		return false
	}
	body := resp.Body
	if len(body) == 0 {
		return true
	}
	if listingClass.Match(body) {
		return false
	}
	if len(body) < h.BodyLengthThreshold && scriptCoverage(body) >= 25 {
		return true
	}
	for _, marker := range spaMarkers {
		if bytes.Contains(body, marker) {
			return true
		}
	}
	return false
}

// scriptCoverage returns the percentage of the document inside <script> elements.
func scriptCoverage(body []byte) int {
	lower := strings.ToLower(string(body))
	total := len(lower)
	if total == 0 {
		return 0
	}

	const (
		openTag  = "<script"
		closeTag = "</script>"
	)
	covered := 0
	pos := 0
	for {
		rel := strings.Index(lower[pos:], openTag)
		if rel == -1 {
			break
		}
		start := pos + rel

		tagClose := strings.IndexByte(lower[start:], '>')
		if tagClose == -1 {
			// Unterminated tag runs to the end of the document.
			covered += total - start
			break
		}
		contentStart := start + tagClose + 1

		end := total
		if relEnd := strings.Index(lower[contentStart:], closeTag); relEnd != -1 {
			end = contentStart + relEnd + len(closeTag)
		}
		covered += end - start
		pos = end
	}
	return covered * 100 / total
}
