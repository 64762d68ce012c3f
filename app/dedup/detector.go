// Package dedup rejects incoming articles that match already stored
// ones, across sources and across cycles.
package dedup

import (
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/newssift/newssift/app/source"
	"github.com/newssift/newssift/app/store"
)

// DefaultSimilarityThreshold is the empirically chosen cutoff above
// which two titles or body prefixes count as the same content.
const DefaultSimilarityThreshold = 0.85

// Detector compares candidate articles against the existing article
// set. The scan is O(existing) per candidate, which is fine at a few
// thousand stored articles; revisit before growing past that.
type Detector struct {
	threshold float64
}

func NewDetector() *Detector {
	return &Detector{threshold: DefaultSimilarityThreshold}
}

// IsDuplicate reports whether the candidate matches any existing
// article, returning the matched article's ID. Checks run cheapest
// first: exact fingerprint, then title similarity, then leading-body
// similarity.
func (d *Detector) IsDuplicate(candidate store.Article, existing []store.Article) (string, bool) {
	title := normalizeText(candidate.Title)
	body := normalizeText(source.BodyPrefix(candidate.Body))

	for _, ex := range existing {
		if candidate.ContentFingerprint != "" && ex.ContentFingerprint == candidate.ContentFingerprint {
			return ex.ID, true
		}

		if Similarity(title, normalizeText(ex.Title)) > d.threshold {
			return ex.ID, true
		}

		exBody := normalizeText(source.BodyPrefix(ex.Body))
		if body != "" && exBody != "" && Similarity(body, exBody) > d.threshold {
			return ex.ID, true
		}
	}

	return "", false
}

// Similarity maps edit distance onto [0,1]: 1.0 for identical strings,
// 0.0 for unrelated or empty input.
func Similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}

	maxLen := len([]rune(a))
	if l := len([]rune(b)); l > maxLen {
		maxLen = l
	}

	distance := levenshtein.ComputeDistance(a, b)
	similarity := 1.0 - float64(distance)/float64(maxLen)
	if similarity < 0 {
		return 0
	}
	if similarity > 1 {
		return 1
	}
	return similarity
}

func normalizeText(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
