package source

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/newssift/newssift/app/store"
)

// fingerprintBodyLen is how much of the body participates in the
// content fingerprint and in similarity comparisons.
const fingerprintBodyLen = 200

// Normalize converts a raw item into the canonical article shape. The
// result is deterministic: normalizing the same raw item twice yields
// identical ID and fingerprint.
func Normalize(raw RawItem, desc store.SourceDescriptor, fetchedAt time.Time) store.Article {
	title := strings.TrimSpace(raw.Title)
	body := StripHTML(raw.Body)

	publishedAt := raw.PublishedAt
	if publishedAt.IsZero() {
		publishedAt = fetchedAt
	}

	return store.Article{
		ID:                 articleID(raw, desc),
		Title:              title,
		Body:               body,
		URL:                raw.URL,
		SourceName:         desc.Name,
		SourceKind:         desc.Kind,
		PublishedAt:        publishedAt.UTC(),
		FetchedAt:          fetchedAt.UTC(),
		ContentFingerprint: Fingerprint(title, body),
	}
}

// Fingerprint hashes the normalized title and leading body for
// exact-duplicate detection. It is a similarity key, not a primary key.
func Fingerprint(title, body string) string {
	input := fmt.Sprintf("%s|%s",
		strings.ToLower(strings.TrimSpace(title)),
		strings.ToLower(BodyPrefix(body)))

	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:])
}

// BodyPrefix returns the leading part of the body used for
// fingerprinting and similarity comparison.
func BodyPrefix(body string) string {
	runes := []rune(strings.TrimSpace(body))
	if len(runes) > fingerprintBodyLen {
		runes = runes[:fingerprintBodyLen]
	}
	return string(runes)
}

// articleID derives a stable ID from the source kind and the item's
// natural key, so re-fetching the same remote item yields the same ID.
func articleID(raw RawItem, desc store.SourceDescriptor) string {
	switch desc.Kind {
	case store.SourceKindChannel:
		if raw.Channel != "" && raw.MessageID != 0 {
			return fmt.Sprintf("channel_%s_%d", raw.Channel, raw.MessageID)
		}
	case store.SourceKindFeed:
		if raw.URL != "" {
			return fmt.Sprintf("feed_%s", shortHash(raw.URL))
		}
	}
	key := fmt.Sprintf("%s|%s", raw.Title, raw.PublishedAt.UTC().Format(time.RFC3339))
	return fmt.Sprintf("%s_%s", desc.Kind, shortHash(key))
}

func shortHash(s string) string {
	hash := sha256.Sum256([]byte(s))
	return hex.EncodeToString(hash[:])[:16]
}

// StripHTML reduces HTML markup to plain text with collapsed
// whitespace. Plain text passes through unchanged apart from trimming.
func StripHTML(s string) string {
	if !strings.ContainsRune(s, '<') {
		return strings.Join(strings.Fields(s), " ")
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.Join(strings.Fields(s), " ")
	}

	return strings.Join(strings.Fields(doc.Text()), " ")
}
