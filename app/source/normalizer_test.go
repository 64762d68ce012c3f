package source

import (
	"strings"
	"testing"
	"time"

	"github.com/newssift/newssift/app/store"
)

func TestNormalize_Deterministic(t *testing.T) {
	desc := store.SourceDescriptor{
		ID:   "tech-news",
		Name: "Tech News",
		Kind: store.SourceKindFeed,
	}
	raw := RawItem{
		Title:       "New framework released",
		Body:        "<p>The framework ships with a new runtime.</p>",
		URL:         "https://example.com/article/1",
		PublishedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	fetchedAt := time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC)

	first := Normalize(raw, desc, fetchedAt)
	second := Normalize(raw, desc, fetchedAt)

	if first.ID != second.ID {
		t.Errorf("Expected identical IDs, got %s and %s", first.ID, second.ID)
	}
	if first.ContentFingerprint != second.ContentFingerprint {
		t.Errorf("Expected identical fingerprints, got %s and %s",
			first.ContentFingerprint, second.ContentFingerprint)
	}
}

func TestNormalize_StripsHTML(t *testing.T) {
	desc := store.SourceDescriptor{ID: "tech-news", Name: "Tech News", Kind: store.SourceKindFeed}
	raw := RawItem{
		Title: "Release notes",
		Body:  "<p>First paragraph.</p>\n<p>Second   paragraph.</p>",
		URL:   "https://example.com/article/2",
	}

	article := Normalize(raw, desc, time.Now())

	if article.Body != "First paragraph. Second paragraph." {
		t.Errorf("Expected HTML stripped and whitespace collapsed, got %q", article.Body)
	}
}

func TestNormalize_MissingPublishedAtFallsBackToFetchTime(t *testing.T) {
	desc := store.SourceDescriptor{ID: "tech-news", Name: "Tech News", Kind: store.SourceKindFeed}
	raw := RawItem{Title: "No date", URL: "https://example.com/article/3"}
	fetchedAt := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

	article := Normalize(raw, desc, fetchedAt)

	if !article.PublishedAt.Equal(fetchedAt) {
		t.Errorf("Expected published time to fall back to fetch time, got %v", article.PublishedAt)
	}
}

func TestNormalize_ChannelID(t *testing.T) {
	desc := store.SourceDescriptor{ID: "updates", Name: "Updates", Kind: store.SourceKindChannel}
	raw := RawItem{Title: "Post", Channel: "dailyupdates", MessageID: 42}

	article := Normalize(raw, desc, time.Now())

	if article.ID != "channel_dailyupdates_42" {
		t.Errorf("Expected ID channel_dailyupdates_42, got %s", article.ID)
	}
}

func TestNormalize_FeedIDStableAcrossContentEdits(t *testing.T) {
	desc := store.SourceDescriptor{ID: "tech-news", Name: "Tech News", Kind: store.SourceKindFeed}

	original := Normalize(RawItem{
		Title: "Original headline",
		URL:   "https://example.com/article/4",
	}, desc, time.Now())

	edited := Normalize(RawItem{
		Title: "Edited headline",
		URL:   "https://example.com/article/4",
	}, desc, time.Now())

	if original.ID != edited.ID {
		t.Errorf("Expected same URL to yield the same ID, got %s and %s", original.ID, edited.ID)
	}
	if !strings.HasPrefix(original.ID, "feed_") {
		t.Errorf("Expected feed ID prefix, got %s", original.ID)
	}
}

func TestFingerprint_IgnoresCaseAndTrailingBody(t *testing.T) {
	longBody := strings.Repeat("a", 300)

	a := Fingerprint("Some Title", longBody)
	b := Fingerprint("some title", longBody[:200]+strings.Repeat("b", 100))

	if a != b {
		t.Errorf("Fingerprint should depend only on lowercased title and the leading body")
	}
}

func TestFingerprint_DiffersOnTitle(t *testing.T) {
	if Fingerprint("Title one", "body") == Fingerprint("Title two", "body") {
		t.Errorf("Different titles should produce different fingerprints")
	}
}

func TestBodyPrefix_Truncation(t *testing.T) {
	long := strings.Repeat("x", 250)
	if got := BodyPrefix(long); len([]rune(got)) != 200 {
		t.Errorf("Expected prefix of 200 runes, got %d", len([]rune(got)))
	}

	short := "short body"
	if got := BodyPrefix(short); got != short {
		t.Errorf("Short bodies should pass through unchanged, got %q", got)
	}
}

func TestStripHTML_PlainTextPassthrough(t *testing.T) {
	if got := StripHTML("plain   text here"); got != "plain text here" {
		t.Errorf("Expected collapsed whitespace, got %q", got)
	}
}
