package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/newssift/newssift/app/source"
	"github.com/newssift/newssift/app/store"
)

// memStore is an in-memory Store for pipeline tests.
type memStore struct {
	mu       sync.Mutex
	articles []store.Article
	sources  []store.SourceDescriptor

	readArticlesErr error
	appendErr       error
}

func (m *memStore) ReadArticles() ([]store.Article, error) {
	if m.readArticlesErr != nil {
		return nil, m.readArticlesErr
	}
	out := make([]store.Article, len(m.articles))
	copy(out, m.articles)
	return out, nil
}

func (m *memStore) AppendArticles(articles []store.Article) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	m.articles = append(m.articles, articles...)
	return nil
}

func (m *memStore) ReadSources() ([]store.SourceDescriptor, error) {
	out := make([]store.SourceDescriptor, len(m.sources))
	copy(out, m.sources)
	return out, nil
}

func (m *memStore) WriteSources(sources []store.SourceDescriptor) error {
	m.sources = make([]store.SourceDescriptor, len(sources))
	copy(m.sources, sources)
	return nil
}

func (m *memStore) Lock()        { m.mu.Lock() }
func (m *memStore) Unlock()      { m.mu.Unlock() }
func (m *memStore) Close() error { return nil }

// fakeFetcher serves canned items per source ID.
type fakeFetcher struct {
	items    []source.RawItem
	fetchErr error
	block    bool
}

func (f *fakeFetcher) ValidateConfig(ctx context.Context) error { return nil }

func (f *fakeFetcher) Fetch(ctx context.Context) ([]source.RawItem, error) {
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.items, nil
}

func newTestRegistry(fetchers map[string]*fakeFetcher) *source.Registry {
	registry := source.NewRegistry(source.Deps{})
	registry.Register(store.SourceKindFeed, func(desc store.SourceDescriptor, deps source.Deps) (source.Fetcher, error) {
		f, ok := fetchers[desc.ID]
		if !ok {
			return nil, errors.New("no fake fetcher for " + desc.ID)
		}
		return f, nil
	})
	return registry
}

func validSource(id, name string) store.SourceDescriptor {
	validatedAt := time.Now().UTC()
	return store.SourceDescriptor{
		ID: id, Name: name, Kind: store.SourceKindFeed, Enabled: true,
		ValidationStatus: store.ValidationValid,
		ValidatedAt:      &validatedAt,
	}
}

func rawItem(title, body, url string) source.RawItem {
	return source.RawItem{
		Title:       title,
		Body:        body,
		URL:         url,
		PublishedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestRunner_RunCycle_TwoSources(t *testing.T) {
	st := &memStore{
		sources: []store.SourceDescriptor{
			validSource("site-a", "Site A"),
			validSource("site-b", "Site B"),
		},
	}

	// Both sources carry the same story, worded almost identically.
	registry := newTestRegistry(map[string]*fakeFetcher{
		"site-a": {items: []source.RawItem{
			rawItem("Breaking: Prices rise sharply", "Consumer prices rose again last month.", "https://a.example.com/1"),
			rawItem("Parliament passes budget bill", "The annual budget cleared its final vote.", "https://a.example.com/2"),
		}},
		"site-b": {items: []source.RawItem{
			rawItem("Breaking: Prices rise sharply!", "Consumer prices rose again last month.", "https://b.example.com/1"),
			rawItem("Local team wins championship", "The home side took the title on Saturday.", "https://b.example.com/2"),
		}},
	})

	runner := NewRunner(st, registry)

	report, err := runner.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}

	if report.NewCount != 3 {
		t.Errorf("Expected 3 new articles, got %d", report.NewCount)
	}
	if report.DuplicateCount != 1 {
		t.Errorf("Expected 1 cross-source duplicate, got %d", report.DuplicateCount)
	}
	if len(st.articles) != 3 {
		t.Errorf("Expected 3 persisted articles, got %d", len(st.articles))
	}
	if len(report.PerSource) != 2 {
		t.Errorf("Expected outcomes for both sources, got %d", len(report.PerSource))
	}
	if report.PerSource["Site A"].ArticlesFound != 2 {
		t.Errorf("Expected 2 articles found for Site A, got %d", report.PerSource["Site A"].ArticlesFound)
	}
}

func TestRunner_RunCycle_Idempotent(t *testing.T) {
	st := &memStore{
		sources: []store.SourceDescriptor{validSource("site-a", "Site A")},
	}
	registry := newTestRegistry(map[string]*fakeFetcher{
		"site-a": {items: []source.RawItem{
			rawItem("Stable headline", "Stable body text for the article.", "https://a.example.com/1"),
		}},
	})

	runner := NewRunner(st, registry)

	first, err := runner.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("First cycle failed: %v", err)
	}
	if first.NewCount != 1 {
		t.Fatalf("Expected 1 new article in the first cycle, got %d", first.NewCount)
	}

	second, err := runner.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("Second cycle failed: %v", err)
	}

	if second.NewCount != 0 {
		t.Errorf("Expected 0 new articles on re-ingestion, got %d", second.NewCount)
	}
	if second.DuplicateCount != 1 {
		t.Errorf("Expected 1 duplicate on re-ingestion, got %d", second.DuplicateCount)
	}
	if len(st.articles) != 1 {
		t.Errorf("Expected the store to still hold 1 article, got %d", len(st.articles))
	}
}

func TestRunner_RunCycle_SourceFailureIsolated(t *testing.T) {
	st := &memStore{
		sources: []store.SourceDescriptor{
			validSource("good", "Good Source"),
			validSource("bad", "Bad Source"),
		},
	}
	registry := newTestRegistry(map[string]*fakeFetcher{
		"good": {items: []source.RawItem{
			rawItem("Working headline", "Body from the working source.", "https://good.example.com/1"),
		}},
		"bad": {fetchErr: errors.New("connection refused")},
	})

	runner := NewRunner(st, registry)

	report, err := runner.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle should not fail when one source fails: %v", err)
	}

	if report.NewCount != 1 {
		t.Errorf("Expected the healthy source's article, got %d new", report.NewCount)
	}

	bad := report.PerSource["Bad Source"]
	if bad.Errors != 1 {
		t.Errorf("Expected 1 error recorded for the failing source, got %d", bad.Errors)
	}
	if bad.LastError == "" {
		t.Errorf("Expected last error message recorded")
	}
}

func TestRunner_RunCycle_FetchTimeout(t *testing.T) {
	st := &memStore{
		sources: []store.SourceDescriptor{
			validSource("slow", "Slow Source"),
			validSource("fast", "Fast Source"),
		},
	}
	registry := newTestRegistry(map[string]*fakeFetcher{
		"slow": {block: true},
		"fast": {items: []source.RawItem{
			rawItem("Quick headline", "Body from the fast source.", "https://fast.example.com/1"),
		}},
	})

	runner := NewRunner(st, registry, WithFetchTimeout(50*time.Millisecond))

	report, err := runner.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle should not fail on a per-source timeout: %v", err)
	}

	if report.PerSource["Slow Source"].Errors != 1 {
		t.Errorf("Expected the slow source to time out")
	}
	if report.NewCount != 1 {
		t.Errorf("Expected the fast source's article, got %d new", report.NewCount)
	}
}

func TestRunner_RunCycle_SpamPersistedWithLabel(t *testing.T) {
	st := &memStore{
		sources: []store.SourceDescriptor{validSource("site-a", "Site A")},
	}
	registry := newTestRegistry(map[string]*fakeFetcher{
		"site-a": {items: []source.RawItem{
			rawItem("Claim your prize now", "promo code coupon voucher available", "https://a.example.com/1"),
		}},
	})

	runner := NewRunner(st, registry)

	report, err := runner.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}

	if report.SpamCount != 1 {
		t.Errorf("Expected 1 spam article, got %d", report.SpamCount)
	}
	if report.NewCount != 1 {
		t.Errorf("Spam should still count as new, got %d", report.NewCount)
	}
	if len(st.articles) != 1 {
		t.Fatalf("Spam should be persisted, store holds %d articles", len(st.articles))
	}
	if !st.articles[0].IsSpam() {
		t.Errorf("Expected persisted article to carry the spam label")
	}
}

func TestRunner_RunCycle_SkipsUnusableSources(t *testing.T) {
	invalid := validSource("broken", "Broken Source")
	invalid.ValidationStatus = store.ValidationInvalid
	invalid.ValidationError = "bad URL"

	disabled := validSource("off", "Disabled Source")
	disabled.Enabled = false

	st := &memStore{
		sources: []store.SourceDescriptor{invalid, disabled},
	}
	registry := newTestRegistry(map[string]*fakeFetcher{})

	runner := NewRunner(st, registry)

	report, err := runner.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}

	if report.NewCount != 0 {
		t.Errorf("Expected no articles from unusable sources, got %d", report.NewCount)
	}
	if len(report.PerSource) != 0 {
		t.Errorf("Unusable sources should not appear in the report, got %v", report.PerSource)
	}
}

func TestRunner_RunCycle_ValidatesUnknownSources(t *testing.T) {
	unknown := store.SourceDescriptor{
		ID: "fresh", Name: "Fresh Source", Kind: store.SourceKindFeed, Enabled: true,
	}
	st := &memStore{sources: []store.SourceDescriptor{unknown}}
	registry := newTestRegistry(map[string]*fakeFetcher{
		"fresh": {items: []source.RawItem{
			rawItem("First headline", "Body of the first fetch.", "https://fresh.example.com/1"),
		}},
	})

	runner := NewRunner(st, registry)

	report, err := runner.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}

	if report.NewCount != 1 {
		t.Errorf("Expected the freshly validated source to be fetched, got %d new", report.NewCount)
	}
	if st.sources[0].ValidationStatus != store.ValidationValid {
		t.Errorf("Expected the validation verdict persisted, got %s", st.sources[0].ValidationStatus)
	}
}

func TestRunner_RunCycle_UpdatesSourceStats(t *testing.T) {
	st := &memStore{
		sources: []store.SourceDescriptor{validSource("site-a", "Site A")},
	}
	registry := newTestRegistry(map[string]*fakeFetcher{
		"site-a": {items: []source.RawItem{
			rawItem("Headline one", "Body of article one.", "https://a.example.com/1"),
			rawItem("Completely different topic", "An unrelated second story.", "https://a.example.com/2"),
		}},
	})

	runner := NewRunner(st, registry)

	if _, err := runner.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}

	desc := st.sources[0]
	if desc.LastFetchedAt == nil {
		t.Errorf("Expected last fetch timestamp to be set")
	}
	if desc.LastArticleCount != 2 {
		t.Errorf("Expected last article count 2, got %d", desc.LastArticleCount)
	}
	if desc.TotalArticles != 2 {
		t.Errorf("Expected total articles 2, got %d", desc.TotalArticles)
	}
}

func TestRunner_RunCycle_ReadArticlesFailureAborts(t *testing.T) {
	st := &memStore{
		sources:         []store.SourceDescriptor{validSource("site-a", "Site A")},
		readArticlesErr: errors.New("disk gone"),
	}
	registry := newTestRegistry(map[string]*fakeFetcher{})

	runner := NewRunner(st, registry)

	if _, err := runner.RunCycle(context.Background()); err == nil {
		t.Errorf("Expected store read failure to abort the cycle")
	}
}
