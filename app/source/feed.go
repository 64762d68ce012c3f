package source

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/newssift/newssift/app/store"
)

const validateProbeTimeout = 10 * time.Second

var _ Fetcher = (*FeedFetcher)(nil)

// FeedFetcher retrieves items from an RSS/Atom feed.
type FeedFetcher struct {
	desc      store.SourceDescriptor
	client    *http.Client
	userAgent string
	parser    *gofeed.Parser
	extractor *ContentExtractor
}

// NewFeedFetcher builds a feed fetcher for the descriptor.
func NewFeedFetcher(desc store.SourceDescriptor, deps Deps) (Fetcher, error) {
	client := deps.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	f := &FeedFetcher{
		desc:      desc,
		client:    client,
		userAgent: deps.UserAgent,
		parser:    gofeed.NewParser(),
	}
	if desc.ExtractContent {
		f.extractor = NewContentExtractor(client, deps.UserAgent)
	}
	return f, nil
}

// ValidateConfig rejects malformed URLs without touching the network,
// then probes the endpoint with a HEAD request.
func (f *FeedFetcher) ValidateConfig(ctx context.Context) error {
	if f.desc.URL == "" {
		return fmt.Errorf("feed URL is required")
	}

	parsed, err := url.Parse(f.desc.URL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("invalid feed URL: %q", f.desc.URL)
	}

	probeCtx, cancel := context.WithTimeout(ctx, validateProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodHead, f.desc.URL, nil)
	if err != nil {
		return fmt.Errorf("failed to create probe request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("feed URL not reachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("feed URL not reachable: HTTP %d", resp.StatusCode)
	}

	return nil
}

// Fetch downloads and parses the feed, returning at most MaxItems raw
// items.
func (f *FeedFetcher) Fetch(ctx context.Context) ([]RawItem, error) {
	data, err := f.download(ctx)
	if err != nil {
		return nil, err
	}

	feed, err := f.parser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	limit := f.desc.MaxItems
	if limit <= 0 || limit > len(feed.Items) {
		limit = len(feed.Items)
	}

	items := make([]RawItem, 0, limit)
	for _, entry := range feed.Items[:limit] {
		if entry == nil {
			continue
		}
		items = append(items, f.rawItem(ctx, entry))
	}

	return items, nil
}

func (f *FeedFetcher) rawItem(ctx context.Context, entry *gofeed.Item) RawItem {
	raw := RawItem{
		Title:      entry.Title,
		Body:       cmp.Or(entry.Content, entry.Description),
		URL:        entry.Link,
		Categories: entry.Categories,
		FeedURL:    f.desc.URL,
	}

	if entry.Author != nil {
		raw.Author = entry.Author.Name
	}
	if entry.PublishedParsed != nil {
		raw.PublishedAt = *entry.PublishedParsed
	} else if entry.UpdatedParsed != nil {
		raw.PublishedAt = *entry.UpdatedParsed
	}

	// Best effort: feeds that carry no body get the readable page text.
	if raw.Body == "" && f.extractor != nil && raw.URL != "" {
		text, err := f.extractor.Run(ctx, raw.URL)
		if err != nil {
			slog.Debug("Content extraction failed", "source", f.desc.Name, "url", raw.URL, "error", err)
		} else {
			raw.Body = text
		}
	}

	return raw
}

func (f *FeedFetcher) download(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.desc.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}
