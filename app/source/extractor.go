package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	readability "github.com/go-shiori/go-readability"
)

// ContentExtractor fetches an article page and extracts its readable
// text, for feed items that carry no body of their own.
type ContentExtractor struct {
	client    *http.Client
	userAgent string
}

func NewContentExtractor(client *http.Client, userAgent string) *ContentExtractor {
	if client == nil {
		client = http.DefaultClient
	}
	return &ContentExtractor{client: client, userAgent: userAgent}
}

func (e *ContentExtractor) Run(ctx context.Context, pageURL string) (string, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("invalid page URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", e.userAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	article, err := readability.FromReader(resp.Body, parsed)
	if err != nil {
		return "", fmt.Errorf("failed to extract content: %w", err)
	}

	if article.TextContent == "" {
		return "", fmt.Errorf("no content extracted from %s", pageURL)
	}

	return article.TextContent, nil
}
