package source

import (
	"context"
	"errors"
	"time"
)

// ErrUnknownKind is returned by the registry for source kinds no
// fetcher is registered for. Callers skip such sources with a warning.
var ErrUnknownKind = errors.New("unknown source kind")

// RawItem is an unnormalized item as returned by a fetcher, before the
// normalizer converts it into a store.Article.
type RawItem struct {
	Title       string
	Body        string
	URL         string
	Author      string
	Categories  []string
	PublishedAt time.Time

	// Kind-specific natural keys
	Channel   string
	MessageID int64
	FeedURL   string
}

// Fetcher retrieves raw content from one configured source.
//
// ValidateConfig is cheap for malformed configuration (no network) but
// may probe the remote endpoint for reachability. Fetch performs the
// actual retrieval; ordinary remote failures surface as an error for
// the orchestrator to record, never as a panic.
type Fetcher interface {
	ValidateConfig(ctx context.Context) error
	Fetch(ctx context.Context) ([]RawItem, error)
}
