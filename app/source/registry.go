package source

import (
	"fmt"
	"net/http"

	"github.com/newssift/newssift/app/store"
)

// Deps carries the shared collaborators fetchers are built with. The
// channel client is an already-authenticated capability; session
// handling is not this package's concern.
type Deps struct {
	HTTPClient    *http.Client
	UserAgent     string
	ChannelClient ChannelClient
	ExportsDir    string
}

// Constructor builds a fetcher for one source descriptor.
type Constructor func(desc store.SourceDescriptor, deps Deps) (Fetcher, error)

// Registry maps source kinds to fetcher constructors.
type Registry struct {
	constructors map[store.SourceKind]Constructor
	deps         Deps
}

// NewRegistry creates a registry with the built-in feed and channel
// fetchers registered.
func NewRegistry(deps Deps) *Registry {
	r := &Registry{
		constructors: make(map[store.SourceKind]Constructor),
		deps:         deps,
	}
	r.Register(store.SourceKindFeed, NewFeedFetcher)
	r.Register(store.SourceKindChannel, NewChannelFetcher)
	return r
}

// Register adds or replaces the constructor for a kind.
func (r *Registry) Register(kind store.SourceKind, c Constructor) {
	r.constructors[kind] = c
}

// New builds a fetcher for the descriptor. Returns ErrUnknownKind for
// kinds without a registered constructor.
func (r *Registry) New(desc store.SourceDescriptor) (Fetcher, error) {
	c, ok := r.constructors[desc.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, desc.Kind)
	}
	return c(desc, r.deps)
}

// NetworkProbed reports whether validating the kind involves a network
// round-trip. The validator uses this to pick the cache freshness
// policy.
func NetworkProbed(kind store.SourceKind) bool {
	return kind == store.SourceKindFeed
}
