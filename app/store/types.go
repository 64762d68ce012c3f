package store

import (
	"time"
)

// SourceKind identifies the fetcher variant used for a source.
type SourceKind string

const (
	SourceKindFeed    SourceKind = "feed"
	SourceKindChannel SourceKind = "channel"
)

// ValidationStatus is the cached verdict of the source validator.
type ValidationStatus string

const (
	ValidationUnknown ValidationStatus = "unknown"
	ValidationValid   ValidationStatus = "valid"
	ValidationInvalid ValidationStatus = "invalid"
)

// RelevanceSpam is the label the spam classifier assigns to flagged articles.
// Any other non-empty value is a user-assigned rating.
const RelevanceSpam = "spam"

// SourceDescriptor is the persisted configuration of one external source.
// Configuration fields are owned by external edits (seed files, API);
// the validation cache fields are owned by the validator and the
// statistics fields by the pipeline commit.
type SourceDescriptor struct {
	ID      string     `yaml:"id"`
	Name    string     `yaml:"name"`
	Kind    SourceKind `yaml:"kind"`
	Enabled bool       `yaml:"enabled"`

	// Kind-specific parameters
	URL            string `yaml:"url"`
	ChannelID      string `yaml:"channel_id"`
	MaxItems       int    `yaml:"max_items"`
	PollInterval   int    `yaml:"poll_interval"` // seconds
	ExtractContent bool   `yaml:"extract_content"`

	// Validation cache
	ValidationStatus ValidationStatus `yaml:"-"`
	ValidatedAt      *time.Time       `yaml:"-"`
	ValidationError  string           `yaml:"-"`

	// Per-source statistics, updated on commit
	LastFetchedAt    *time.Time `yaml:"-"`
	LastArticleCount int        `yaml:"-"`
	TotalArticles    int        `yaml:"-"`
}

// Article is the canonical normalized article shape.
type Article struct {
	ID                 string     `json:"id"`
	Title              string     `json:"title"`
	Body               string     `json:"body"`
	URL                string     `json:"url"`
	SourceName         string     `json:"source_name"`
	SourceKind         SourceKind `json:"source_kind"`
	PublishedAt        time.Time  `json:"published_at"`
	FetchedAt          time.Time  `json:"fetched_at"`
	ContentFingerprint string     `json:"content_fingerprint"`
	RelevanceLabel     string     `json:"relevance_label,omitempty"`
	SpamReason         string     `json:"spam_reason,omitempty"`
}

// IsSpam reports whether the article was flagged by the classifier.
func (a Article) IsSpam() bool {
	return a.RelevanceLabel == RelevanceSpam
}
