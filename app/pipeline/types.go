package pipeline

import (
	"time"
)

// ScrapeOutcome is the per-source result of one ingestion cycle.
type ScrapeOutcome struct {
	ArticlesFound int           `json:"articles_found"`
	Errors        int           `json:"errors"`
	Duration      time.Duration `json:"duration"`
	LastError     string        `json:"last_error,omitempty"`
}

// BatchReport summarizes one ingestion cycle for the caller.
type BatchReport struct {
	NewCount       int                      `json:"new_count"`
	DuplicateCount int                      `json:"duplicate_count"`
	SpamCount      int                      `json:"spam_count"`
	PerSource      map[string]ScrapeOutcome `json:"per_source"`
	StartedAt      time.Time                `json:"started_at"`
	Duration       time.Duration            `json:"duration"`
}
