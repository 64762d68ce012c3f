package store

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

var _ Store = (*SQLiteStore)(nil)

// SQLiteStore persists articles and source descriptors in a single
// SQLite database file.
type SQLiteStore struct {
	db          *sql.DB
	mu          sync.Mutex
	maxArticles int
}

// Open opens (creating if necessary) the database at path and applies
// pending migrations. maxArticles caps the retained article count;
// zero disables the cap.
func Open(path string, maxArticles int) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite serializes writers; a single connection avoids SQLITE_BUSY
	// churn under the worker pool.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db, maxArticles: maxArticles}, nil
}

// Lock acquires the store-level exclusive lock bracketing one
// read-modify-write cycle.
func (s *SQLiteStore) Lock() { s.mu.Lock() }

// Unlock releases the cycle lock.
func (s *SQLiteStore) Unlock() { s.mu.Unlock() }

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// ReadArticles returns all retained articles, newest first.
func (s *SQLiteStore) ReadArticles() ([]Article, error) {
	rows, err := s.db.Query(`
		SELECT id, title, body, url, source_name, source_kind,
		       published_at, fetched_at, content_fingerprint,
		       relevance_label, spam_reason
		FROM articles
		ORDER BY published_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to read articles: %w", err)
	}
	defer rows.Close()

	var articles []Article
	for rows.Next() {
		var a Article
		err := rows.Scan(
			&a.ID, &a.Title, &a.Body, &a.URL, &a.SourceName, &a.SourceKind,
			&a.PublishedAt, &a.FetchedAt, &a.ContentFingerprint,
			&a.RelevanceLabel, &a.SpamReason,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan article row: %w", err)
		}
		articles = append(articles, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating article rows: %w", err)
	}

	return articles, nil
}

// AppendArticles inserts the batch inside a single transaction, so
// concurrent readers see either none or all of it. Articles beyond the
// retention cap are pruned oldest-first in the same transaction.
func (s *SQLiteStore) AppendArticles(articles []Article) error {
	if len(articles) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, a := range articles {
		_, err := tx.Exec(`
			INSERT INTO articles (
				id, title, body, url, source_name, source_kind,
				published_at, fetched_at, content_fingerprint,
				relevance_label, spam_reason
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, a.ID, a.Title, a.Body, a.URL, a.SourceName, string(a.SourceKind),
			a.PublishedAt.UTC(), a.FetchedAt.UTC(), a.ContentFingerprint,
			a.RelevanceLabel, a.SpamReason)
		if err != nil {
			return fmt.Errorf("failed to insert article %s: %w", a.ID, err)
		}
	}

	if s.maxArticles > 0 {
		_, err = tx.Exec(`
			DELETE FROM articles WHERE id NOT IN (
				SELECT id FROM articles ORDER BY published_at DESC LIMIT ?
			)
		`, s.maxArticles)
		if err != nil {
			return fmt.Errorf("failed to prune old articles: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit article batch: %w", err)
	}

	return nil
}

// ReadSources returns all configured source descriptors.
func (s *SQLiteStore) ReadSources() ([]SourceDescriptor, error) {
	rows, err := s.db.Query(`
		SELECT id, name, kind, enabled, url, channel_id, max_items,
		       poll_interval, extract_content, validation_status,
		       validated_at, validation_error, last_fetched_at,
		       last_article_count, total_articles
		FROM sources
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to read sources: %w", err)
	}
	defer rows.Close()

	var sources []SourceDescriptor
	for rows.Next() {
		var d SourceDescriptor
		var validatedAt, lastFetchedAt sql.NullTime
		err := rows.Scan(
			&d.ID, &d.Name, &d.Kind, &d.Enabled, &d.URL, &d.ChannelID,
			&d.MaxItems, &d.PollInterval, &d.ExtractContent,
			&d.ValidationStatus, &validatedAt, &d.ValidationError,
			&lastFetchedAt, &d.LastArticleCount, &d.TotalArticles,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source row: %w", err)
		}
		d.ValidatedAt = nullableTime(validatedAt)
		d.LastFetchedAt = nullableTime(lastFetchedAt)
		sources = append(sources, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating source rows: %w", err)
	}

	return sources, nil
}

// WriteSources replaces the stored descriptor set atomically. It is
// used to persist validator cache updates and per-source statistics so
// restarts do not re-probe every source.
func (s *SQLiteStore) WriteSources(sources []SourceDescriptor) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM sources`); err != nil {
		return fmt.Errorf("failed to clear sources: %w", err)
	}

	for _, d := range sources {
		_, err := tx.Exec(`
			INSERT INTO sources (
				id, name, kind, enabled, url, channel_id, max_items,
				poll_interval, extract_content, validation_status,
				validated_at, validation_error, last_fetched_at,
				last_article_count, total_articles
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, d.ID, d.Name, string(d.Kind), d.Enabled, d.URL, d.ChannelID,
			d.MaxItems, d.PollInterval, d.ExtractContent,
			string(d.ValidationStatus), timeValue(d.ValidatedAt),
			d.ValidationError, timeValue(d.LastFetchedAt),
			d.LastArticleCount, d.TotalArticles)
		if err != nil {
			return fmt.Errorf("failed to insert source %s: %w", d.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit sources: %w", err)
	}

	return nil
}

func nullableTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	utc := t.Time.UTC()
	return &utc
}

func timeValue(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}
