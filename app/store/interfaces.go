package store

// Store is the persistence contract used by the ingestion pipeline.
//
// AppendArticles and WriteSources are atomic with respect to concurrent
// readers: a reader never observes a partially written batch. Lock and
// Unlock bracket one read-modify-write cycle; the pipeline acquires the
// lock before reading the duplicate comparison set and releases it after
// committing, so overlapping cycles serialize instead of losing updates.
type Store interface {
	ReadArticles() ([]Article, error)
	AppendArticles(articles []Article) error

	ReadSources() ([]SourceDescriptor, error)
	WriteSources(sources []SourceDescriptor) error

	Lock()
	Unlock()

	Close() error
}
