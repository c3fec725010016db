package etl

import (
	"context"
	"time"
)

// Fetcher obtains the raw disclosure document for a business date.
// Implementations return ErrNotPublished when no document exists for the
// date, *TransientError for retryable failures, and *PermanentError
// otherwise. The orchestrator is agnostic to the transport behind it.
type Fetcher interface {
	Fetch(ctx context.Context, date BusinessDate) (Document, error)
}

// Extractor turns raw document bytes into per-page raw rows.
type Extractor interface {
	Extract(doc []byte) ([]RawRow, error)
}

// Normalizer cleans the raw row sequence into a schema-stable table.
type Normalizer interface {
	Normalize(rows []RawRow) (*Table, error)
}

// SinkWriter persists an object at a key. Repeat writes to the same key
// overwrite, making per-date re-runs idempotent.
type SinkWriter interface {
	Save(ctx context.Context, objectName, contentType string, data []byte) error
}

// Notifier publishes run outcomes for downstream consumers.
type Notifier interface {
	Publish(ctx context.Context, outcome RunOutcome) error
	Close() error
}

// HistoryStore records one row per completed run for audit.
type HistoryStore interface {
	RecordRun(ctx context.Context, outcome RunOutcome) error
	Close() error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
