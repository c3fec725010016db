package etl

import (
	"errors"
	"fmt"
)

// ErrNotPublished signals that no disclosure exists for the requested date,
// e.g. a market holiday. It is an expected absence, not a failure.
var ErrNotPublished = errors.New("disclosure not published")

// ErrEmptyDataset signals zero rows where the caller expected data.
var ErrEmptyDataset = errors.New("empty dataset")

// TransientError wraps a retryable fetch failure such as a network timeout,
// a rate-limit response, or a temporary relay error.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient: %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError wraps a non-retryable fetch failure.
type PermanentError struct {
	Op  string
	Err error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("permanent: %s: %v", e.Op, e.Err)
}

func (e *PermanentError) Unwrap() error { return e.Err }

// MalformedDocumentError signals that the fetched bytes could not be parsed
// as a PDF at all. A parsed-but-empty document is not malformed.
type MalformedDocumentError struct {
	Err error
}

func (e *MalformedDocumentError) Error() string {
	return fmt.Sprintf("malformed document: %v", e.Err)
}

func (e *MalformedDocumentError) Unwrap() error { return e.Err }

// SchemaMismatchError signals that a row's effective cell count could not be
// reconciled with the active header, i.e. an upstream layout assumption
// broke. It must surface rather than be coerced away.
type SchemaMismatchError struct {
	Page int
	Row  int
	Want int
	Got  int
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("schema mismatch on page %d row %d: want %d cells, got %d",
		e.Page, e.Row, e.Want, e.Got)
}

// IsTransient reports whether err is retryable.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// ErrorKind renders a short machine-readable classification for an error,
// used in outcome records and metrics labels.
func ErrorKind(err error) string {
	var (
		te *TransientError
		pe *PermanentError
		me *MalformedDocumentError
		se *SchemaMismatchError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotPublished):
		return "not_published"
	case errors.Is(err, ErrEmptyDataset):
		return "empty_dataset"
	case errors.As(err, &te):
		return "transient"
	case errors.As(err, &pe):
		return "permanent"
	case errors.As(err, &me):
		return "malformed_document"
	case errors.As(err, &se):
		return "schema_mismatch"
	default:
		return "unknown"
	}
}
