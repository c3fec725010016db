package etl

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestShouldRetry_TransientUnderLimit(t *testing.T) {
	t.Parallel()

	p := NewExponentialRetryPolicy()
	err := &TransientError{Op: "list announcements", Err: errors.New("status 503")}

	require.True(t, p.ShouldRetry(err, 0))
	require.True(t, p.ShouldRetry(err, 2))
	require.False(t, p.ShouldRetry(err, 3))
}

func TestShouldRetry_NonTransientNeverRetries(t *testing.T) {
	t.Parallel()

	p := NewExponentialRetryPolicy()

	require.False(t, p.ShouldRetry(nil, 0))
	require.False(t, p.ShouldRetry(&PermanentError{Op: "download", Err: errors.New("status 404")}, 0))
	require.False(t, p.ShouldRetry(ErrNotPublished, 0))
}

func TestShouldRetry_ContextCancellationStops(t *testing.T) {
	t.Parallel()

	p := NewExponentialRetryPolicy()
	wrapped := &TransientError{Op: "download", Err: context.Canceled}

	require.False(t, p.ShouldRetry(wrapped, 0))
	require.False(t, p.ShouldRetry(fmt.Errorf("fetch: %w", context.DeadlineExceeded), 0))
}

func TestBackoff_GrowsAndStaysBounded(t *testing.T) {
	t.Parallel()

	p := NewRetryPolicy(5, 100*time.Millisecond, 1*time.Second)

	prevCeiling := time.Duration(0)
	for attempt := 0; attempt < 5; attempt++ {
		d := p.Backoff(attempt)
		require.GreaterOrEqual(t, d, time.Duration(0))
		require.LessOrEqual(t, d, 1*time.Second)
		ceiling := d
		if ceiling > prevCeiling {
			prevCeiling = ceiling
		}
	}
	require.Positive(t, prevCeiling)
}

func TestIsTransient(t *testing.T) {
	t.Parallel()

	require.True(t, IsTransient(&TransientError{Op: "x", Err: errors.New("y")}))
	require.True(t, IsTransient(fmt.Errorf("wrap: %w", &TransientError{Op: "x", Err: errors.New("y")})))
	require.False(t, IsTransient(&PermanentError{Op: "x", Err: errors.New("y")}))
	require.False(t, IsTransient(nil))
}

func TestErrorKind(t *testing.T) {
	t.Parallel()

	require.Equal(t, "", ErrorKind(nil))
	require.Equal(t, "not_published", ErrorKind(fmt.Errorf("day off: %w", ErrNotPublished)))
	require.Equal(t, "empty_dataset", ErrorKind(ErrEmptyDataset))
	require.Equal(t, "transient", ErrorKind(&TransientError{Op: "x", Err: errors.New("y")}))
	require.Equal(t, "permanent", ErrorKind(&PermanentError{Op: "x", Err: errors.New("y")}))
	require.Equal(t, "malformed_document", ErrorKind(&MalformedDocumentError{Err: errors.New("not a pdf")}))
	require.Equal(t, "schema_mismatch", ErrorKind(&SchemaMismatchError{Page: 2, Row: 5, Want: 8, Got: 11}))
	require.Equal(t, "unknown", ErrorKind(errors.New("boom")))
}
