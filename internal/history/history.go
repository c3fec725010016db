// Package history persists one record per pipeline run for audit and
// monitoring. By using an interface, we decouple the pipeline from a
// specific database implementation, allowing for easier testing.
package history

import (
	"context"

	"github.com/adiwardana/idx-shareholder-etl/internal/etl"
)

// Provider defines the common interface for the run-history layer.
type Provider interface {
	// RecordRun appends the outcome of a completed run.
	RecordRun(ctx context.Context, outcome etl.RunOutcome) error

	// Close terminates the connection and releases any resources.
	Close() error
}

// NoOpProvider is a history provider that performs no operations. It is
// the default when no database is configured.
type NoOpProvider struct{}

// RecordRun for NoOpProvider does nothing and returns no error.
func (n *NoOpProvider) RecordRun(_ context.Context, _ etl.RunOutcome) error { return nil }

// Close for NoOpProvider does nothing and returns no error.
func (n *NoOpProvider) Close() error { return nil }
