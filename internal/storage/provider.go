// Package storage defines the interfaces for the dataset sink.
// This abstraction allows the pipeline to be independent of a specific
// storage implementation (e.g., Google Cloud Storage or the local
// filesystem).
package storage

import (
	"context"
)

// Provider defines the common interface for a blob sink. Saving the same
// object name twice overwrites, which keeps per-date re-runs idempotent.
type Provider interface {
	// Save uploads data to a specified object path/key in the sink.
	Save(ctx context.Context, objectName, contentType string, data []byte) error
}

// NoOpProvider is a sink that performs no operations. It is useful for
// dry runs where documents are fetched and parsed but nothing persists.
type NoOpProvider struct{}

// Save for NoOpProvider does nothing and always returns nil.
func (n *NoOpProvider) Save(_ context.Context, _ string, _ string, _ []byte) error {
	return nil
}
