// Package notify publishes run-outcome events for downstream consumers.
// This abstraction allows the application to be independent of a specific
// messaging implementation (e.g., GCP Pub/Sub).
package notify

import (
	"context"

	"github.com/adiwardana/idx-shareholder-etl/internal/etl"
)

// Provider defines the common interface for an outcome notifier.
type Provider interface {
	// Publish sends one event describing a completed run.
	Publish(ctx context.Context, outcome etl.RunOutcome) error

	// Close cleans up any client connections and resources.
	Close() error
}

// NoOpProvider is a notifier that performs no operations. It is the
// default when no message topic is configured.
type NoOpProvider struct{}

// Publish for NoOpProvider does nothing and returns nil.
func (n *NoOpProvider) Publish(_ context.Context, _ etl.RunOutcome) error { return nil }

// Close for NoOpProvider does nothing and returns nil.
func (n *NoOpProvider) Close() error { return nil }
