package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"

	"github.com/adiwardana/idx-shareholder-etl/internal/etl"
	"github.com/adiwardana/idx-shareholder-etl/internal/logging"
)

// PubSubProvider implements Provider for Google Cloud Pub/Sub.
type PubSubProvider struct {
	Client *pubsub.Client
	Topic  *pubsub.Topic
}

// NewPubSubProvider creates a Pub/Sub client and gets a handle to the
// specified topic. It authenticates using Application Default Credentials.
func NewPubSubProvider(ctx context.Context, projectID, topicID string) (*PubSubProvider, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}

	topic := client.Topic(topicID)
	exists, err := topic.Exists(ctx)
	if err != nil {
		if closeErr := client.Close(); closeErr != nil {
			logging.L.Warn("Failed to close pubsub client after topic existence check failure", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("failed to check for topic existence: %w", err)
	}
	if !exists {
		if closeErr := client.Close(); closeErr != nil {
			logging.L.Warn("Failed to close pubsub client after topic existence check failure", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("pubsub topic %q does not exist in project %q", topicID, projectID)
	}

	return &PubSubProvider{
		Client: client,
		Topic:  topic,
	}, nil
}

// outcomeEvent is the published payload.
type outcomeEvent struct {
	RunID     string `json:"run_id"`
	Date      string `json:"date"`
	Outcome   string `json:"outcome"`
	Rows      int    `json:"rows"`
	Partition string `json:"partition,omitempty"`
	Stage     string `json:"stage,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Publish sends a JSON outcome event to the topic. The send is
// asynchronous; the Pub/Sub client handles batching and retries in the
// background.
func (p *PubSubProvider) Publish(ctx context.Context, outcome etl.RunOutcome) error {
	payload, err := json.Marshal(outcomeEvent{
		RunID:     outcome.RunID,
		Date:      outcome.Date.String(),
		Outcome:   string(outcome.Kind),
		Rows:      outcome.Rows,
		Partition: outcome.Partition,
		Stage:     string(outcome.Stage),
		ErrorKind: outcome.ErrKind,
		Error:     outcome.Err,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal outcome event: %w", err)
	}

	result := p.Topic.Publish(ctx, &pubsub.Message{Data: payload})
	_ = result // Fire-and-forget; delivery is handled by the client.

	return nil
}

// Close stops the topic's publisher and closes the underlying client.
func (p *PubSubProvider) Close() error {
	p.Topic.Stop()
	if err := p.Client.Close(); err != nil {
		return fmt.Errorf("failed to close pubsub client: %w", err)
	}
	return nil
}
