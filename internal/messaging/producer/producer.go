package producer

import (
	"context"

	"reloop/internal/models"
)

// Producer defines the interface for the custody event publisher
type Producer interface {
	// Publish sends a single custody event to the configured topic
	Publish(ctx context.Context, event *models.Event) error

	// PublishBatch sends custody events in batch to the configured topic
	PublishBatch(ctx context.Context, events []*models.Event) error

	// Close closes the producer connection
	Close() error
}
