package producer

import (
	"context"
	"log"

	"reloop/internal/models"
)

// EventSink adapts a Producer to the custody core's fire-and-forget sink.
// Publish failures are logged and dropped; event delivery is best-effort
// and never blocks or fails the custody operation that produced it.
type EventSink struct {
	producer Producer
	logger   *log.Logger
}

func NewEventSink(p Producer, logger *log.Logger) *EventSink {
	return &EventSink{producer: p, logger: logger}
}

func (s *EventSink) Emit(ctx context.Context, event *models.Event) {
	if err := s.producer.Publish(ctx, event); err != nil {
		s.logger.Printf("Failed to publish custody event %s (%s): %v", event.EventID, event.Type, err)
	}
}
