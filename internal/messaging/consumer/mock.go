package consumer

import (
	"context"
	"errors"
	"log"
	"time"

	"reloop/internal/models"
)

// MockConsumer uses fixed predefined events for testing.
type MockConsumer struct {
	logger *log.Logger
	events chan *models.Event
}

// PredefinedEvents stores the events to be simulated.
var PredefinedEvents []*models.Event

// init generates fixed test data when the package is loaded.
func init() {
	now := time.Now().UTC()
	PredefinedEvents = []*models.Event{
		{
			EventID:   "a1b1c1d1-e1f1-1111-2222-1234567890ab",
			Type:      models.EventAssetCreated,
			AssetID:   "mock-asset-1",
			EntryID:   "mock-entry-1",
			State:     models.StateEntrusted,
			Timestamp: now.Add(-60 * time.Second).Format(time.RFC3339),
		},
		{
			EventID:   "a2b2c2d2-e2f2-3333-4444-abcdef123456",
			Type:      models.EventEntryAdded,
			AssetID:   "mock-asset-2",
			EntryID:   "mock-entry-2",
			State:     models.StateTransportPickup,
			Timestamp: now.Add(-30 * time.Second).Format(time.RFC3339),
		},
		// Event 3 touches asset 1 again (same asset anchored twice in a row)
		{
			EventID:   "a3b3c3d3-e3f3-5555-6666-fedcba654321",
			Type:      models.EventEntryAdded,
			AssetID:   "mock-asset-1",
			EntryID:   "mock-entry-3",
			State:     models.StateTransportPickup,
			Timestamp: now.Format(time.RFC3339),
		},
	}
}

// NewMockConsumer creates a MockConsumer and loads predefined events.
func NewMockConsumer(logger *log.Logger) *MockConsumer {
	mc := &MockConsumer{
		logger: logger,
		events: make(chan *models.Event, len(PredefinedEvents)+5),
	}
	logger.Println("[MockConsumer] Initializing with predefined events...")
	for _, event := range PredefinedEvents {
		mc.events <- event
		logger.Printf("[MockConsumer] Added predefined event: event_id=%s", event.EventID)
	}
	logger.Println("[MockConsumer] Predefined events loaded")
	return mc
}

// Consume reads predefined events from the channel.
func (m *MockConsumer) Consume(ctx context.Context) (event *models.Event, ack func(success bool), err error) {
	m.logger.Println("[MockConsumer] Waiting for event...")
	select {
	case <-ctx.Done():
		m.logger.Println("[MockConsumer] Context cancelled, stopping consumption")
		return nil, nil, ctx.Err()
	case event := <-m.events:
		if event == nil {
			m.logger.Println("[MockConsumer] Event channel closed")
			return nil, nil, errors.New("event channel closed")
		}
		m.logger.Printf("[MockConsumer] Consumed event: event_id=%s", event.EventID)

		ackCallback := func(success bool) {
			if success {
				m.logger.Printf("[MockConsumer] ACK received for event: event_id=%s", event.EventID)
			} else {
				m.logger.Printf("[MockConsumer] NACK received for event: event_id=%s. Re-queueing (mock)", event.EventID)
				select {
				case m.events <- event:
					m.logger.Printf("[MockConsumer] Event re-queued: event_id=%s", event.EventID)
				default:
					m.logger.Printf("[MockConsumer] Warning: Failed to re-queue event (channel full?): event_id=%s", event.EventID)
				}
			}
		}
		return event, ackCallback, nil
	}
}

// Close closes the event channel.
func (m *MockConsumer) Close() error {
	m.logger.Println("[MockConsumer] Closing...")
	close(m.events)
	return nil
}

var _ Consumer = (*MockConsumer)(nil)
