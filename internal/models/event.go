package models

// EventType tags a custody notification.
type EventType string

const (
	EventAssetCreated EventType = "asset_created"
	EventEntryAdded   EventType = "entry_added"
	EventAlert        EventType = "alert"
)

// Event is the message published for every custody-side occurrence.
// Delivery is best-effort and never transactional with the operation that
// produced it. Used across the custody service, messaging, and engine layers.
type Event struct {
	EventID   string       `json:"EventID"`
	Type      EventType    `json:"Type"`
	AssetID   string       `json:"AssetID"`
	EntryID   string       `json:"EntryID,omitempty"`
	State     ProcessState `json:"State,omitempty"`
	Message   string       `json:"Message,omitempty"`
	Timestamp string       `json:"Timestamp"` // Use string for easy JSON serialization
}
