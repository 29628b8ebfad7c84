package models

// ProcessState is one node of the chain-of-custody state graph.
type ProcessState string

const (
	StateEntrusted          ProcessState = "entrusted"
	StateTransportPickup    ProcessState = "transport_pickup"
	StateReceivedAtFacility ProcessState = "received_at_facility"
	StateQAVerified         ProcessState = "qa_verified"
	StateSorted             ProcessState = "sorted"
	StateProcessingStart    ProcessState = "processing_start"
	StateDigested           ProcessState = "digested"
	StateProcessed          ProcessState = "processed"
	StateOutputGenerated    ProcessState = "output_generated"
	StateDisposed           ProcessState = "disposed"
)

// CoCLogEntry is one immutable, evidence-hashed fact in an asset's history.
// Entries are never mutated or deleted after creation.
type CoCLogEntry struct {
	EntryID      string       `json:"entry_id"`
	AssetID      string       `json:"asset_id"`
	ActorVOC     string       `json:"actor_voc"`
	Timestamp    string       `json:"timestamp"` // ISO 8601
	Geolocation  *Geolocation `json:"geolocation,omitempty"`
	ProcessState ProcessState `json:"process_state"`
	Notes        string       `json:"notes,omitempty"`
	EvidenceHash string       `json:"evidence_hash"` // SHA-256 over canonicalized evidence
}

// AssetDigitalTwin is the current-state projection of a custody record.
// CurrentState always equals the process state of the most recently
// appended entry; CoCHistory is append-only.
type AssetDigitalTwin struct {
	AssetID                string       `json:"asset_id"`
	EntrustmentAgreementID string       `json:"entrustment_agreement_id"`
	CurrentState           ProcessState `json:"current_state"`
	CurrentCustodianID     string       `json:"current_custodian_id"`
	CoCHistory             []string     `json:"coc_history"` // ordered CoCLogEntry ids
}

// SensorReading is a single signed IoT measurement submitted as evidence.
type SensorReading struct {
	SensorID          string  `json:"sensor_id"`
	SensorType        string  `json:"sensor_type"`
	Value             float64 `json:"value"`
	Unit              string  `json:"unit"`
	Timestamp         string  `json:"timestamp"`
	Signature         string  `json:"signature"`
	CalibrationCertID string  `json:"calibration_cert_id,omitempty"`
}
