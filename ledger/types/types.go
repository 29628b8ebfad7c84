package types

// AnchorEntry corresponds to the struct sent in the anchor batch JSON
// This is a generic type that can be implemented by any ledger
type AnchorEntry struct {
	AssetID    string `json:"asset_id"`
	MerkleRoot string `json:"merkle_root"`
	EntryCount int    `json:"entry_count"`
	Timestamp  string `json:"timestamp"`
}

// AnchorProcessingStatus is the per-entry outcome reported by the contract
type AnchorProcessingStatus string

const (
	StatusSuccess          AnchorProcessingStatus = "Success"
	StatusSkippedDuplicate AnchorProcessingStatus = "SkippedDuplicate"
	StatusErrorValidation  AnchorProcessingStatus = "ErrorValidation"
	StatusErrorStateCheck  AnchorProcessingStatus = "ErrorStateCheck"
	StatusErrorPutState    AnchorProcessingStatus = "ErrorPutState"
)

// AnchorStatusInfo corresponds to the struct returned in the batch result JSON array
type AnchorStatusInfo struct {
	AssetID string                 `json:"asset_id"`
	Status  AnchorProcessingStatus `json:"status"`
	Message string                 `json:"message"`
}

// BatchProof holds the results common to the entire batch transaction
type BatchProof struct {
	TransactionID string // The TxID for the single batch transaction
	BlockHeight   uint64 // The block height where the batch was included
}

// Proof is the on-chain credential returned after a successful single anchor
type Proof struct {
	TransactionID string
	BlockHeight   uint64
	MerkleRoot    string
}

// AuditRecord is the raw anchoring data parsed from on-chain events
type AuditRecord struct {
	AssetID    string
	MerkleRoot string
	Timestamp  string
}
