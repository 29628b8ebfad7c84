// Package store defines the persistence collaborators for the matching and
// chain-of-custody core. The core never assumes a particular backing store;
// a Postgres implementation and an in-memory double are provided.
package store

import (
	"context"
	"errors"
	"time"

	"reloop/internal/models"
)

var (
	// ErrNotFound means the referenced asset/lot/processor does not exist.
	// Non-retryable without correcting the reference.
	ErrNotFound = errors.New("not found")

	// ErrStateConflict means a concurrent append advanced the twin past the
	// state the caller validated against. The caller must re-read and retry
	// the validation, not the write.
	ErrStateConflict = errors.New("custody state conflict")
)

// ProcessorRegistry is the geo-indexed processor lookup.
type ProcessorRegistry interface {
	// FindCandidates returns processors of the accepted type within radiusKm
	// of the given location.
	FindCandidates(ctx context.Context, loc models.Geolocation, radiusKm float64, accepted models.OutputType) ([]models.ProcessorCandidate, error)
}

// ProcessorAdmin maintains the processor registry. Registration is an
// operator action, separate from the read-only lookup the matcher uses.
type ProcessorAdmin interface {
	UpsertProcessor(ctx context.Context, p *models.ProcessorCandidate) error
}

// MatchStore persists ranked match results keyed by lot id.
type MatchStore interface {
	// SaveMatches replaces the stored ranking for the lot.
	SaveMatches(ctx context.Context, lotID string, matches []models.ProcessorMatch) error
	// GetMatches returns the stored ranking, best first.
	GetMatches(ctx context.Context, lotID string) ([]models.ProcessorMatch, error)
}

// CustodyStore persists digital twins and their append-only entry chains.
// All operations are read-after-write consistent within a single asset's
// serialized operation stream.
type CustodyStore interface {
	// CreateAsset stores a new twin together with its first entry. Both
	// writes succeed or neither does.
	CreateAsset(ctx context.Context, twin *models.AssetDigitalTwin, first *models.CoCLogEntry) error

	GetTwin(ctx context.Context, assetID string) (*models.AssetDigitalTwin, error)

	// GetEntries returns the asset's entries sorted by timestamp ascending.
	GetEntries(ctx context.Context, assetID string) ([]models.CoCLogEntry, error)

	// AppendEntry appends the entry and advances the twin to the entry's
	// process state, atomically. The write only succeeds while the twin is
	// still in expectedState (ErrStateConflict otherwise). A non-empty
	// newCustodian also reassigns custody.
	AppendEntry(ctx context.Context, entry *models.CoCLogEntry, expectedState models.ProcessState, newCustodian string) error
}

// Anchor status values for the engine's ledger anchoring flow.
const (
	AnchorPending    = "PENDING"
	AnchorProcessing = "PROCESSING"
	AnchorCompleted  = "COMPLETED"
	AnchorFailed     = "FAILED"
)

// AnchorStatus tracks one asset's ledger-anchoring progress.
type AnchorStatus struct {
	AssetID     string
	Status      string
	Attempts    int
	MerkleRoot  string
	TxID        string
	BlockHeight uint64
	LastError   string
	UpdatedAt   time.Time
}

// AnchorCompletion records a successful anchor for batch updates.
type AnchorCompletion struct {
	AssetID     string
	MerkleRoot  string
	TxID        string
	BlockHeight uint64
}

// AnchorFailure records a terminal anchor failure for batch updates.
type AnchorFailure struct {
	AssetID      string
	ErrorMessage string
}

// AnchorStore tracks which assets still need their Merkle roots anchored.
type AnchorStore interface {
	// GetAndMarkAnchorsProcessing transitions the given assets to PROCESSING
	// and returns their statuses. Assets that already exhausted maxRetries
	// are marked FAILED instead and returned with that status.
	GetAndMarkAnchorsProcessing(ctx context.Context, assetIDs []string, maxRetries int) (map[string]*AnchorStatus, error)

	MarkAnchorsCompleted(ctx context.Context, completions []AnchorCompletion) error
	MarkAnchorsFailed(ctx context.Context, failures []AnchorFailure) error

	// MarkAnchorsForRetry returns the assets to PENDING after a transient
	// ledger failure.
	MarkAnchorsForRetry(ctx context.Context, assetIDs []string, errMsg string) error
}

// Store is the full persistence surface used by the gateway and engine.
type Store interface {
	ProcessorRegistry
	ProcessorAdmin
	MatchStore
	CustodyStore
	AnchorStore
	Close()
}
