package ledger

import (
	"context"

	"reloop/ledger/types"
)

// LedgerClient defines the generic interface for immutable-ledger
// interactions. This interface is ledger-agnostic and can be implemented
// by different chain clients
type LedgerClient interface {
	// AnchorRoot anchors a single asset's Merkle root on the ledger
	AnchorRoot(ctx context.Context, assetID, merkleRoot, timestamp string, entryCount int) (*types.Proof, error)

	// AnchorBatch anchors a batch of asset roots in a single transaction
	AnchorBatch(ctx context.Context, entries []types.AnchorEntry) (*types.BatchProof, []types.AnchorStatusInfo, error)

	// FindAnchorByAsset queries the ledger for an asset's latest anchored root
	FindAnchorByAsset(ctx context.Context, assetID string) (string, error)

	// GetAnchorByTxID performs the "on-chain public audit" by querying transaction details
	GetAnchorByTxID(ctx context.Context, txID string) (*types.AuditRecord, error)

	// Close closes the ledger client and releases resources
	Close() error

	// Config returns the configuration associated with the client
	Config() any // Return any to accommodate different config types
}
