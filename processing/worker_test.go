package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reloop/config"
	"reloop/custody"
	"reloop/internal/models"
	"reloop/ledger/types"
	"reloop/storage/store"
)

type fakeLedger struct {
	mu        sync.Mutex
	batches   [][]types.AnchorEntry
	err       error
	statusFor map[string]types.AnchorProcessingStatus
	omit      map[string]bool
}

func (f *fakeLedger) AnchorBatch(ctx context.Context, entries []types.AnchorEntry) (*types.BatchProof, []types.AnchorStatusInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, entries)
	if f.err != nil {
		return nil, nil, f.err
	}
	results := make([]types.AnchorStatusInfo, 0, len(entries))
	for _, e := range entries {
		if f.omit[e.AssetID] {
			continue
		}
		status := types.StatusSuccess
		if s, ok := f.statusFor[e.AssetID]; ok {
			status = s
		}
		results = append(results, types.AnchorStatusInfo{AssetID: e.AssetID, Status: status, Message: string(status)})
	}
	return &types.BatchProof{TransactionID: "tx-100", BlockHeight: 7}, results, nil
}

func (f *fakeLedger) AnchorRoot(ctx context.Context, assetID, merkleRoot, timestamp string, entryCount int) (*types.Proof, error) {
	return &types.Proof{TransactionID: "tx-1", BlockHeight: 1, MerkleRoot: merkleRoot}, nil
}

func (f *fakeLedger) FindAnchorByAsset(ctx context.Context, assetID string) (string, error) {
	return "", nil
}

func (f *fakeLedger) GetAnchorByTxID(ctx context.Context, txID string) (*types.AuditRecord, error) {
	return nil, errors.New("not supported")
}

func (f *fakeLedger) Close() error { return nil }

func (f *fakeLedger) Config() any { return nil }

func (f *fakeLedger) lastBatch() []types.AnchorEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.batches) == 0 {
		return nil
	}
	return f.batches[len(f.batches)-1]
}

func newTestWorker(st store.Store, lc *fakeLedger) *Worker {
	cfg := config.WorkerConfig{Concurrency: 1}
	cfg.SetDefaults()
	logger := log.New(os.Stderr, "[ENGINE-TEST] ", log.LstdFlags)
	return New(cfg, 3, logger, st, nil, lc)
}

func seedAsset(t *testing.T, st *store.MemoryStore, assetID string, extraEntries int) []string {
	t.Helper()
	ctx := context.Background()
	twin := &models.AssetDigitalTwin{
		AssetID:                assetID,
		EntrustmentAgreementID: "agr-" + assetID,
		CurrentState:           models.StateEntrusted,
		CurrentCustodianID:     "voc-custodian",
		CoCHistory:             []string{assetID + "-e0"},
	}
	first := &models.CoCLogEntry{
		EntryID:      assetID + "-e0",
		AssetID:      assetID,
		Timestamp:    "2026-03-01T08:00:00Z",
		ProcessState: models.StateEntrusted,
		EvidenceHash: assetID + "-hash-0",
	}
	require.NoError(t, st.CreateAsset(ctx, twin, first))

	hashes := []string{first.EvidenceHash}
	state := models.StateEntrusted
	nextStates := []models.ProcessState{models.StateTransportPickup, models.StateReceivedAtFacility}
	for i := 0; i < extraEntries && i < len(nextStates); i++ {
		entry := &models.CoCLogEntry{
			EntryID:      fmt.Sprintf("%s-e%d", assetID, i+1),
			AssetID:      assetID,
			Timestamp:    fmt.Sprintf("2026-03-01T09:00:0%dZ", i),
			ProcessState: nextStates[i],
			EvidenceHash: fmt.Sprintf("%s-hash-%d", assetID, i+1),
		}
		require.NoError(t, st.AppendEntry(ctx, entry, state, "voc-hauler"))
		state = nextStates[i]
		hashes = append(hashes, entry.EvidenceHash)
	}
	return hashes
}

func events(assetIDs ...string) []*models.Event {
	out := make([]*models.Event, len(assetIDs))
	for i, id := range assetIDs {
		out[i] = &models.Event{EventID: "evt-" + id, Type: models.EventEntryAdded, AssetID: id}
	}
	return out
}

func TestHandleBatchAnchorsDeduplicatedAssets(t *testing.T) {
	st := store.NewMemoryStore()
	lc := &fakeLedger{}
	w := newTestWorker(st, lc)

	hashesA := seedAsset(t, st, "asset-a", 2)
	hashesB := seedAsset(t, st, "asset-b", 0)

	// Two events for asset-a collapse into one anchor entry.
	err := w.handleBatch(context.Background(), events("asset-a", "asset-b", "asset-a"))
	require.NoError(t, err)

	batch := lc.lastBatch()
	require.Len(t, batch, 2)
	roots := make(map[string]types.AnchorEntry, len(batch))
	for _, e := range batch {
		roots[e.AssetID] = e
	}
	assert.Equal(t, custody.MerkleRoot(hashesA), roots["asset-a"].MerkleRoot)
	assert.Equal(t, 3, roots["asset-a"].EntryCount)
	assert.Equal(t, custody.MerkleRoot(hashesB), roots["asset-b"].MerkleRoot)
	assert.Equal(t, 1, roots["asset-b"].EntryCount)

	for _, id := range []string{"asset-a", "asset-b"} {
		status, ok := st.AnchorState(id)
		require.True(t, ok)
		assert.Equal(t, store.AnchorCompleted, status.Status)
		assert.Equal(t, "tx-100", status.TxID)
		assert.Equal(t, uint64(7), status.BlockHeight)
	}
}

func TestHandleBatchLedgerFailureSchedulesRetry(t *testing.T) {
	st := store.NewMemoryStore()
	lc := &fakeLedger{err: errors.New("node unreachable")}
	w := newTestWorker(st, lc)
	seedAsset(t, st, "asset-a", 0)

	err := w.handleBatch(context.Background(), events("asset-a"))
	require.Error(t, err)

	status, ok := st.AnchorState("asset-a")
	require.True(t, ok)
	assert.Equal(t, store.AnchorPending, status.Status)
	assert.Contains(t, status.LastError, "node unreachable")
}

func TestHandleBatchContractRejection(t *testing.T) {
	st := store.NewMemoryStore()
	lc := &fakeLedger{statusFor: map[string]types.AnchorProcessingStatus{
		"asset-bad": types.StatusErrorValidation,
	}}
	w := newTestWorker(st, lc)
	seedAsset(t, st, "asset-ok", 0)
	seedAsset(t, st, "asset-bad", 0)

	err := w.handleBatch(context.Background(), events("asset-ok", "asset-bad"))
	require.NoError(t, err)

	status, _ := st.AnchorState("asset-ok")
	assert.Equal(t, store.AnchorCompleted, status.Status)
	status, _ = st.AnchorState("asset-bad")
	assert.Equal(t, store.AnchorFailed, status.Status)
	assert.Contains(t, status.LastError, string(types.StatusErrorValidation))
}

func TestHandleBatchSkippedDuplicateCompletes(t *testing.T) {
	st := store.NewMemoryStore()
	lc := &fakeLedger{statusFor: map[string]types.AnchorProcessingStatus{
		"asset-a": types.StatusSkippedDuplicate,
	}}
	w := newTestWorker(st, lc)
	seedAsset(t, st, "asset-a", 0)

	err := w.handleBatch(context.Background(), events("asset-a"))
	require.NoError(t, err)

	status, _ := st.AnchorState("asset-a")
	assert.Equal(t, store.AnchorCompleted, status.Status)
}

func TestHandleBatchMissingResultFails(t *testing.T) {
	st := store.NewMemoryStore()
	lc := &fakeLedger{omit: map[string]bool{"asset-a": true}}
	w := newTestWorker(st, lc)
	seedAsset(t, st, "asset-a", 0)

	err := w.handleBatch(context.Background(), events("asset-a"))
	require.NoError(t, err)

	status, _ := st.AnchorState("asset-a")
	assert.Equal(t, store.AnchorFailed, status.Status)
	assert.Contains(t, status.LastError, "Missing result")
}

func TestHandleBatchIgnoresEmptyAndUnknown(t *testing.T) {
	st := store.NewMemoryStore()
	lc := &fakeLedger{}
	w := newTestWorker(st, lc)

	require.NoError(t, w.handleBatch(context.Background(), nil))
	require.NoError(t, w.handleBatch(context.Background(), []*models.Event{{EventID: "evt-1"}}))
	// Unknown assets have no anchor row to claim; nothing reaches the ledger.
	require.NoError(t, w.handleBatch(context.Background(), events("no-such-asset")))
	assert.Empty(t, lc.batches)
}

func TestProcessAndAckBatch(t *testing.T) {
	acked := []bool{}
	acks := []func(bool){func(ok bool) { acked = append(acked, ok) }, func(ok bool) { acked = append(acked, ok) }}
	batch := events("asset-a", "asset-a")

	st := store.NewMemoryStore()
	seedAsset(t, st, "asset-a", 0)
	w := newTestWorker(st, &fakeLedger{})
	w.processAndAckBatch(context.Background(), 1, batch, acks)
	assert.Equal(t, []bool{true, true}, acked)

	acked = acked[:0]
	st = store.NewMemoryStore()
	seedAsset(t, st, "asset-a", 0)
	w = newTestWorker(st, &fakeLedger{err: errors.New("node unreachable")})
	w.processAndAckBatch(context.Background(), 1, batch, acks)
	assert.Equal(t, []bool{false, false}, acked)
}
