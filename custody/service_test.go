package custody

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reloop/internal/models"
	"reloop/storage/store"
)

type captureSink struct {
	events []*models.Event
}

func (c *captureSink) Emit(ctx context.Context, event *models.Event) {
	c.events = append(c.events, event)
}

func (c *captureSink) byType(t models.EventType) []*models.Event {
	var out []*models.Event
	for _, e := range c.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func testEvidence() map[string]interface{} {
	return map[string]interface{}{"weight_kg": 120.5, "photo_url": "https://cdn/p.jpg"}
}

func newTestService() (*Service, *store.MemoryStore, *captureSink) {
	st := store.NewMemoryStore()
	sink := &captureSink{}
	svc := NewService(st, sink, log.New(os.Stderr, "[TEST] ", log.LstdFlags))
	return svc, st, sink
}

func TestCreateEntrustment(t *testing.T) {
	svc, st, sink := newTestService()
	ctx := context.Background()

	twin, err := svc.CreateEntrustment(ctx, "agr-1", "voc-entrustor", "voc-custodian", testEvidence())
	require.NoError(t, err)

	assert.NotEmpty(t, twin.AssetID)
	assert.Equal(t, "agr-1", twin.EntrustmentAgreementID)
	assert.Equal(t, models.StateEntrusted, twin.CurrentState)
	assert.Equal(t, "voc-custodian", twin.CurrentCustodianID)
	assert.Len(t, twin.CoCHistory, 1)

	entries, err := st.GetEntries(ctx, twin.AssetID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, twin.CoCHistory[0], entries[0].EntryID)
	assert.Equal(t, models.StateEntrusted, entries[0].ProcessState)
	assert.Equal(t, "voc-entrustor", entries[0].ActorVOC)
	assert.Len(t, entries[0].EvidenceHash, 64)

	created := sink.byType(models.EventAssetCreated)
	require.Len(t, created, 1)
	assert.Equal(t, twin.AssetID, created[0].AssetID)
	assert.NotEmpty(t, created[0].EventID)
}

func TestCreateEntrustmentValidation(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	var vErr *models.ValidationError
	_, err := svc.CreateEntrustment(ctx, "", "voc-a", "voc-b", testEvidence())
	require.ErrorAs(t, err, &vErr)

	_, err = svc.CreateEntrustment(ctx, "agr-1", "", "voc-b", testEvidence())
	require.ErrorAs(t, err, &vErr)

	_, err = svc.CreateEntrustment(ctx, "agr-1", "voc-a", "voc-b", nil)
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "evidence", vErr.Field)
}

func TestAddEntryRejectsSkippedStates(t *testing.T) {
	svc, st, _ := newTestService()
	ctx := context.Background()

	twin, err := svc.CreateEntrustment(ctx, "agr-1", "voc-a", "voc-b", testEvidence())
	require.NoError(t, err)

	// qa_verified is two hops ahead of entrusted.
	_, err = svc.AddEntry(ctx, twin.AssetID, "voc-qa", models.StateQAVerified, testEvidence(), nil, "")
	var tErr *InvalidTransitionError
	require.ErrorAs(t, err, &tErr)
	assert.Equal(t, models.StateEntrusted, tErr.From)
	assert.Equal(t, models.StateQAVerified, tErr.To)

	// The rejected transition must leave no trace.
	after, err := st.GetTwin(ctx, twin.AssetID)
	require.NoError(t, err)
	assert.Equal(t, models.StateEntrusted, after.CurrentState)
	entries, err := st.GetEntries(ctx, twin.AssetID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestAddEntryLifecycleAndCustodyTransfer(t *testing.T) {
	svc, st, _ := newTestService()
	ctx := context.Background()

	twin, err := svc.CreateEntrustment(ctx, "agr-1", "voc-restaurant", "voc-restaurant", testEvidence())
	require.NoError(t, err)

	steps := []struct {
		actor         string
		state         models.ProcessState
		wantCustodian string
	}{
		{"voc-hauler", models.StateTransportPickup, "voc-hauler"},
		{"voc-plant", models.StateReceivedAtFacility, "voc-plant"},
		{"voc-qa", models.StateQAVerified, "voc-plant"}, // custody stays with the facility
		{"voc-plant", models.StateSorted, "voc-plant"},
		{"voc-plant", models.StateProcessingStart, "voc-plant"},
		{"voc-plant", models.StateProcessed, "voc-plant"},
		{"voc-plant", models.StateOutputGenerated, "voc-plant"},
		{"voc-plant", models.StateDisposed, "voc-plant"},
	}
	for _, step := range steps {
		entry, err := svc.AddEntry(ctx, twin.AssetID, step.actor, step.state, testEvidence(), nil, "")
		require.NoError(t, err, "transition to %s", step.state)
		assert.Equal(t, step.state, entry.ProcessState)

		current, err := st.GetTwin(ctx, twin.AssetID)
		require.NoError(t, err)
		assert.Equal(t, step.state, current.CurrentState)
		assert.Equal(t, step.wantCustodian, current.CurrentCustodianID)
	}

	// disposed is terminal.
	_, err = svc.AddEntry(ctx, twin.AssetID, "voc-plant", models.StateTransportPickup, testEvidence(), nil, "")
	var tErr *InvalidTransitionError
	require.ErrorAs(t, err, &tErr)

	entries, err := st.GetEntries(ctx, twin.AssetID)
	require.NoError(t, err)
	assert.Len(t, entries, len(steps)+1)
}

func TestAddEntryUnknownAsset(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.AddEntry(context.Background(), "no-such-asset", "voc-a", models.StateTransportPickup, testEvidence(), nil, "")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAddEntryValidation(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	twin, err := svc.CreateEntrustment(ctx, "agr-1", "voc-a", "voc-b", testEvidence())
	require.NoError(t, err)

	var vErr *models.ValidationError
	_, err = svc.AddEntry(ctx, twin.AssetID, "", models.StateTransportPickup, testEvidence(), nil, "")
	require.ErrorAs(t, err, &vErr)

	_, err = svc.AddEntry(ctx, twin.AssetID, "voc-a", models.StateTransportPickup, nil, nil, "")
	require.ErrorAs(t, err, &vErr)
}

func TestVerifyIntegrityCleanChain(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	twin, err := svc.CreateEntrustment(ctx, "agr-1", "voc-a", "voc-b", testEvidence())
	require.NoError(t, err)
	report, err := svc.VerifyIntegrity(ctx, twin.AssetID)
	require.NoError(t, err)
	assert.True(t, report.Valid)
	assert.NotNil(t, report.Issues)
	assert.Empty(t, report.Issues)

	_, err = svc.AddEntry(ctx, twin.AssetID, "voc-hauler", models.StateTransportPickup, testEvidence(), nil, "")
	require.NoError(t, err)
	_, err = svc.AddEntry(ctx, twin.AssetID, "voc-plant", models.StateReceivedAtFacility, testEvidence(), nil, "")
	require.NoError(t, err)

	report, err = svc.VerifyIntegrity(ctx, twin.AssetID)
	require.NoError(t, err)
	assert.True(t, report.Valid)
	assert.Empty(t, report.Issues)
}

func TestExportForAudit(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	twin, err := svc.CreateEntrustment(ctx, "agr-1", "voc-a", "voc-b", testEvidence())
	require.NoError(t, err)
	_, err = svc.AddEntry(ctx, twin.AssetID, "voc-hauler", models.StateTransportPickup, testEvidence(), nil, "")
	require.NoError(t, err)

	export, err := svc.ExportForAudit(ctx, twin.AssetID)
	require.NoError(t, err)
	require.Len(t, export.Entries, 2)

	hashes := []string{export.Entries[0].EvidenceHash, export.Entries[1].EvidenceHash}
	assert.Equal(t, MerkleRoot(hashes), export.MerkleRoot)

	// A further append moves the root.
	_, err = svc.AddEntry(ctx, twin.AssetID, "voc-plant", models.StateReceivedAtFacility, testEvidence(), nil, "")
	require.NoError(t, err)
	after, err := svc.ExportForAudit(ctx, twin.AssetID)
	require.NoError(t, err)
	assert.NotEqual(t, export.MerkleRoot, after.MerkleRoot)
}

func TestTransportDelayAlert(t *testing.T) {
	svc, _, sink := newTestService()
	ctx := context.Background()

	clock := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return clock }

	twin, err := svc.CreateEntrustment(ctx, "agr-1", "voc-a", "voc-b", testEvidence())
	require.NoError(t, err)

	clock = clock.Add(time.Hour)
	_, err = svc.AddEntry(ctx, twin.AssetID, "voc-hauler", models.StateTransportPickup, testEvidence(), nil, "")
	require.NoError(t, err)
	assert.Empty(t, sink.byType(models.EventAlert))

	// 25 hours in transport exceeds the 24h rule.
	clock = clock.Add(25 * time.Hour)
	entry, err := svc.AddEntry(ctx, twin.AssetID, "voc-plant", models.StateReceivedAtFacility, testEvidence(), nil, "")
	require.NoError(t, err)

	alerts := sink.byType(models.EventAlert)
	require.Len(t, alerts, 1)
	assert.Equal(t, twin.AssetID, alerts[0].AssetID)
	assert.Equal(t, entry.EntryID, alerts[0].EntryID)
	assert.Equal(t, "transport taking too long", alerts[0].Message)
}

func TestTransportDelayAlertNotFiredUnderLimit(t *testing.T) {
	svc, _, sink := newTestService()
	ctx := context.Background()

	clock := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return clock }

	twin, err := svc.CreateEntrustment(ctx, "agr-1", "voc-a", "voc-b", testEvidence())
	require.NoError(t, err)
	clock = clock.Add(time.Hour)
	_, err = svc.AddEntry(ctx, twin.AssetID, "voc-hauler", models.StateTransportPickup, testEvidence(), nil, "")
	require.NoError(t, err)
	clock = clock.Add(23 * time.Hour)
	_, err = svc.AddEntry(ctx, twin.AssetID, "voc-plant", models.StateReceivedAtFacility, testEvidence(), nil, "")
	require.NoError(t, err)

	assert.Empty(t, sink.byType(models.EventAlert))
}

func TestAddSensorEvidence(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	twin, err := svc.CreateEntrustment(ctx, "agr-1", "voc-a", "voc-b", testEvidence())
	require.NoError(t, err)

	readings := []models.SensorReading{{
		SensorID:   "temp-probe-4",
		SensorType: "temperature",
		Value:      4.2,
		Unit:       "celsius",
		Timestamp:  "2026-03-01T08:00:00Z",
		Signature:  "sig",
	}}
	hash, err := svc.AddSensorEvidence(ctx, twin.AssetID, readings)
	require.NoError(t, err)
	assert.Len(t, hash, 64)

	var vErr *models.ValidationError
	_, err = svc.AddSensorEvidence(ctx, twin.AssetID, nil)
	require.ErrorAs(t, err, &vErr)

	_, err = svc.AddSensorEvidence(ctx, "no-such-asset", readings)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCanTransitionTable(t *testing.T) {
	assert.True(t, CanTransition(models.StateEntrusted, models.StateTransportPickup))
	assert.True(t, CanTransition(models.StateProcessingStart, models.StateDigested))
	assert.True(t, CanTransition(models.StateProcessingStart, models.StateProcessed))
	assert.True(t, CanTransition(models.StateProcessed, models.StateDisposed))
	assert.False(t, CanTransition(models.StateEntrusted, models.StateQAVerified))
	assert.False(t, CanTransition(models.StateDigested, models.StateDisposed))
	assert.False(t, CanTransition(models.StateDisposed, models.StateEntrusted))
	assert.Empty(t, AllowedSuccessors(models.StateDisposed))

	assert.True(t, IsCustodyTransfer(models.StateTransportPickup))
	assert.True(t, IsCustodyTransfer(models.StateReceivedAtFacility))
	assert.False(t, IsCustodyTransfer(models.StateQAVerified))
}
