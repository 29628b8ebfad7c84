package matching

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reloop/internal/models"
	"reloop/storage/store"
)

type failingRegistry struct{}

func (failingRegistry) FindCandidates(ctx context.Context, loc models.Geolocation, radiusKm float64, accepted models.OutputType) ([]models.ProcessorCandidate, error) {
	return nil, errors.New("connection refused")
}

func newTestMatcher(t *testing.T, st *store.MemoryStore) *Matcher {
	t.Helper()
	m, err := NewMatcher(testMatcherConfig(), st, st, log.New(os.Stderr, "[TEST] ", log.LstdFlags))
	require.NoError(t, err)
	return m
}

func TestMatchRanksAndTruncates(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()

	// 12 in-range biodiesel processors with distinct reputations, plus one
	// accepting the wrong output and one far out of range.
	for i := 0; i < 12; i++ {
		p := biodieselProcessor()
		p.ID = fmt.Sprintf("proc-%02d", i)
		p.Reputation = float64(40 + i*5)
		require.NoError(t, st.UpsertProcessor(ctx, p))
	}
	wrongType := biodieselProcessor()
	wrongType.ID = "proc-biogas"
	wrongType.AcceptedType = models.OutputBiogas
	require.NoError(t, st.UpsertProcessor(ctx, wrongType))
	farAway := biodieselProcessor()
	farAway.ID = "proc-far"
	farAway.Location = models.Geolocation{Lat: 55.95, Lng: -3.19}
	require.NoError(t, st.UpsertProcessor(ctx, farAway))

	m := newTestMatcher(t, st)
	lot := ucoLot(500)
	ranked, err := m.Match(ctx, lot)
	require.NoError(t, err)

	assert.Len(t, ranked, 10) // top_n default
	for i := 1; i < len(ranked); i++ {
		assert.GreaterOrEqual(t, ranked[i-1].Score, ranked[i].Score)
	}
	for _, r := range ranked {
		assert.Greater(t, r.Score, 0.0)
		assert.NotEqual(t, "proc-biogas", r.ProcessorID)
		assert.NotEqual(t, "proc-far", r.ProcessorID)
	}
	// Highest reputation wins when everything else is identical.
	assert.Equal(t, "proc-11", ranked[0].ProcessorID)

	persisted, err := m.Matches(ctx, lot.ID)
	require.NoError(t, err)
	assert.Equal(t, ranked, persisted)
}

func TestMatchExcludedProcessorsAreDropped(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()

	full := biodieselProcessor()
	full.ID = "proc-full"
	full.CurrentUtilization = 0.95 // 250 available, lot is 500
	require.NoError(t, st.UpsertProcessor(ctx, full))

	m := newTestMatcher(t, st)
	ranked, err := m.Match(ctx, ucoLot(500))
	require.NoError(t, err)
	assert.Empty(t, ranked)
}

func TestMatchRegistryFailure(t *testing.T) {
	st := store.NewMemoryStore()
	m, err := NewMatcher(testMatcherConfig(), failingRegistry{}, st, log.New(os.Stderr, "[TEST] ", log.LstdFlags))
	require.NoError(t, err)

	ranked, err := m.Match(context.Background(), ucoLot(500))
	assert.Nil(t, ranked)
	var regErr *RegistryError
	require.ErrorAs(t, err, &regErr)
}

func TestMatchRejectsInvalidLot(t *testing.T) {
	st := store.NewMemoryStore()
	m := newTestMatcher(t, st)

	lot := ucoLot(500)
	lot.Volume = -1
	_, err := m.Match(context.Background(), lot)
	var vErr *models.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "volume", vErr.Field)
}

func TestNewMatcherRejectsBadTimeout(t *testing.T) {
	cfg := testMatcherConfig()
	cfg.RegistryTimeout = "soon"
	st := store.NewMemoryStore()
	_, err := NewMatcher(cfg, st, st, log.New(os.Stderr, "[TEST] ", log.LstdFlags))
	assert.Error(t, err)
}
