package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"reloop/geo"
	"reloop/internal/models"
)

// MemoryStore is an in-process Store used by tests and by the gateway when
// no database is configured. All state is owned by a single mutex; assets
// and entries are deep-copied on the way in and out.
type MemoryStore struct {
	mu         sync.Mutex
	processors map[string]models.ProcessorCandidate
	matches    map[string][]models.ProcessorMatch
	twins      map[string]*models.AssetDigitalTwin
	entries    map[string][]models.CoCLogEntry
	anchors    map[string]*AnchorStatus
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		processors: make(map[string]models.ProcessorCandidate),
		matches:    make(map[string][]models.ProcessorMatch),
		twins:      make(map[string]*models.AssetDigitalTwin),
		entries:    make(map[string][]models.CoCLogEntry),
		anchors:    make(map[string]*AnchorStatus),
	}
}

func (s *MemoryStore) Close() {}

// UpsertProcessor registers or updates a processor in the registry.
func (s *MemoryStore) UpsertProcessor(ctx context.Context, p *models.ProcessorCandidate) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processors[p.ID] = *p
	return nil
}

func (s *MemoryStore) FindCandidates(ctx context.Context, loc models.Geolocation, radiusKm float64, accepted models.OutputType) ([]models.ProcessorCandidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.ProcessorCandidate
	for _, p := range s.processors {
		if p.AcceptedType != accepted {
			continue
		}
		if geo.DistanceKm(loc, p.Location) > radiusKm {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return geo.DistanceKm(loc, out[i].Location) < geo.DistanceKm(loc, out[j].Location)
	})
	return out, nil
}

func (s *MemoryStore) SaveMatches(ctx context.Context, lotID string, matches []models.ProcessorMatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matches[lotID] = append([]models.ProcessorMatch(nil), matches...)
	return nil
}

func (s *MemoryStore) GetMatches(ctx context.Context, lotID string) ([]models.ProcessorMatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ProcessorMatch(nil), s.matches[lotID]...), nil
}

func (s *MemoryStore) CreateAsset(ctx context.Context, twin *models.AssetDigitalTwin, first *models.CoCLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.twins[twin.AssetID]; ok {
		return fmt.Errorf("asset %s already exists", twin.AssetID)
	}
	cp := *twin
	cp.CoCHistory = append([]string(nil), twin.CoCHistory...)
	s.twins[twin.AssetID] = &cp
	s.entries[twin.AssetID] = []models.CoCLogEntry{copyEntry(first)}
	s.anchors[twin.AssetID] = &AnchorStatus{
		AssetID:   twin.AssetID,
		Status:    AnchorPending,
		UpdatedAt: time.Now(),
	}
	return nil
}

func (s *MemoryStore) GetTwin(ctx context.Context, assetID string) (*models.AssetDigitalTwin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	twin, ok := s.twins[assetID]
	if !ok {
		return nil, fmt.Errorf("asset %s: %w", assetID, ErrNotFound)
	}
	cp := *twin
	cp.CoCHistory = append([]string(nil), twin.CoCHistory...)
	return &cp, nil
}

func (s *MemoryStore) GetEntries(ctx context.Context, assetID string) ([]models.CoCLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	src, ok := s.entries[assetID]
	if !ok {
		return nil, fmt.Errorf("asset %s: %w", assetID, ErrNotFound)
	}
	out := make([]models.CoCLogEntry, len(src))
	for i := range src {
		out[i] = copyEntry(&src[i])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out, nil
}

func (s *MemoryStore) AppendEntry(ctx context.Context, entry *models.CoCLogEntry, expectedState models.ProcessState, newCustodian string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	twin, ok := s.twins[entry.AssetID]
	if !ok {
		return fmt.Errorf("asset %s: %w", entry.AssetID, ErrNotFound)
	}
	if twin.CurrentState != expectedState {
		return fmt.Errorf("asset %s no longer in state %s: %w", entry.AssetID, expectedState, ErrStateConflict)
	}

	twin.CurrentState = entry.ProcessState
	if newCustodian != "" {
		twin.CurrentCustodianID = newCustodian
	}
	twin.CoCHistory = append(twin.CoCHistory, entry.EntryID)
	s.entries[entry.AssetID] = append(s.entries[entry.AssetID], copyEntry(entry))

	if st, ok := s.anchors[entry.AssetID]; ok {
		st.Status = AnchorPending
		st.UpdatedAt = time.Now()
	}
	return nil
}

func (s *MemoryStore) GetAndMarkAnchorsProcessing(ctx context.Context, assetIDs []string, maxRetries int) (map[string]*AnchorStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]*AnchorStatus, len(assetIDs))
	for _, id := range assetIDs {
		st, ok := s.anchors[id]
		if !ok {
			continue
		}
		if st.Status != AnchorPending && st.Status != AnchorProcessing {
			continue
		}
		if st.Attempts >= maxRetries {
			st.Status = AnchorFailed
		} else {
			st.Status = AnchorProcessing
		}
		st.Attempts++
		st.UpdatedAt = time.Now()
		cp := *st
		out[id] = &cp
	}
	return out, nil
}

func (s *MemoryStore) MarkAnchorsCompleted(ctx context.Context, completions []AnchorCompletion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range completions {
		st, ok := s.anchors[c.AssetID]
		if !ok {
			continue
		}
		st.Status = AnchorCompleted
		st.MerkleRoot = c.MerkleRoot
		st.TxID = c.TxID
		st.BlockHeight = c.BlockHeight
		st.LastError = ""
		st.UpdatedAt = time.Now()
	}
	return nil
}

func (s *MemoryStore) MarkAnchorsFailed(ctx context.Context, failures []AnchorFailure) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range failures {
		st, ok := s.anchors[f.AssetID]
		if !ok {
			continue
		}
		st.Status = AnchorFailed
		st.LastError = f.ErrorMessage
		st.UpdatedAt = time.Now()
	}
	return nil
}

func (s *MemoryStore) MarkAnchorsForRetry(ctx context.Context, assetIDs []string, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range assetIDs {
		st, ok := s.anchors[id]
		if !ok {
			continue
		}
		st.Status = AnchorPending
		st.LastError = errMsg
		st.UpdatedAt = time.Now()
	}
	return nil
}

// AnchorState reports the current anchor status for an asset.
func (s *MemoryStore) AnchorState(assetID string) (AnchorStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.anchors[assetID]
	if !ok {
		return AnchorStatus{}, false
	}
	return *st, true
}

func copyEntry(e *models.CoCLogEntry) models.CoCLogEntry {
	cp := *e
	if e.Geolocation != nil {
		g := *e.Geolocation
		cp.Geolocation = &g
	}
	return cp
}

var _ Store = (*MemoryStore)(nil)
