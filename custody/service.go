package custody

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"reloop/internal/models"
	"reloop/storage/store"
)

// Sink receives fire-and-forget custody events. Delivery is best-effort
// and never transactional with the operation that produced the event.
type Sink interface {
	Emit(ctx context.Context, event *models.Event)
}

// NopSink drops every event.
type NopSink struct{}

func (NopSink) Emit(context.Context, *models.Event) {}

// IntegrityReport is the outcome of a structural chain check. Issues are
// diagnostic only; they never block normal operation.
type IntegrityReport struct {
	Valid  bool     `json:"valid"`
	Issues []string `json:"issues"`
}

// AuditExport bundles an asset's full history with the Merkle root over
// its ordered evidence hashes.
type AuditExport struct {
	Twin       *models.AssetDigitalTwin `json:"twin"`
	Entries    []models.CoCLogEntry     `json:"entries"`
	MerkleRoot string                   `json:"merkle_root"`
}

// Service is the chain-of-custody core. Appends for a single asset are
// serialized by a per-asset mutex on top of the store's own current-state
// precondition; operations on different assets proceed concurrently.
type Service struct {
	store  store.CustodyStore
	sink   Sink
	logger *log.Logger
	now    func() time.Time

	lockMu  sync.Mutex
	assetMu map[string]*sync.Mutex

	ruleMu     sync.RWMutex
	rules      []AlertRule
	conditions map[string]ConditionFunc
}

// NewService wires the custody core with its built-in transport-delay
// alert rule registered.
func NewService(st store.CustodyStore, sink Sink, logger *log.Logger) *Service {
	if sink == nil {
		sink = NopSink{}
	}
	s := &Service{
		store:      st,
		sink:       sink,
		logger:     logger,
		now:        time.Now,
		assetMu:    make(map[string]*sync.Mutex),
		conditions: make(map[string]ConditionFunc),
	}
	s.RegisterCondition("time_limit", timeLimitCondition)
	s.RegisterRule(transportDelayRule())
	return s
}

// RegisterCondition makes a condition type available to alert rules.
func (s *Service) RegisterCondition(condType string, fn ConditionFunc) {
	s.ruleMu.Lock()
	defer s.ruleMu.Unlock()
	s.conditions[condType] = fn
}

// RegisterRule adds a declarative alert rule evaluated after every append.
func (s *Service) RegisterRule(rule AlertRule) {
	s.ruleMu.Lock()
	defer s.ruleMu.Unlock()
	s.rules = append(s.rules, rule)
}

// CreateEntrustment opens a digital twin for a newly entrusted asset and
// writes its first log entry.
func (s *Service) CreateEntrustment(ctx context.Context, agreementID, entrustorID, custodianID string, evidence interface{}) (*models.AssetDigitalTwin, error) {
	if agreementID == "" {
		return nil, &models.ValidationError{Field: "agreement_id", Reason: "agreement id is required"}
	}
	if entrustorID == "" || custodianID == "" {
		return nil, &models.ValidationError{Field: "actor", Reason: "entrustor and custodian ids are required"}
	}
	if evidence == nil {
		return nil, &models.ValidationError{Field: "evidence", Reason: "entrustment evidence is required"}
	}
	hash, err := HashEvidence(evidence)
	if err != nil {
		return nil, err
	}

	assetID := uuid.New().String()
	entry := &models.CoCLogEntry{
		EntryID:      uuid.New().String(),
		AssetID:      assetID,
		ActorVOC:     entrustorID,
		Timestamp:    s.now().UTC().Format(time.RFC3339),
		ProcessState: models.StateEntrusted,
		EvidenceHash: hash,
	}
	twin := &models.AssetDigitalTwin{
		AssetID:                assetID,
		EntrustmentAgreementID: agreementID,
		CurrentState:           models.StateEntrusted,
		CurrentCustodianID:     custodianID,
		CoCHistory:             []string{entry.EntryID},
	}
	if err := s.store.CreateAsset(ctx, twin, entry); err != nil {
		return nil, fmt.Errorf("failed to create asset %s: %w", assetID, err)
	}

	s.logger.Printf("Asset %s entrusted under agreement %s", assetID, agreementID)
	s.emit(ctx, &models.Event{
		Type:    models.EventAssetCreated,
		AssetID: assetID,
		EntryID: entry.EntryID,
		State:   models.StateEntrusted,
	})
	return twin, nil
}

// AddEntry validates and appends one custody transition. Entering a
// custody-transfer state reassigns the twin to the acting actor.
func (s *Service) AddEntry(ctx context.Context, assetID, actorID string, newState models.ProcessState, evidence interface{}, geoloc *models.Geolocation, notes string) (*models.CoCLogEntry, error) {
	if actorID == "" {
		return nil, &models.ValidationError{Field: "actor", Reason: "actor id is required"}
	}
	if evidence == nil {
		return nil, &models.ValidationError{Field: "evidence", Reason: "transition evidence is required"}
	}

	unlock := s.lockAsset(assetID)
	defer unlock()

	twin, err := s.store.GetTwin(ctx, assetID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(twin.CurrentState, newState) {
		return nil, &InvalidTransitionError{From: twin.CurrentState, To: newState}
	}

	history, err := s.store.GetEntries(ctx, assetID)
	if err != nil {
		return nil, err
	}
	hash, err := HashEvidence(evidence)
	if err != nil {
		return nil, err
	}

	entry := &models.CoCLogEntry{
		EntryID:      uuid.New().String(),
		AssetID:      assetID,
		ActorVOC:     actorID,
		Timestamp:    s.now().UTC().Format(time.RFC3339),
		Geolocation:  geoloc,
		ProcessState: newState,
		Notes:        notes,
		EvidenceHash: hash,
	}
	newCustodian := ""
	if IsCustodyTransfer(newState) {
		newCustodian = actorID
	}
	if err := s.store.AppendEntry(ctx, entry, twin.CurrentState, newCustodian); err != nil {
		return nil, err
	}

	s.emit(ctx, &models.Event{
		Type:    models.EventEntryAdded,
		AssetID: assetID,
		EntryID: entry.EntryID,
		State:   newState,
	})

	var prev *models.CoCLogEntry
	if len(history) > 0 {
		prev = &history[len(history)-1]
	}
	s.evaluateAlerts(ctx, prev, entry)
	return entry, nil
}

// GetAssetHistory returns the twin and its entries sorted by timestamp
// ascending.
func (s *Service) GetAssetHistory(ctx context.Context, assetID string) (*models.AssetDigitalTwin, []models.CoCLogEntry, error) {
	twin, err := s.store.GetTwin(ctx, assetID)
	if err != nil {
		return nil, nil, err
	}
	entries, err := s.store.GetEntries(ctx, assetID)
	if err != nil {
		return nil, nil, err
	}
	return twin, entries, nil
}

// VerifyIntegrity replays the recorded sequence against the state graph
// and checks chronology and entry counts. Evidence hashes are taken as
// given; the check is structural, not a cryptographic re-derivation.
func (s *Service) VerifyIntegrity(ctx context.Context, assetID string) (*IntegrityReport, error) {
	twin, entries, err := s.GetAssetHistory(ctx, assetID)
	if err != nil {
		return nil, err
	}

	report := &IntegrityReport{Valid: true, Issues: []string{}}
	flag := func(format string, args ...interface{}) {
		report.Valid = false
		report.Issues = append(report.Issues, fmt.Sprintf(format, args...))
	}

	if len(entries) != len(twin.CoCHistory) {
		flag("entry count %d does not match twin history length %d", len(entries), len(twin.CoCHistory))
	}
	if len(entries) > 0 && entries[0].ProcessState != models.StateEntrusted {
		flag("chain does not start at %s (first entry is %s)", models.StateEntrusted, entries[0].ProcessState)
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].Timestamp < entries[i-1].Timestamp {
			flag("entry %s timestamp precedes its predecessor", entries[i].EntryID)
		}
		if !CanTransition(entries[i-1].ProcessState, entries[i].ProcessState) {
			flag("recorded transition %s -> %s is not in the state graph", entries[i-1].ProcessState, entries[i].ProcessState)
		}
	}
	return report, nil
}

// ExportForAudit returns the full history plus the Merkle root over the
// ordered evidence hashes.
func (s *Service) ExportForAudit(ctx context.Context, assetID string) (*AuditExport, error) {
	twin, entries, err := s.GetAssetHistory(ctx, assetID)
	if err != nil {
		return nil, err
	}
	hashes := make([]string, len(entries))
	for i, e := range entries {
		hashes[i] = e.EvidenceHash
	}
	return &AuditExport{Twin: twin, Entries: entries, MerkleRoot: MerkleRoot(hashes)}, nil
}

// AddSensorEvidence hashes a canonical envelope of IoT readings for the
// asset and returns the hash. Raw readings are persisted by an external
// evidence store keyed by this hash.
func (s *Service) AddSensorEvidence(ctx context.Context, assetID string, readings []models.SensorReading) (string, error) {
	if len(readings) == 0 {
		return "", &models.ValidationError{Field: "sensor_readings", Reason: "at least one reading is required"}
	}
	if _, err := s.store.GetTwin(ctx, assetID); err != nil {
		return "", err
	}
	envelope := map[string]interface{}{
		"evidence_id":     uuid.New().String(),
		"asset_id":        assetID,
		"timestamp":       s.now().UTC().Format(time.RFC3339),
		"sensor_readings": readings,
	}
	return HashEvidence(envelope)
}

func (s *Service) lockAsset(assetID string) func() {
	s.lockMu.Lock()
	mu, ok := s.assetMu[assetID]
	if !ok {
		mu = &sync.Mutex{}
		s.assetMu[assetID] = mu
	}
	s.lockMu.Unlock()
	mu.Lock()
	return mu.Unlock
}

func (s *Service) emit(ctx context.Context, event *models.Event) {
	event.EventID = uuid.New().String()
	event.Timestamp = s.now().UTC().Format(time.RFC3339)
	s.sink.Emit(ctx, event)
}

func (s *Service) evaluateAlerts(ctx context.Context, prev, entry *models.CoCLogEntry) {
	s.ruleMu.RLock()
	defer s.ruleMu.RUnlock()
	for i := range s.rules {
		rule := &s.rules[i]
		fn, ok := s.conditions[rule.Condition.Type]
		if !ok || !fn(rule, prev, entry) {
			continue
		}
		s.logger.Printf("Alert rule %s fired for asset %s: %s", rule.RuleID, entry.AssetID, rule.Action.Message)
		s.emit(ctx, &models.Event{
			Type:    models.EventAlert,
			AssetID: entry.AssetID,
			EntryID: entry.EntryID,
			State:   entry.ProcessState,
			Message: rule.Action.Message,
		})
	}
}
