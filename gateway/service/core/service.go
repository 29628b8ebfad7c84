package service

import (
	"context"
	"log"

	"reloop/custody"
	"reloop/internal/models"
	"reloop/matching"
	"reloop/routing"
	"reloop/storage/store"
)

// Service encapsulates the core business logic of the API gateway: the
// feedstock matcher, the chain-of-custody service and the route planner
// behind one surface for the HTTP handler.
type Service struct {
	matcher *matching.Matcher
	custody *custody.Service
	store   store.Store
	logger  *log.Logger
}

// NewService creates a new Service instance
func NewService(m *matching.Matcher, c *custody.Service, s store.Store, l *log.Logger) *Service {
	return &Service{
		matcher: m,
		custody: c,
		store:   s,
		logger:  l,
	}
}

// MatchFeedstock scores and ranks processors for the lot and persists the
// result keyed by lot id.
func (s *Service) MatchFeedstock(ctx context.Context, lot *models.FeedstockLot) ([]models.ProcessorMatch, error) {
	return s.matcher.Match(ctx, lot)
}

// GetMatches returns the stored ranking for a lot, best first.
func (s *Service) GetMatches(ctx context.Context, lotID string) ([]models.ProcessorMatch, error) {
	return s.matcher.Matches(ctx, lotID)
}

// RegisterProcessor upserts a processor in the registry.
func (s *Service) RegisterProcessor(ctx context.Context, p *models.ProcessorCandidate) error {
	return s.store.UpsertProcessor(ctx, p)
}

// CreateEntrustment opens a digital twin for a newly entrusted asset.
func (s *Service) CreateEntrustment(ctx context.Context, agreementID, entrustorID, custodianID string, evidence interface{}) (*models.AssetDigitalTwin, error) {
	return s.custody.CreateEntrustment(ctx, agreementID, entrustorID, custodianID, evidence)
}

// AddCoCEntry appends one validated custody transition to an asset.
func (s *Service) AddCoCEntry(ctx context.Context, assetID, actorID string, newState models.ProcessState, evidence interface{}, geoloc *models.Geolocation, notes string) (*models.CoCLogEntry, error) {
	return s.custody.AddEntry(ctx, assetID, actorID, newState, evidence, geoloc, notes)
}

// GetAssetHistory returns the twin and its ordered entries.
func (s *Service) GetAssetHistory(ctx context.Context, assetID string) (*models.AssetDigitalTwin, []models.CoCLogEntry, error) {
	return s.custody.GetAssetHistory(ctx, assetID)
}

// VerifyChainIntegrity runs the structural chain check.
func (s *Service) VerifyChainIntegrity(ctx context.Context, assetID string) (*custody.IntegrityReport, error) {
	return s.custody.VerifyIntegrity(ctx, assetID)
}

// ExportForAudit returns the full history and Merkle root.
func (s *Service) ExportForAudit(ctx context.Context, assetID string) (*custody.AuditExport, error) {
	return s.custody.ExportForAudit(ctx, assetID)
}

// AddSensorEvidence hashes an IoT evidence envelope for the asset.
func (s *Service) AddSensorEvidence(ctx context.Context, assetID string, readings []models.SensorReading) (string, error) {
	return s.custody.AddSensorEvidence(ctx, assetID, readings)
}

// PlanRoute runs the greedy route planner over the given stops.
func (s *Service) PlanRoute(ctx context.Context, stops []routing.Stop, constraints routing.Constraints) (*routing.Route, error) {
	return routing.PlanRoute(stops, constraints)
}
