package store

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"reloop/internal/models"
)

// PostgresStore implements Store on a pgx connection pool.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *log.Logger
}

// NewPostgresStore creates a PostgresStore with the given pool bounds.
func NewPostgresStore(ctx context.Context, dsn string, maxConns, minConns int, logger *log.Logger) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database DSN: %w", err)
	}
	poolCfg.MaxConns = int32(maxConns)
	poolCfg.MinConns = int32(minConns)

	pool, err := pgxpool.ConnectConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	logger.Printf("Database pool created (max: %d, min: %d)", maxConns, minConns)
	return &PostgresStore{pool: pool, logger: logger}, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.logger.Println("Closing database pool...")
	s.pool.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS processors (
	id               TEXT PRIMARY KEY,
	name             TEXT NOT NULL,
	accepted_type    TEXT NOT NULL,
	lat              DOUBLE PRECISION NOT NULL,
	lng              DOUBLE PRECISION NOT NULL,
	capacity         DOUBLE PRECISION NOT NULL,
	utilization      DOUBLE PRECISION NOT NULL,
	price_per_unit   DOUBLE PRECISION NOT NULL,
	reputation       DOUBLE PRECISION NOT NULL,
	srl_participant  BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS feedstock_matches (
	lot_id          TEXT NOT NULL,
	rank            INT NOT NULL,
	processor_id    TEXT NOT NULL,
	processor_name  TEXT NOT NULL,
	score           DOUBLE PRECISION NOT NULL,
	distance_km     DOUBLE PRECISION NOT NULL,
	price_estimate  DOUBLE PRECISION NOT NULL,
	route_eta       TIMESTAMPTZ NOT NULL,
	srl_score       DOUBLE PRECISION NOT NULL,
	notes           TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (lot_id, rank)
);

CREATE TABLE IF NOT EXISTS coc_assets (
	asset_id        TEXT PRIMARY KEY,
	agreement_id    TEXT NOT NULL,
	current_state   TEXT NOT NULL,
	custodian_id    TEXT NOT NULL,
	entry_count     INT NOT NULL DEFAULT 0,
	anchor_status   TEXT NOT NULL DEFAULT 'PENDING',
	anchor_attempts INT NOT NULL DEFAULT 0,
	anchor_root     TEXT NOT NULL DEFAULT '',
	anchor_tx       TEXT NOT NULL DEFAULT '',
	anchor_height   BIGINT NOT NULL DEFAULT 0,
	anchor_error    TEXT NOT NULL DEFAULT '',
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS coc_entries (
	seq             BIGSERIAL PRIMARY KEY,
	entry_id        TEXT UNIQUE NOT NULL,
	asset_id        TEXT NOT NULL REFERENCES coc_assets(asset_id),
	actor_voc       TEXT NOT NULL,
	ts              TEXT NOT NULL,
	lat             DOUBLE PRECISION,
	lng             DOUBLE PRECISION,
	process_state   TEXT NOT NULL,
	notes           TEXT NOT NULL DEFAULT '',
	evidence_hash   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_coc_entries_asset ON coc_entries (asset_id, seq);
`

// EnsureSchema creates the tables if they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

// FindCandidates runs a haversine radius query over the processor registry.
func (s *PostgresStore) FindCandidates(ctx context.Context, loc models.Geolocation, radiusKm float64, accepted models.OutputType) ([]models.ProcessorCandidate, error) {
	const q = `
SELECT id, name, accepted_type, lat, lng, capacity, utilization, price_per_unit, reputation, srl_participant
FROM (
	SELECT *,
		6371 * 2 * asin(sqrt(
			power(sin(radians(lat - $1) / 2), 2) +
			cos(radians($1)) * cos(radians(lat)) *
			power(sin(radians(lng - $2) / 2), 2)
		)) AS distance_km
	FROM processors
	WHERE accepted_type = $3
) p
WHERE p.distance_km <= $4
ORDER BY p.distance_km`

	rows, err := s.pool.Query(ctx, q, loc.Lat, loc.Lng, string(accepted), radiusKm)
	if err != nil {
		return nil, fmt.Errorf("processor registry query failed: %w", err)
	}
	defer rows.Close()

	var out []models.ProcessorCandidate
	for rows.Next() {
		var p models.ProcessorCandidate
		var acceptedType string
		if err := rows.Scan(&p.ID, &p.Name, &acceptedType, &p.Location.Lat, &p.Location.Lng,
			&p.Capacity, &p.CurrentUtilization, &p.PricePerUnit, &p.Reputation, &p.SRLParticipant); err != nil {
			return nil, fmt.Errorf("failed to scan processor row: %w", err)
		}
		p.AcceptedType = models.OutputType(acceptedType)
		out = append(out, p)
	}
	return out, rows.Err()
}

// SaveMatches replaces the stored ranking for the lot in one transaction.
func (s *PostgresStore) SaveMatches(ctx context.Context, lotID string, matches []models.ProcessorMatch) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM feedstock_matches WHERE lot_id = $1`, lotID); err != nil {
		return fmt.Errorf("failed to clear previous matches: %w", err)
	}
	for i, m := range matches {
		_, err := tx.Exec(ctx, `
INSERT INTO feedstock_matches (lot_id, rank, processor_id, processor_name, score, distance_km, price_estimate, route_eta, srl_score, notes)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			lotID, i+1, m.ProcessorID, m.ProcessorName, m.Score, m.DistanceKm, m.PriceEstimate, m.RouteETA, m.SRLScore, m.Notes)
		if err != nil {
			return fmt.Errorf("failed to insert match %d for lot %s: %w", i+1, lotID, err)
		}
	}
	return tx.Commit(ctx)
}

// GetMatches returns the stored ranking for the lot, best first.
func (s *PostgresStore) GetMatches(ctx context.Context, lotID string) ([]models.ProcessorMatch, error) {
	rows, err := s.pool.Query(ctx, `
SELECT processor_id, processor_name, score, distance_km, price_estimate, route_eta, srl_score, notes
FROM feedstock_matches WHERE lot_id = $1 ORDER BY rank`, lotID)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches: %w", err)
	}
	defer rows.Close()

	var out []models.ProcessorMatch
	for rows.Next() {
		var m models.ProcessorMatch
		if err := rows.Scan(&m.ProcessorID, &m.ProcessorName, &m.Score, &m.DistanceKm,
			&m.PriceEstimate, &m.RouteETA, &m.SRLScore, &m.Notes); err != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// CreateAsset stores the twin and its first entry in one transaction.
func (s *PostgresStore) CreateAsset(ctx context.Context, twin *models.AssetDigitalTwin, first *models.CoCLogEntry) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
INSERT INTO coc_assets (asset_id, agreement_id, current_state, custodian_id, entry_count)
VALUES ($1, $2, $3, $4, 1)`,
		twin.AssetID, twin.EntrustmentAgreementID, string(twin.CurrentState), twin.CurrentCustodianID)
	if err != nil {
		return fmt.Errorf("failed to insert asset %s: %w", twin.AssetID, err)
	}
	if err := insertEntry(ctx, tx, first); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func insertEntry(ctx context.Context, tx pgx.Tx, e *models.CoCLogEntry) error {
	var lat, lng interface{}
	if e.Geolocation != nil {
		lat, lng = e.Geolocation.Lat, e.Geolocation.Lng
	}
	_, err := tx.Exec(ctx, `
INSERT INTO coc_entries (entry_id, asset_id, actor_voc, ts, lat, lng, process_state, notes, evidence_hash)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.EntryID, e.AssetID, e.ActorVOC, e.Timestamp, lat, lng, string(e.ProcessState), e.Notes, e.EvidenceHash)
	if err != nil {
		return fmt.Errorf("failed to insert entry %s: %w", e.EntryID, err)
	}
	return nil
}

// GetTwin loads the twin and its ordered entry-id history.
func (s *PostgresStore) GetTwin(ctx context.Context, assetID string) (*models.AssetDigitalTwin, error) {
	twin := &models.AssetDigitalTwin{AssetID: assetID}
	var state string
	err := s.pool.QueryRow(ctx, `
SELECT agreement_id, current_state, custodian_id FROM coc_assets WHERE asset_id = $1`, assetID).
		Scan(&twin.EntrustmentAgreementID, &state, &twin.CurrentCustodianID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("asset %s: %w", assetID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load asset %s: %w", assetID, err)
	}
	twin.CurrentState = models.ProcessState(state)

	rows, err := s.pool.Query(ctx, `SELECT entry_id FROM coc_entries WHERE asset_id = $1 ORDER BY seq`, assetID)
	if err != nil {
		return nil, fmt.Errorf("failed to load history for asset %s: %w", assetID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		twin.CoCHistory = append(twin.CoCHistory, id)
	}
	return twin, rows.Err()
}

// GetEntries returns the asset's entries sorted by timestamp ascending.
func (s *PostgresStore) GetEntries(ctx context.Context, assetID string) ([]models.CoCLogEntry, error) {
	rows, err := s.pool.Query(ctx, `
SELECT entry_id, asset_id, actor_voc, ts, lat, lng, process_state, notes, evidence_hash
FROM coc_entries WHERE asset_id = $1 ORDER BY ts, seq`, assetID)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var out []models.CoCLogEntry
	for rows.Next() {
		var e models.CoCLogEntry
		var lat, lng *float64
		var state string
		if err := rows.Scan(&e.EntryID, &e.AssetID, &e.ActorVOC, &e.Timestamp, &lat, &lng, &state, &e.Notes, &e.EvidenceHash); err != nil {
			return nil, fmt.Errorf("failed to scan entry row: %w", err)
		}
		e.ProcessState = models.ProcessState(state)
		if lat != nil && lng != nil {
			e.Geolocation = &models.Geolocation{Lat: *lat, Lng: *lng}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// AppendEntry appends the entry and advances the twin in one transaction,
// guarded by a current-state precondition so that two concurrent appends
// against the same prior state cannot both succeed.
func (s *PostgresStore) AppendEntry(ctx context.Context, entry *models.CoCLogEntry, expectedState models.ProcessState, newCustodian string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
UPDATE coc_assets
SET current_state = $2,
    custodian_id = COALESCE(NULLIF($3, ''), custodian_id),
    entry_count = entry_count + 1,
    anchor_status = $4,
    updated_at = now()
WHERE asset_id = $1 AND current_state = $5`,
		entry.AssetID, string(entry.ProcessState), newCustodian, AnchorPending, string(expectedState))
	if err != nil {
		return fmt.Errorf("failed to advance asset %s: %w", entry.AssetID, err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a missing asset from a lost state race.
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM coc_assets WHERE asset_id = $1)`, entry.AssetID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check asset %s: %w", entry.AssetID, err)
		}
		if !exists {
			return fmt.Errorf("asset %s: %w", entry.AssetID, ErrNotFound)
		}
		return fmt.Errorf("asset %s no longer in state %s: %w", entry.AssetID, expectedState, ErrStateConflict)
	}

	if err := insertEntry(ctx, tx, entry); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// GetAndMarkAnchorsProcessing transitions assets to PROCESSING (or FAILED
// once retries are exhausted) and returns the resulting statuses.
func (s *PostgresStore) GetAndMarkAnchorsProcessing(ctx context.Context, assetIDs []string, maxRetries int) (map[string]*AnchorStatus, error) {
	if len(assetIDs) == 0 {
		return map[string]*AnchorStatus{}, nil
	}
	rows, err := s.pool.Query(ctx, `
UPDATE coc_assets
SET anchor_status = CASE WHEN anchor_attempts >= $2 THEN $3 ELSE $4 END,
    anchor_attempts = anchor_attempts + 1,
    updated_at = now()
WHERE asset_id = ANY($1) AND anchor_status IN ($5, $4)
RETURNING asset_id, anchor_status, anchor_attempts, anchor_root, anchor_tx, anchor_height, anchor_error, updated_at`,
		assetIDs, maxRetries, AnchorFailed, AnchorProcessing, AnchorPending)
	if err != nil {
		return nil, fmt.Errorf("failed to mark anchors processing: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*AnchorStatus, len(assetIDs))
	for rows.Next() {
		st := &AnchorStatus{}
		if err := rows.Scan(&st.AssetID, &st.Status, &st.Attempts, &st.MerkleRoot, &st.TxID, &st.BlockHeight, &st.LastError, &st.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan anchor status: %w", err)
		}
		out[st.AssetID] = st
	}
	return out, rows.Err()
}

// MarkAnchorsCompleted records successful anchors in bulk.
func (s *PostgresStore) MarkAnchorsCompleted(ctx context.Context, completions []AnchorCompletion) error {
	if len(completions) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, c := range completions {
		batch.Queue(`
UPDATE coc_assets
SET anchor_status = $2, anchor_root = $3, anchor_tx = $4, anchor_height = $5, anchor_error = '', updated_at = now()
WHERE asset_id = $1`,
			c.AssetID, AnchorCompleted, c.MerkleRoot, c.TxID, int64(c.BlockHeight))
	}
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range completions {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to mark anchor completed: %w", err)
		}
	}
	return nil
}

// MarkAnchorsFailed records terminal anchor failures in bulk.
func (s *PostgresStore) MarkAnchorsFailed(ctx context.Context, failures []AnchorFailure) error {
	if len(failures) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, f := range failures {
		batch.Queue(`
UPDATE coc_assets SET anchor_status = $2, anchor_error = $3, updated_at = now() WHERE asset_id = $1`,
			f.AssetID, AnchorFailed, f.ErrorMessage)
	}
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range failures {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to mark anchor failed: %w", err)
		}
	}
	return nil
}

// MarkAnchorsForRetry returns assets to PENDING after a transient failure.
func (s *PostgresStore) MarkAnchorsForRetry(ctx context.Context, assetIDs []string, errMsg string) error {
	if len(assetIDs) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx, `
UPDATE coc_assets SET anchor_status = $2, anchor_error = $3, updated_at = now() WHERE asset_id = ANY($1)`,
		assetIDs, AnchorPending, errMsg)
	if err != nil {
		return fmt.Errorf("failed to mark anchors for retry: %w", err)
	}
	return nil
}

// UpsertProcessor registers or updates a processor in the registry.
func (s *PostgresStore) UpsertProcessor(ctx context.Context, p *models.ProcessorCandidate) error {
	if err := p.Validate(); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `
INSERT INTO processors (id, name, accepted_type, lat, lng, capacity, utilization, price_per_unit, reputation, srl_participant)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	accepted_type = EXCLUDED.accepted_type,
	lat = EXCLUDED.lat,
	lng = EXCLUDED.lng,
	capacity = EXCLUDED.capacity,
	utilization = EXCLUDED.utilization,
	price_per_unit = EXCLUDED.price_per_unit,
	reputation = EXCLUDED.reputation,
	srl_participant = EXCLUDED.srl_participant`,
		p.ID, p.Name, string(p.AcceptedType), p.Location.Lat, p.Location.Lng,
		p.Capacity, p.CurrentUtilization, p.PricePerUnit, p.Reputation, p.SRLParticipant)
	if err != nil {
		return fmt.Errorf("failed to upsert processor %s: %w", p.ID, err)
	}
	return nil
}

var _ Store = (*PostgresStore)(nil)
