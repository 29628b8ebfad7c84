package matching

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"reloop/config"
	"reloop/internal/models"
	"reloop/storage/store"
)

// RegistryError wraps a processor-registry failure. It is retryable: the
// lookup failed, which is not the same as an empty candidate set.
type RegistryError struct {
	Err error
}

func (e *RegistryError) Error() string {
	return fmt.Sprintf("processor registry unavailable: %v", e.Err)
}

func (e *RegistryError) Unwrap() error { return e.Err }

// Matcher ranks candidate processors for a feedstock lot and persists the
// top results. Match requests for different lots are independent; the
// Matcher holds no per-request state.
type Matcher struct {
	cfg             config.MatcherConfig
	scorer          *Scorer
	registry        store.ProcessorRegistry
	matches         store.MatchStore
	registryTimeout time.Duration
	logger          *log.Logger
	now             func() time.Time
}

func NewMatcher(cfg config.MatcherConfig, registry store.ProcessorRegistry, matches store.MatchStore, logger *log.Logger) (*Matcher, error) {
	timeout, err := time.ParseDuration(cfg.RegistryTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid registry_timeout %q: %w", cfg.RegistryTimeout, err)
	}
	return &Matcher{
		cfg:             cfg,
		scorer:          NewScorer(cfg),
		registry:        registry,
		matches:         matches,
		registryTimeout: timeout,
		logger:          logger,
		now:             time.Now,
	}, nil
}

// Match scores every registry candidate near the lot, keeps the positive
// scores sorted descending, truncates to the configured top-N, persists
// the ranking keyed by lot id and returns it.
//
// A registry failure fails the whole request with a RegistryError rather
// than returning an empty ranking, so callers can tell "no processors
// matched" apart from "lookup failed".
func (m *Matcher) Match(ctx context.Context, lot *models.FeedstockLot) ([]models.ProcessorMatch, error) {
	if err := lot.Validate(); err != nil {
		return nil, err
	}

	fetchCtx, cancel := context.WithTimeout(ctx, m.registryTimeout)
	defer cancel()
	candidates, err := m.registry.FindCandidates(fetchCtx, lot.Location, m.cfg.MaxDistanceKm, OutputFor(lot.Type))
	if err != nil {
		return nil, &RegistryError{Err: err}
	}

	now := m.now()
	scored := make([]models.ProcessorMatch, len(candidates))
	var wg sync.WaitGroup
	for i := range candidates {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			scored[i] = m.scorer.Score(now, lot, &candidates[i])
		}(i)
	}
	wg.Wait()

	ranked := scored[:0]
	for _, s := range scored {
		if s.Score > 0 {
			ranked = append(ranked, s)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	if len(ranked) > m.cfg.TopN {
		ranked = ranked[:m.cfg.TopN]
	}

	if err := m.matches.SaveMatches(ctx, lot.ID, ranked); err != nil {
		return nil, fmt.Errorf("failed to persist matches for lot %s: %w", lot.ID, err)
	}

	m.logger.Printf("Lot %s matched against %d candidates, %d ranked", lot.ID, len(candidates), len(ranked))
	return ranked, nil
}

// Matches returns the previously persisted ranking for the lot.
func (m *Matcher) Matches(ctx context.Context, lotID string) ([]models.ProcessorMatch, error) {
	return m.matches.GetMatches(ctx, lotID)
}
