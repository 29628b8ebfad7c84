package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"reloop/config"
	"reloop/custody"
	"reloop/internal/messaging/consumer"
	"reloop/internal/models"
	ledger "reloop/ledger/client"
	"reloop/ledger/types"
	"reloop/storage/store"
)

// Worker consumes custody events in batches and anchors the affected
// assets' Merkle roots on the ledger
type Worker struct {
	workerConfig       config.WorkerConfig
	batchTimeout       time.Duration // Parsed from workerConfig.BatchTimeout
	consumerRetryDelay time.Duration // Parsed from workerConfig.ConsumerRetryDelay
	ledgerTimeout      time.Duration // Parsed from workerConfig.LedgerTimeout

	maxAnchorRetries int // Business rule for maximum anchor retries per asset
	logger           *log.Logger
	store            store.Store
	consumer         consumer.Consumer
	ledgerClient     ledger.LedgerClient
}

// New creates a new Worker instance
func New(cfg config.WorkerConfig, maxAnchorRetries int, logger *log.Logger, s store.Store, c consumer.Consumer, lc ledger.LedgerClient) *Worker {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}

	batchTimeout, err := time.ParseDuration(cfg.BatchTimeout)
	if err != nil {
		logger.Printf("Warning: Invalid batch_timeout '%s', using default 1s", cfg.BatchTimeout)
		batchTimeout = 1 * time.Second
	}

	consumerRetryDelay, err := time.ParseDuration(cfg.ConsumerRetryDelay)
	if err != nil {
		logger.Printf("Warning: Invalid consumer_retry_delay '%s', using default 5s", cfg.ConsumerRetryDelay)
		consumerRetryDelay = 5 * time.Second
	}

	ledgerTimeout, err := time.ParseDuration(cfg.LedgerTimeout)
	if err != nil {
		logger.Printf("Warning: Invalid ledger_timeout '%s', using default 15s", cfg.LedgerTimeout)
		ledgerTimeout = 15 * time.Second
	}

	return &Worker{
		workerConfig:       cfg,
		batchTimeout:       batchTimeout,
		consumerRetryDelay: consumerRetryDelay,
		ledgerTimeout:      ledgerTimeout,
		maxAnchorRetries:   maxAnchorRetries,
		logger:             logger,
		store:              s,
		consumer:           c,
		ledgerClient:       lc,
	}
}

// Run starts the worker pool
func (w *Worker) Run(ctx context.Context) {
	w.logger.Printf("Starting worker pool with concurrency: %d, BatchSize: %d, BatchTimeout: %s",
		w.workerConfig.Concurrency, w.workerConfig.BatchSize, w.batchTimeout)
	var wg sync.WaitGroup
	for i := 0; i < w.workerConfig.Concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			w.logger.Printf("Worker %d started", workerID)
			w.processEventsInBatch(ctx, workerID)
			w.logger.Printf("Worker %d stopped", workerID)
		}(i + 1)
	}
	wg.Wait()
	w.logger.Println("Worker pool stopped.")
}

// processEventsInBatch is the main loop for a worker goroutine
func (w *Worker) processEventsInBatch(ctx context.Context, workerID int) {
	batchEvents := make([]*models.Event, 0, w.workerConfig.BatchSize)
	kafkaAcks := make([]func(success bool), 0, w.workerConfig.BatchSize)
	batchTimer := time.NewTimer(0) // Start with stopped timer
	if !batchTimer.Stop() {
		select {
		case <-batchTimer.C:
		default:
		}
	}

	processBatch := func() {
		if len(batchEvents) == 0 {
			return
		}

		// Stop and drain timer
		if !batchTimer.Stop() {
			select {
			case <-batchTimer.C:
			default:
			}
		}

		w.processAndAckBatch(ctx, workerID, batchEvents, kafkaAcks)

		// Reset for next batch
		batchEvents = make([]*models.Event, 0, w.workerConfig.BatchSize)
		kafkaAcks = make([]func(success bool), 0, w.workerConfig.BatchSize)
	}

	for {
		select {
		case <-ctx.Done():
			w.logger.Printf("Worker %d: Context cancelled, stopping.", workerID)
			if len(kafkaAcks) > 0 {
				for _, ack := range kafkaAcks {
					ack(false)
				}
			}
			return

		case <-batchTimer.C:
			// Batch timeout reached
			processBatch()

		default:
			consumeCtx, consumeCancel := context.WithTimeout(ctx, 100*time.Millisecond)
			event, ack, err := w.consumer.Consume(consumeCtx)
			consumeCancel()

			if err != nil {
				if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
					continue
				}
				// Only log real consumer errors
				w.logger.Printf("Worker %d: Consumer error: %v", workerID, err)
				time.Sleep(w.consumerRetryDelay)
				continue
			}

			if event != nil {
				// Start batch timer on first event
				if len(batchEvents) == 0 {
					batchTimer.Reset(w.batchTimeout)
				}

				batchEvents = append(batchEvents, event)
				kafkaAcks = append(kafkaAcks, ack)

				// Process immediately if batch is full
				if len(batchEvents) >= w.workerConfig.BatchSize {
					processBatch()
				}
			}
		}
	}
}

// processAndAckBatch handles processing and Kafka acknowledgement
func (w *Worker) processAndAckBatch(ctx context.Context, workerID int, batch []*models.Event, acks []func(success bool)) {
	processingErr := w.handleBatch(ctx, batch)

	if processingErr != nil {
		// Anchoring FAILED -> Nack ALL events
		w.logger.Printf("Worker %d: Batch failed: %v (nacking %d events)", workerID, processingErr, len(acks))
		for _, ack := range acks {
			ack(false)
		}
	} else {
		// Anchoring SUCCEEDED -> Ack ALL events
		for _, ack := range acks {
			ack(true)
		}
	}
}

func (w *Worker) handleBatch(ctx context.Context, batch []*models.Event) error {
	if len(batch) == 0 {
		return nil
	}
	batchStart := time.Now()

	// Many events for one asset collapse into a single anchor of its
	// latest root
	assetIDs := make([]string, 0, len(batch))
	seen := make(map[string]bool, len(batch))
	for _, event := range batch {
		if event.AssetID == "" || seen[event.AssetID] {
			continue
		}
		seen[event.AssetID] = true
		assetIDs = append(assetIDs, event.AssetID)
	}
	if len(assetIDs) == 0 {
		return nil // No valid events
	}

	// --- 1. Pre-process anchor status ---
	dbStart := time.Now()
	statuses, err := w.store.GetAndMarkAnchorsProcessing(ctx, assetIDs, w.maxAnchorRetries)
	dbQueryDuration := time.Since(dbStart)

	if err != nil {
		return fmt.Errorf("DB error: GetAndMarkAnchorsProcessing failed: %v", err)
	}

	// Recompute the current Merkle root for every asset still in play
	validAnchors := make(map[string]types.AnchorEntry, len(statuses))
	entries := make([]types.AnchorEntry, 0, len(statuses))

	for assetID, status := range statuses {
		switch status.Status {
		case store.AnchorProcessing:
			history, err := w.store.GetEntries(ctx, assetID)
			if err != nil {
				w.logger.Printf("Failed to load entries for asset %s: %v", assetID, err)
				continue
			}
			hashes := make([]string, len(history))
			for i, e := range history {
				hashes[i] = e.EvidenceHash
			}
			entry := types.AnchorEntry{
				AssetID:    assetID,
				MerkleRoot: custody.MerkleRoot(hashes),
				EntryCount: len(history),
				Timestamp:  time.Now().UTC().Format(time.RFC3339),
			}
			validAnchors[assetID] = entry
			entries = append(entries, entry)
		case store.AnchorFailed:
			// Assets with max retries exceeded are already marked as FAILED by the database
			// No further action needed - their events will be acknowledged and dropped
		}
	}

	// If no valid anchors to submit
	if len(entries) == 0 {
		return nil // Ack Kafka events
	}

	// --- 2. Call ledger client ---
	invokeCtx, cancel := context.WithTimeout(ctx, w.ledgerTimeout)
	defer cancel()
	ledgerStart := time.Now()
	batchProof, results, err := w.ledgerClient.AnchorBatch(invokeCtx, entries)
	ledgerDuration := time.Since(ledgerStart)

	validAssetIDs := func(anchors map[string]types.AnchorEntry) []string {
		ids := make([]string, 0, len(anchors))
		for id := range anchors {
			ids = append(ids, id)
		}
		return ids
	}

	// --- 3. Process results ---
	if err != nil { // Transaction failed
		w.logger.Printf("Ledger error: %v", err)
		if markErr := w.store.MarkAnchorsForRetry(ctx, validAssetIDs(validAnchors), err.Error()); markErr != nil {
			w.logger.Printf("CRITICAL: MarkAnchorsForRetry failed: %v", markErr)
		}
		return fmt.Errorf("AnchorBatch failed: %w", err) // Trigger Nack
	}
	resultsMap := make(map[string]types.AnchorStatusInfo, len(results))
	for _, res := range results {
		resultsMap[res.AssetID] = res
	}

	// Collect completion and failure records for batch updates
	var completions []store.AnchorCompletion
	var failures []store.AnchorFailure

	for assetID, anchor := range validAnchors {
		statusInfo, found := resultsMap[assetID]
		if !found {
			errMsg := fmt.Sprintf("Missing result for asset %s (TxID: %s)", assetID, batchProof.TransactionID)
			failures = append(failures, store.AnchorFailure{
				AssetID:      assetID,
				ErrorMessage: errMsg,
			})
			continue
		}

		switch statusInfo.Status {
		case types.StatusSuccess, types.StatusSkippedDuplicate:
			completions = append(completions, store.AnchorCompletion{
				AssetID:     assetID,
				MerkleRoot:  anchor.MerkleRoot,
				TxID:        batchProof.TransactionID,
				BlockHeight: batchProof.BlockHeight,
			})
		default:
			errMsg := fmt.Sprintf("Contract failed: %s - %s", statusInfo.Status, statusInfo.Message)
			failures = append(failures, store.AnchorFailure{
				AssetID:      assetID,
				ErrorMessage: errMsg,
			})
		}
	}

	dbUpdateStart := time.Now()
	var updateErrors []string

	if len(completions) > 0 {
		if err := w.store.MarkAnchorsCompleted(ctx, completions); err != nil {
			updateErrors = append(updateErrors, fmt.Sprintf("completion update failed: %v", err))
		}
	}

	if len(failures) > 0 {
		if err := w.store.MarkAnchorsFailed(ctx, failures); err != nil {
			updateErrors = append(updateErrors, fmt.Sprintf("failure update failed: %v", err))
		}
	}

	dbUpdateDuration := time.Since(dbUpdateStart)

	totalTime := time.Since(batchStart)
	w.logger.Printf("Batch performance: events=%d, assets=%d, completions=%d, failures=%d, db_query=%v, db_updates=%v, ledger=%v, total=%v",
		len(batch), len(validAnchors), len(completions), len(failures), dbQueryDuration, dbUpdateDuration, ledgerDuration, totalTime)

	if len(updateErrors) > 0 {
		w.logger.Printf("DB update errors: %s", strings.Join(updateErrors, "; "))
	}

	return nil // Anchoring succeeded, Ack Kafka events
}
