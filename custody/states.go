// Package custody manages the chain-of-custody lifecycle of entrusted
// assets: a fixed directed state graph, append-only hash-evidenced log
// entries, structural integrity verification and Merkle audit export.
package custody

import (
	"fmt"

	"reloop/internal/models"
)

// transitions is the authoritative state graph. Any pair not listed here
// is an illegal transition, never silently accepted.
var transitions = map[models.ProcessState][]models.ProcessState{
	models.StateEntrusted:          {models.StateTransportPickup},
	models.StateTransportPickup:    {models.StateReceivedAtFacility},
	models.StateReceivedAtFacility: {models.StateQAVerified},
	models.StateQAVerified:         {models.StateSorted},
	models.StateSorted:             {models.StateProcessingStart},
	models.StateProcessingStart:    {models.StateDigested, models.StateProcessed},
	models.StateDigested:           {models.StateOutputGenerated},
	models.StateProcessed:          {models.StateOutputGenerated, models.StateDisposed},
	models.StateOutputGenerated:    {models.StateDisposed},
	models.StateDisposed:           {},
}

// custodyTransferStates are the states whose entry reassigns custody to
// the acting actor.
var custodyTransferStates = map[models.ProcessState]bool{
	models.StateTransportPickup:    true,
	models.StateReceivedAtFacility: true,
}

// AllowedSuccessors returns the legal next states from the given state.
func AllowedSuccessors(from models.ProcessState) []models.ProcessState {
	return transitions[from]
}

// CanTransition reports whether from→to is in the state graph.
func CanTransition(from, to models.ProcessState) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsCustodyTransfer reports whether entering the state hands the asset to
// a new custodian.
func IsCustodyTransfer(state models.ProcessState) bool {
	return custodyTransferStates[state]
}

// InvalidTransitionError marks an attempted transition not present in the
// state graph. Non-retryable: the caller must reconcile the out-of-order
// physical event, not retry.
type InvalidTransitionError struct {
	From models.ProcessState
	To   models.ProcessState
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid custody transition %s -> %s", e.From, e.To)
}
