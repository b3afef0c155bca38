// Package vaultstate encodes the legal vault lifecycle graph.
//
//	ACTIVE -> GRACE -> INHERITABLE -> CLAIMED
//	  ^---------'
//
// GRACE -> ACTIVE happens only on a proven liveness attestation. CLAIMED is terminal.
package vaultstate

import (
	"fmt"

	"github.com/dtroode/heirkeeper-server/internal/model"
)

var allowed = map[model.VaultState][]model.VaultState{
	model.VaultStateActive:      {model.VaultStateGrace},
	model.VaultStateGrace:       {model.VaultStateActive, model.VaultStateInheritable},
	model.VaultStateInheritable: {model.VaultStateClaimed},
	model.VaultStateClaimed:     {},
}

// IllegalTransitionError is returned for an edge outside the lifecycle graph.
type IllegalTransitionError struct {
	From model.VaultState
	To   model.VaultState
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal vault state transition %s -> %s", e.From, e.To)
}

func (e *IllegalTransitionError) Unwrap() error {
	return model.ErrIllegalTransition
}

// ValidateTransition returns nil if current == target or the edge is allowed.
// It must be called before the new state is persisted, inside the same transaction.
func ValidateTransition(current, target model.VaultState) error {
	if current == target {
		return nil
	}
	for _, next := range allowed[current] {
		if next == target {
			return nil
		}
	}
	return &IllegalTransitionError{From: current, To: target}
}

// Transition validates the edge and returns the error already classified as a state violation.
func Transition(current, target model.VaultState) error {
	if err := ValidateTransition(current, target); err != nil {
		return model.NewErrStateViolation(err)
	}
	return nil
}
