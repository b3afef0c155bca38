package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/heirkeeper-server/internal/logger"
	"github.com/dtroode/heirkeeper-server/internal/model"
	"github.com/dtroode/heirkeeper-server/internal/vaultstate"
)

const (
	// MaxUnlockFailures is how many failures within FailureWindow trigger the cooldown.
	MaxUnlockFailures = 5
	// FailureWindow is both the rolling window for counting failures and the cooldown length.
	FailureWindow = 15 * time.Minute
)

// Unlock implements the owner liveness challenge/response protocol.
type Unlock struct {
	transactor model.Transactor
	clock      Clock
	logger     *logger.Logger
}

func NewUnlock(transactor model.Transactor, clock Clock, logger *logger.Logger) *Unlock {
	return &Unlock{
		transactor: transactor,
		clock:      clock,
		logger:     logger,
	}
}

// IssueChallenge creates a single-use nonce for the owner's vault and returns it with the current counter.
func (s *Unlock) IssueChallenge(ctx context.Context, ownerID uuid.UUID) (model.IssuedChallenge, error) {
	var issued model.IssuedChallenge

	err := s.transactor.WithinTx(ctx, func(ctx context.Context, tx model.Tx) error {
		now := s.clock.Now()

		vault, err := lockOwnerVault(ctx, tx, ownerID)
		if err != nil {
			return err
		}
		if !vault.AcceptsOwnerChanges() {
			return model.NewErrStateViolation(model.ErrVaultLocked)
		}
		if until, ok := cooldownUntil(vault, now); ok {
			return model.NewErrRateLimited(until)
		}

		challenge, err := issueChallenge(ctx, tx, vault.ID, ownerID, model.ChallengePurposeUnlock, now)
		if err != nil {
			return err
		}

		issued = model.IssuedChallenge{
			ChallengeID:          challenge.ID,
			Challenge:            challenge.Challenge,
			ExpiresAt:            challenge.ExpiresAt,
			CurrentUnlockCounter: vault.UnlockCounter,
		}
		return nil
	})
	if err != nil {
		return model.IssuedChallenge{}, err
	}

	return issued, nil
}

// SubmitAttestation accepts a liveness proof bound to an issued challenge and the current counter.
// The attestation is stored as opaque bytes; acceptance rests on the challenge and counter checks.
func (s *Unlock) SubmitAttestation(ctx context.Context, params model.SubmitAttestationParams) (model.AttestationResult, error) {
	blob, err := decodeOpaque("attestation", params.Attestation)
	if err != nil {
		return model.AttestationResult{}, err
	}

	var result model.AttestationResult

	err = s.transactor.WithinTx(ctx, func(ctx context.Context, tx model.Tx) error {
		now := s.clock.Now()

		vault, err := lockOwnerVault(ctx, tx, params.OwnerID)
		if err != nil {
			return err
		}

		challenge, err := checkChallenge(ctx, tx, params.ChallengeID, vault.ID, params.OwnerID, model.ChallengePurposeUnlock, now)
		if err != nil {
			return err
		}
		if params.UnlockCounter != vault.UnlockCounter {
			return model.NewErrReplayRejected(model.ErrCounterMismatch)
		}
		if err := vaultstate.Transition(vault.State, model.VaultStateActive); err != nil {
			return err
		}

		from := vault.State
		vault.State = model.VaultStateActive
		vault.UnlockCounter++
		vault.LastSuccessfulUnlockAt = &now
		vault.MissedIntervals = 0
		vault.UnlockFailureCount = 0
		vault.GraceStartedAt = nil
		vault.UpdatedAt = now

		if err := tx.Challenges().MarkUsed(ctx, challenge.ID); err != nil {
			if errors.Is(err, model.ErrNotFound) {
				return model.NewErrReplayRejected(model.ErrChallengeUsed)
			}
			return fmt.Errorf("failed to mark challenge used: %w", err)
		}
		if err := tx.Vaults().Update(ctx, vault); err != nil {
			return fmt.Errorf("failed to update vault: %w", err)
		}

		err = tx.Attestations().Create(ctx, model.UnlockAttestation{
			ID:              uuid.New(),
			VaultID:         vault.ID,
			ChallengeID:     challenge.ID,
			ActorID:         params.OwnerID,
			Kind:            model.AttestationKindUnlock,
			AttestationBlob: blob,
			IPAddress:       params.Meta.IPAddress,
			UserAgent:       params.Meta.UserAgent,
			CreatedAt:       now,
		})
		if errors.Is(err, model.ErrChallengeUsed) {
			return model.NewErrReplayRejected(err)
		}
		if err != nil {
			return fmt.Errorf("failed to record attestation: %w", err)
		}

		err = LogIntent(ctx, tx, model.AuditEvent{
			ActorType:  model.ActorOwner,
			ActorID:    params.OwnerID,
			TargetType: model.TargetVault,
			TargetID:   vault.ID,
			EventType:  model.EventVaultUnlockAttested,
			Payload: map[string]any{
				"from":          from,
				"to":            vault.State,
				"unlockCounter": vault.UnlockCounter,
				"challengeId":   challenge.ID,
			},
		}, now)
		if err != nil {
			return err
		}

		result = model.AttestationResult{
			UnlockCounter:          vault.UnlockCounter,
			State:                  vault.State,
			LastSuccessfulUnlockAt: now,
		}
		return nil
	})
	if err != nil {
		return model.AttestationResult{}, err
	}

	s.logger.Info("Unlock service: attestation accepted", "owner_id", params.OwnerID, "unlock_counter", result.UnlockCounter)
	return result, nil
}

// ReportFailure records a failed local unlock. It only touches the failure bookkeeping.
func (s *Unlock) ReportFailure(ctx context.Context, ownerID uuid.UUID) (model.FailureReport, error) {
	var report model.FailureReport

	err := s.transactor.WithinTx(ctx, func(ctx context.Context, tx model.Tx) error {
		now := s.clock.Now()

		vault, err := lockOwnerVault(ctx, tx, ownerID)
		if err != nil {
			return err
		}

		if vault.LastFailureAt == nil || now.Sub(*vault.LastFailureAt) >= FailureWindow {
			vault.UnlockFailureCount = 0
		}
		vault.UnlockFailureCount++
		vault.LastFailureAt = &now
		vault.UpdatedAt = now

		if err := tx.Vaults().Update(ctx, vault); err != nil {
			return fmt.Errorf("failed to update vault: %w", err)
		}

		report = model.FailureReport{FailureCount: vault.UnlockFailureCount}
		if until, ok := cooldownUntil(vault, now); ok {
			report.RateLimited = true
			report.CooldownUntil = &until
		}

		return LogIntent(ctx, tx, model.AuditEvent{
			ActorType:  model.ActorOwner,
			ActorID:    ownerID,
			TargetType: model.TargetVault,
			TargetID:   vault.ID,
			EventType:  model.EventVaultUnlockFailed,
			Payload: map[string]any{
				"failureCount": report.FailureCount,
				"rateLimited":  report.RateLimited,
			},
		}, now)
	})
	if err != nil {
		return model.FailureReport{}, err
	}

	if report.RateLimited {
		s.logger.Warn("Unlock service: owner rate limited", "owner_id", ownerID, "failures", report.FailureCount)
	}
	return report, nil
}

// cooldownUntil reports whether the vault is inside a failure cooldown and when it ends.
func cooldownUntil(vault model.Vault, now time.Time) (time.Time, bool) {
	if vault.LastFailureAt == nil || vault.UnlockFailureCount < MaxUnlockFailures {
		return time.Time{}, false
	}
	until := vault.LastFailureAt.Add(FailureWindow)
	if !now.Before(until) {
		return time.Time{}, false
	}
	return until, true
}

func lockOwnerVault(ctx context.Context, tx model.Tx, ownerID uuid.UUID) (model.Vault, error) {
	vault, err := tx.Vaults().GetByOwnerIDForUpdate(ctx, ownerID)
	if errors.Is(err, model.ErrNotFound) {
		return model.Vault{}, model.NewErrNotFound(model.ErrVaultNotFound)
	}
	if err != nil {
		return model.Vault{}, fmt.Errorf("failed to get vault: %w", err)
	}
	return vault, nil
}
