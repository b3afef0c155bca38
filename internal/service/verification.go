package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"

	"github.com/google/uuid"

	"github.com/dtroode/heirkeeper-server/internal/logger"
	"github.com/dtroode/heirkeeper-server/internal/model"
)

const verificationCodeDigits = 6

// Verification confirms heir email ownership with a one-time code kept in the pending registration store.
type Verification struct {
	transactor model.Transactor
	notifier   model.Notifier
	clock      Clock
	logger     *logger.Logger
}

func NewVerification(transactor model.Transactor, notifier model.Notifier, clock Clock, logger *logger.Logger) *Verification {
	return &Verification{
		transactor: transactor,
		notifier:   notifier,
		clock:      clock,
		logger:     logger,
	}
}

// Begin issues a fresh code to the heir's email. Already verified heirs are left alone.
// After too many wrong codes a new one is refused until the invalidated code would have expired.
func (s *Verification) Begin(ctx context.Context, heirID uuid.UUID) error {
	code, err := newVerificationCode()
	if err != nil {
		return err
	}

	var (
		heir model.Heir
		sent bool
	)
	err = s.transactor.WithinTx(ctx, func(ctx context.Context, tx model.Tx) error {
		var err error
		heir, err = getHeir(ctx, tx, heirID)
		if err != nil {
			return err
		}
		if heir.IsVerified {
			return nil
		}

		now := s.clock.Now()
		pending, err := tx.Registrations().GetByEmail(ctx, heir.Email)
		if err != nil && !errors.Is(err, model.ErrNotFound) {
			return fmt.Errorf("failed to get pending registration: %w", err)
		}
		if err == nil && pending.LockedOut(now) {
			return tooManyCodeAttempts(pending)
		}

		sent = true
		return tx.Registrations().Upsert(ctx, model.PendingRegistration{
			Email:     heir.Email,
			OTPHash:   hashCode(code),
			ExpiresAt: now.Add(model.PendingRegistrationTTL),
		})
	})
	if err != nil {
		return err
	}
	if !sent {
		return nil
	}

	if err := s.notifier.NotifyHeir(ctx, heir, model.Notice{Kind: model.NoticeVerificationCode, Code: code}); err != nil {
		return fmt.Errorf("failed to deliver verification code: %w", err)
	}

	return nil
}

// Confirm checks the code, consumes it and marks the heir verified.
//
// Every wrong code is counted. The MaxVerificationAttempts-th miss consumes the code, so even the
// right one is refused afterwards and a new code must be requested.
func (s *Verification) Confirm(ctx context.Context, heirID uuid.UUID, code string) error {
	if len(code) != verificationCodeDigits {
		return model.NewErrValidation("code must have 6 digits")
	}

	// rejected is returned after commit so the failed attempt is persisted.
	var rejected error

	err := s.transactor.WithinTx(ctx, func(ctx context.Context, tx model.Tx) error {
		now := s.clock.Now()

		heir, err := getHeir(ctx, tx, heirID)
		if err != nil {
			return err
		}

		pending, err := tx.Registrations().GetByEmail(ctx, heir.Email)
		if errors.Is(err, model.ErrNotFound) {
			return model.NewErrReplayRejected(model.ErrInvalidCode)
		}
		if err != nil {
			return fmt.Errorf("failed to get pending registration: %w", err)
		}
		if pending.LockedOut(now) {
			return tooManyCodeAttempts(pending)
		}
		if pending.Consumed || !now.Before(pending.ExpiresAt) {
			return model.NewErrReplayRejected(model.ErrInvalidCode)
		}
		if subtle.ConstantTimeCompare(pending.OTPHash, hashCode(code)) != 1 {
			attempts, err := tx.Registrations().RecordFailedAttempt(ctx, heir.Email)
			if err != nil {
				return fmt.Errorf("failed to record verification attempt: %w", err)
			}
			if attempts < model.MaxVerificationAttempts {
				rejected = model.NewErrReplayRejected(model.ErrInvalidCode)
				return nil
			}

			if err := tx.Registrations().Consume(ctx, heir.Email); err != nil {
				return fmt.Errorf("failed to invalidate pending registration: %w", err)
			}
			s.logger.Warn("Verification service: code invalidated after repeated misses", "heir_id", heir.ID, "attempts", attempts)
			rejected = tooManyCodeAttempts(pending)
			return nil
		}

		err = tx.Registrations().Consume(ctx, heir.Email)
		if errors.Is(err, model.ErrNotFound) {
			return model.NewErrReplayRejected(model.ErrInvalidCode)
		}
		if err != nil {
			return fmt.Errorf("failed to consume pending registration: %w", err)
		}
		if err := tx.Heirs().MarkVerified(ctx, heir.ID); err != nil {
			return fmt.Errorf("failed to mark heir verified: %w", err)
		}

		return LogIntent(ctx, tx, model.AuditEvent{
			ActorType:  model.ActorHeir,
			ActorID:    heir.ID,
			TargetType: model.TargetHeir,
			TargetID:   heir.ID,
			EventType:  model.EventHeirVerified,
		}, now)
	})
	if err != nil {
		return err
	}
	if rejected != nil {
		return rejected
	}

	s.logger.Info("Verification service: heir verified", "heir_id", heirID)
	return nil
}

func tooManyCodeAttempts(pending model.PendingRegistration) error {
	return &model.Error{Kind: model.KindRateLimited, Err: model.ErrTooManyCodeAttempts, RetryAfter: pending.ExpiresAt}
}

func newVerificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("failed to generate verification code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func hashCode(code string) []byte {
	sum := sha256.Sum256([]byte(code))
	return sum[:]
}

func getHeir(ctx context.Context, tx model.Tx, heirID uuid.UUID) (model.Heir, error) {
	heir, err := tx.Heirs().GetByID(ctx, heirID)
	if errors.Is(err, model.ErrNotFound) {
		return model.Heir{}, model.NewErrNotFound(model.ErrHeirNotFound)
	}
	if err != nil {
		return model.Heir{}, fmt.Errorf("failed to get heir: %w", err)
	}
	return heir, nil
}
