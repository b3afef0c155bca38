package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/heirkeeper-server/internal/logger"
	"github.com/dtroode/heirkeeper-server/internal/model"
	"github.com/dtroode/heirkeeper-server/internal/vaultstate"
)

const (
	day = 24 * time.Hour

	// DefaultGracePeriod is how long a vault stays in GRACE before it becomes inheritable.
	DefaultGracePeriod = 30 * day
	// DefaultGraceAfterIntervals is how many missed intervals move an active vault to GRACE.
	DefaultGraceAfterIntervals = 3
)

type sweepOutcome int

const (
	outcomeUnchanged sweepOutcome = iota
	outcomeSkipped
	outcomeReminded
	outcomeEnteredGrace
	outcomeInheritable
)

// LivenessConfig holds sweep thresholds.
type LivenessConfig struct {
	GracePeriod         time.Duration
	GraceAfterIntervals int
}

// Liveness escalates vaults whose owners stopped attesting.
type Liveness struct {
	transactor model.Transactor
	notifier   model.Notifier
	clock      Clock
	cfg        LivenessConfig
	logger     *logger.Logger
}

func NewLiveness(transactor model.Transactor, notifier model.Notifier, clock Clock, cfg LivenessConfig, logger *logger.Logger) *Liveness {
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = DefaultGracePeriod
	}
	if cfg.GraceAfterIntervals <= 0 {
		cfg.GraceAfterIntervals = DefaultGraceAfterIntervals
	}

	return &Liveness{
		transactor: transactor,
		notifier:   notifier,
		clock:      clock,
		cfg:        cfg,
		logger:     logger,
	}
}

// Sweep processes every ACTIVE or GRACE vault in its own transaction.
// A vault that fails is counted and logged; the sweep continues with the next one.
func (s *Liveness) Sweep(ctx context.Context) (model.SweepReport, error) {
	var report model.SweepReport

	var ids []uuid.UUID
	err := s.transactor.WithinTx(ctx, func(ctx context.Context, tx model.Tx) error {
		var err error
		ids, err = tx.Vaults().ListIDsByState(ctx, model.VaultStateActive, model.VaultStateGrace)
		return err
	})
	if err != nil {
		return report, fmt.Errorf("failed to list vaults for sweep: %w", err)
	}

	now := s.clock.Now()
	for _, id := range ids {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		report.Scanned++

		outcome, notices, err := s.processVault(ctx, id, now)
		if err != nil {
			report.Failed++
			s.logger.Error("Liveness service: failed to process vault", "vault_id", id, "error", err)
			continue
		}

		switch outcome {
		case outcomeSkipped:
			report.Skipped++
		case outcomeReminded:
			report.Reminded++
		case outcomeEnteredGrace:
			report.EnteredGrace++
		case outcomeInheritable:
			report.BecameInheritable++
		}

		dispatch(ctx, s.notifier, s.logger, notices)
	}

	return report, nil
}

func (s *Liveness) processVault(ctx context.Context, id uuid.UUID, now time.Time) (sweepOutcome, []outgoing, error) {
	var (
		outcome sweepOutcome
		notices []outgoing
	)

	err := s.transactor.WithinTx(ctx, func(ctx context.Context, tx model.Tx) error {
		outcome, notices = outcomeUnchanged, nil

		vault, err := tx.Vaults().GetForUpdate(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to get vault: %w", err)
		}
		if vault.State != model.VaultStateActive && vault.State != model.VaultStateGrace {
			outcome = outcomeSkipped
			return nil
		}
		if vault.LastSuccessfulUnlockAt == nil {
			outcome = outcomeSkipped
			return nil
		}

		missed := MissedIntervals(*vault.LastSuccessfulUnlockAt, now, vault.InactivityPeriodDays)
		changed := missed != vault.MissedIntervals
		vault.MissedIntervals = missed

		switch {
		case vault.State == model.VaultStateGrace && vault.GraceStartedAt == nil:
			// The grace clock restarts so the vault still reaches INHERITABLE.
			s.logger.Error("Liveness service: grace vault without grace start, restarting grace", "vault_id", vault.ID)
			vault.GraceStartedAt = &now
			changed = true

		case vault.State == model.VaultStateGrace && now.Sub(*vault.GraceStartedAt) >= s.cfg.GracePeriod:
			if err := s.escalate(ctx, tx, &vault, model.VaultStateInheritable, model.EventVaultInheritable, now); err != nil {
				return err
			}
			heirs, err := tx.Heirs().ListByOwnerID(ctx, vault.OwnerID)
			if err != nil {
				return fmt.Errorf("failed to list heirs: %w", err)
			}
			outcome = outcomeInheritable
			notices = append(notices, ownerNotice(vault.OwnerID, model.Notice{Kind: model.NoticeInheritableOwner, VaultID: vault.ID, MissedIntervals: missed}))
			notices = append(notices, heirNotices(heirs, model.Notice{Kind: model.NoticeInheritableHeir, VaultID: vault.ID})...)
			return nil

		case vault.State == model.VaultStateActive && missed >= s.cfg.GraceAfterIntervals:
			vault.GraceStartedAt = &now
			if err := s.escalate(ctx, tx, &vault, model.VaultStateGrace, model.EventVaultGraceEntered, now); err != nil {
				return err
			}
			heirs, err := tx.Heirs().ListByOwnerID(ctx, vault.OwnerID)
			if err != nil {
				return fmt.Errorf("failed to list heirs: %w", err)
			}
			outcome = outcomeEnteredGrace
			notices = append(notices, ownerNotice(vault.OwnerID, model.Notice{Kind: model.NoticeGraceStartedOwner, VaultID: vault.ID, MissedIntervals: missed}))
			notices = append(notices, heirNotices(heirs, model.Notice{Kind: model.NoticeGraceStartedHeir, VaultID: vault.ID})...)
			return nil

		case vault.State == model.VaultStateActive && missed >= 1:
			outcome = outcomeReminded
			notices = append(notices, ownerNotice(vault.OwnerID, model.Notice{Kind: model.NoticeLivenessReminder, VaultID: vault.ID, MissedIntervals: missed}))
		}

		if !changed {
			return nil
		}
		vault.UpdatedAt = now
		if err := tx.Vaults().Update(ctx, vault); err != nil {
			return fmt.Errorf("failed to update vault: %w", err)
		}
		return nil
	})
	if err != nil {
		return outcomeUnchanged, nil, err
	}

	return outcome, notices, nil
}

// escalate moves vault to target, persists it and queues the audit intent.
func (s *Liveness) escalate(ctx context.Context, tx model.Tx, vault *model.Vault, target model.VaultState, event model.EventType, now time.Time) error {
	if err := vaultstate.Transition(vault.State, target); err != nil {
		return err
	}

	from := vault.State
	vault.State = target
	vault.UpdatedAt = now

	if err := tx.Vaults().Update(ctx, *vault); err != nil {
		return fmt.Errorf("failed to update vault: %w", err)
	}

	return LogIntent(ctx, tx, model.AuditEvent{
		ActorType:  model.ActorSystem,
		ActorID:    model.SystemActorID,
		TargetType: model.TargetVault,
		TargetID:   vault.ID,
		EventType:  event,
		Payload: map[string]any{
			"from":            from,
			"to":              target,
			"missedIntervals": vault.MissedIntervals,
		},
	}, now)
}

// MissedIntervals returns whole inactivity periods elapsed since lastUnlock.
func MissedIntervals(lastUnlock, now time.Time, periodDays int) int {
	if periodDays <= 0 {
		periodDays = model.DefaultInactivityPeriodDays
	}
	if now.Before(lastUnlock) {
		return 0
	}
	days := int(now.Sub(lastUnlock) / day)
	return days / periodDays
}
