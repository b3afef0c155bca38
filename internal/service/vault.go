package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dtroode/heirkeeper-server/internal/envelope"
	"github.com/dtroode/heirkeeper-server/internal/logger"
	"github.com/dtroode/heirkeeper-server/internal/model"
)

const (
	maxInactivityPeriodDays = 365
	defaultAuditTrailLimit  = 100
)

// Vault provisions vaults and serves the owner dashboard.
type Vault struct {
	transactor model.Transactor
	sealer     *envelope.Sealer
	clock      Clock
	logger     *logger.Logger
}

func NewVault(transactor model.Transactor, sealer *envelope.Sealer, clock Clock, logger *logger.Logger) *Vault {
	return &Vault{
		transactor: transactor,
		sealer:     sealer,
		clock:      clock,
		logger:     logger,
	}
}

// Provision creates the owner's single vault in ACTIVE with a zero counter and no liveness baseline.
func (s *Vault) Provision(ctx context.Context, params model.CreateVaultParams) (model.Vault, error) {
	if err := requireCanonical("encryptedVaultKey", params.EncryptedVaultKey); err != nil {
		return model.Vault{}, err
	}
	if err := requireCanonical("encryptedRecoveryKey", params.EncryptedRecoveryKey); err != nil {
		return model.Vault{}, err
	}
	if err := requireCanonical("salt", params.Salt); err != nil {
		return model.Vault{}, err
	}

	period := params.InactivityPeriodDays
	if period == 0 {
		period = model.DefaultInactivityPeriodDays
	}
	if period < 1 || period > maxInactivityPeriodDays {
		return model.Vault{}, model.NewErrValidation(fmt.Sprintf("inactivityPeriodDays must be between 1 and %d", maxInactivityPeriodDays))
	}

	now := s.clock.Now()
	vault := model.Vault{
		ID:                   uuid.New(),
		OwnerID:              params.OwnerID,
		State:                model.VaultStateActive,
		EncryptedVaultKey:    params.EncryptedVaultKey,
		EncryptedRecoveryKey: params.EncryptedRecoveryKey,
		Salt:                 params.Salt,
		InactivityPeriodDays: period,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	err := s.transactor.WithinTx(ctx, func(ctx context.Context, tx model.Tx) error {
		if err := tx.Vaults().Create(ctx, vault); err != nil {
			if errors.Is(err, model.ErrVaultExists) {
				return model.NewErrConflict(model.ErrVaultExists)
			}
			return fmt.Errorf("failed to create vault: %w", err)
		}

		return LogIntent(ctx, tx, model.AuditEvent{
			ActorType:  model.ActorOwner,
			ActorID:    params.OwnerID,
			TargetType: model.TargetVault,
			TargetID:   vault.ID,
			EventType:  model.EventVaultCreated,
			Payload:    map[string]any{"inactivityPeriodDays": period},
		}, now)
	})
	if err != nil {
		return model.Vault{}, err
	}

	s.logger.Info("Vault service: vault provisioned", "vault_id", vault.ID, "owner_id", vault.OwnerID)
	return vault, nil
}

// Status returns the dashboard view of the owner's vault.
func (s *Vault) Status(ctx context.Context, ownerID uuid.UUID) (model.VaultStatus, error) {
	var vault model.Vault

	err := s.transactor.WithinTx(ctx, func(ctx context.Context, tx model.Tx) error {
		var err error
		vault, err = getOwnerVault(ctx, tx, ownerID)
		return err
	})
	if err != nil {
		return model.VaultStatus{}, err
	}

	return model.VaultStatus{
		VaultID:                vault.ID,
		State:                  vault.State,
		Banner:                 BannerFor(vault),
		UnlockCounter:          vault.UnlockCounter,
		MissedIntervals:        vault.MissedIntervals,
		InactivityPeriodDays:   vault.InactivityPeriodDays,
		LastSuccessfulUnlockAt: vault.LastSuccessfulUnlockAt,
		GraceStartedAt:         vault.GraceStartedAt,
		ClaimedAt:              vault.ClaimedAt,
	}, nil
}

// BannerFor derives the owner-facing hint from state and missed intervals.
func BannerFor(vault model.Vault) model.VaultBanner {
	switch vault.State {
	case model.VaultStateClaimed:
		return model.BannerClaimed
	case model.VaultStateInheritable:
		return model.BannerInheritable
	case model.VaultStateGrace:
		return model.BannerGrace
	}
	if vault.MissedIntervals >= 1 {
		return model.BannerReminder
	}
	return model.BannerNone
}

// ShareHeirKey stores the vault key wrapped for one linked heir inside the sealed heir map.
func (s *Vault) ShareHeirKey(ctx context.Context, params model.ShareHeirKeyParams) error {
	if err := requireCanonical("wrappedVaultKey", params.WrappedVaultKey); err != nil {
		return err
	}

	err := s.transactor.WithinTx(ctx, func(ctx context.Context, tx model.Tx) error {
		now := s.clock.Now()

		vault, err := lockOwnerVault(ctx, tx, params.OwnerID)
		if err != nil {
			return err
		}
		if !vault.AcceptsOwnerChanges() {
			return model.NewErrStateViolation(model.ErrVaultLocked)
		}

		heir, err := tx.Heirs().GetByID(ctx, params.HeirID)
		if errors.Is(err, model.ErrNotFound) {
			return model.NewErrNotFound(model.ErrHeirNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to get heir: %w", err)
		}
		if heir.OwnerID == nil || *heir.OwnerID != params.OwnerID {
			return model.NewErrNotFound(model.ErrHeirNotFound)
		}

		shares := map[string]string{}
		if vault.EncryptedVaultKeyByHeir != "" {
			if err := s.sealer.OpenJSON(vault.EncryptedVaultKeyByHeir, &shares); err != nil {
				return fmt.Errorf("failed to open heir key map: %w", err)
			}
		}
		shares[heir.ID.String()] = params.WrappedVaultKey

		sealed, err := s.sealer.SealJSON(shares)
		if err != nil {
			return fmt.Errorf("failed to seal heir key map: %w", err)
		}
		vault.EncryptedVaultKeyByHeir = sealed
		vault.UpdatedAt = now

		if err := tx.Vaults().Update(ctx, vault); err != nil {
			return fmt.Errorf("failed to update vault: %w", err)
		}

		return LogIntent(ctx, tx, model.AuditEvent{
			ActorType:  model.ActorOwner,
			ActorID:    params.OwnerID,
			TargetType: model.TargetVault,
			TargetID:   vault.ID,
			EventType:  model.EventVaultHeirKeyShared,
			Payload:    map[string]any{"heirId": heir.ID},
		}, now)
	})
	if err != nil {
		return err
	}

	s.logger.Info("Vault service: heir key shared", "owner_id", params.OwnerID, "heir_id", params.HeirID)
	return nil
}

// AuditTrail returns the newest audit entries targeting the owner's vault.
func (s *Vault) AuditTrail(ctx context.Context, ownerID uuid.UUID, limit int) ([]model.AuditLogEntry, error) {
	limit = clampLimit(limit, defaultAuditTrailLimit)

	var entries []model.AuditLogEntry
	err := s.transactor.WithinTx(ctx, func(ctx context.Context, tx model.Tx) error {
		vault, err := getOwnerVault(ctx, tx, ownerID)
		if err != nil {
			return err
		}

		entries, err = tx.AuditLog().ListByTarget(ctx, model.TargetVault, vault.ID, limit)
		if err != nil {
			return fmt.Errorf("failed to list audit log: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return entries, nil
}

func getOwnerVault(ctx context.Context, tx model.Tx, ownerID uuid.UUID) (model.Vault, error) {
	vault, err := tx.Vaults().GetByOwnerID(ctx, ownerID)
	if errors.Is(err, model.ErrNotFound) {
		return model.Vault{}, model.NewErrNotFound(model.ErrVaultNotFound)
	}
	if err != nil {
		return model.Vault{}, fmt.Errorf("failed to get vault: %w", err)
	}
	return vault, nil
}
