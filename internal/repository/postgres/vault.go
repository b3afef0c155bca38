package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dtroode/heirkeeper-server/internal/model"
)

var _ model.VaultStore = (*VaultRepository)(nil)

const vaultColumns = `id, owner_id, state, encrypted_vault_key, encrypted_recovery_key, encrypted_vault_key_by_heir,
	salt, inactivity_period_days, vault_unlock_counter, last_successful_unlock_at, missed_intervals,
	grace_started_at, unlock_failure_count, last_failure_at, claimed_at, created_at, updated_at`

type VaultRepository struct {
	db Querier
}

func NewVaultRepository(db Querier) *VaultRepository {
	return &VaultRepository{
		db: db,
	}
}

func (r *VaultRepository) Create(ctx context.Context, vault model.Vault) error {
	query := `INSERT INTO vaults (id, owner_id, state, encrypted_vault_key, encrypted_recovery_key,
			  encrypted_vault_key_by_heir, salt, inactivity_period_days, vault_unlock_counter, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)`

	_, err := r.db.Exec(ctx, query,
		vault.ID, vault.OwnerID, string(vault.State), vault.EncryptedVaultKey, vault.EncryptedRecoveryKey,
		vault.EncryptedVaultKeyByHeir, vault.Salt, vault.InactivityPeriodDays, vault.UnlockCounter, vault.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.ErrVaultExists
		}
		return fmt.Errorf("failed to create vault: %w", err)
	}

	return nil
}

func (r *VaultRepository) GetByOwnerID(ctx context.Context, ownerID uuid.UUID) (model.Vault, error) {
	query := `SELECT ` + vaultColumns + ` FROM vaults WHERE owner_id = $1`
	return r.getOne(ctx, query, ownerID)
}

func (r *VaultRepository) GetByOwnerIDForUpdate(ctx context.Context, ownerID uuid.UUID) (model.Vault, error) {
	query := `SELECT ` + vaultColumns + ` FROM vaults WHERE owner_id = $1 FOR UPDATE`
	return r.getOne(ctx, query, ownerID)
}

func (r *VaultRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (model.Vault, error) {
	query := `SELECT ` + vaultColumns + ` FROM vaults WHERE id = $1 FOR UPDATE`
	return r.getOne(ctx, query, id)
}

func (r *VaultRepository) ListIDsByState(ctx context.Context, states ...model.VaultState) ([]uuid.UUID, error) {
	names := make([]string, 0, len(states))
	for _, s := range states {
		names = append(names, string(s))
	}

	rows, err := r.db.Query(ctx, `SELECT id FROM vaults WHERE state = ANY($1) ORDER BY created_at`, names)
	if err != nil {
		return nil, fmt.Errorf("failed to list vaults by state: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return ids, nil
}

func (r *VaultRepository) Update(ctx context.Context, vault model.Vault) error {
	query := `UPDATE vaults SET
			  state = $2, encrypted_vault_key_by_heir = $3, vault_unlock_counter = $4,
			  last_successful_unlock_at = $5, missed_intervals = $6, grace_started_at = $7,
			  unlock_failure_count = $8, last_failure_at = $9, claimed_at = $10, updated_at = $11
			  WHERE id = $1`

	cmd, err := r.db.Exec(ctx, query,
		vault.ID, string(vault.State), vault.EncryptedVaultKeyByHeir, vault.UnlockCounter,
		vault.LastSuccessfulUnlockAt, vault.MissedIntervals, vault.GraceStartedAt,
		vault.UnlockFailureCount, vault.LastFailureAt, vault.ClaimedAt, vault.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update vault: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return model.ErrNotFound
	}

	return nil
}

func (r *VaultRepository) getOne(ctx context.Context, query string, arg any) (model.Vault, error) {
	vault, err := scanVault(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Vault{}, model.ErrNotFound
		}
		return model.Vault{}, fmt.Errorf("failed to get vault: %w", err)
	}
	return vault, nil
}

func scanVault(row scanner) (model.Vault, error) {
	var v model.Vault
	err := row.Scan(
		&v.ID, &v.OwnerID, &v.State, &v.EncryptedVaultKey, &v.EncryptedRecoveryKey, &v.EncryptedVaultKeyByHeir,
		&v.Salt, &v.InactivityPeriodDays, &v.UnlockCounter, &v.LastSuccessfulUnlockAt, &v.MissedIntervals,
		&v.GraceStartedAt, &v.UnlockFailureCount, &v.LastFailureAt, &v.ClaimedAt, &v.CreatedAt, &v.UpdatedAt,
	)
	return v, err
}
