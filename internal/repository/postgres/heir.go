package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dtroode/heirkeeper-server/internal/model"
)

var _ model.HeirStore = (*HeirRepository)(nil)

const heirColumns = `id, owner_id, email, public_key, encrypted_private_key, salt, is_verified,
	two_factor_enabled, created_at, updated_at`

type HeirRepository struct {
	db Querier
}

func NewHeirRepository(db Querier) *HeirRepository {
	return &HeirRepository{
		db: db,
	}
}

func (r *HeirRepository) GetByID(ctx context.Context, id uuid.UUID) (model.Heir, error) {
	query := `SELECT ` + heirColumns + ` FROM heirs WHERE id = $1`

	heir, err := scanHeir(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Heir{}, model.ErrNotFound
		}
		return model.Heir{}, fmt.Errorf("failed to get heir: %w", err)
	}

	return heir, nil
}

func (r *HeirRepository) ListByOwnerID(ctx context.Context, ownerID uuid.UUID) ([]model.Heir, error) {
	query := `SELECT ` + heirColumns + ` FROM heirs WHERE owner_id = $1 ORDER BY created_at`

	rows, err := r.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list heirs: %w", err)
	}
	defer rows.Close()

	var heirs []model.Heir
	for rows.Next() {
		heir, err := scanHeir(rows)
		if err != nil {
			return nil, err
		}
		heirs = append(heirs, heir)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return heirs, nil
}

func (r *HeirRepository) UpdateKeys(ctx context.Context, id uuid.UUID, keys model.HeirKeys) error {
	query := `UPDATE heirs SET public_key = $2, encrypted_private_key = $3, salt = $4, updated_at = NOW()
			  WHERE id = $1`

	cmd, err := r.db.Exec(ctx, query, id, keys.PublicKey, keys.EncryptedPrivateKey, keys.Salt)
	if err != nil {
		return fmt.Errorf("failed to update heir keys: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return model.ErrNotFound
	}

	return nil
}

func (r *HeirRepository) MarkVerified(ctx context.Context, id uuid.UUID) error {
	cmd, err := r.db.Exec(ctx, `UPDATE heirs SET is_verified = TRUE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to mark heir verified: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return model.ErrNotFound
	}

	return nil
}

func scanHeir(row scanner) (model.Heir, error) {
	var h model.Heir
	err := row.Scan(
		&h.ID, &h.OwnerID, &h.Email, &h.PublicKey, &h.EncryptedPrivateKey, &h.Salt, &h.IsVerified,
		&h.TwoFactorEnabled, &h.CreatedAt, &h.UpdatedAt,
	)
	return h, err
}
