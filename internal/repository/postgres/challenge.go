package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dtroode/heirkeeper-server/internal/model"
)

var _ model.ChallengeStore = (*ChallengeRepository)(nil)

type ChallengeRepository struct {
	db Querier
}

func NewChallengeRepository(db Querier) *ChallengeRepository {
	return &ChallengeRepository{
		db: db,
	}
}

func (r *ChallengeRepository) Create(ctx context.Context, c model.UnlockChallenge) error {
	query := `INSERT INTO unlock_challenges (id, vault_id, issued_to, purpose, challenge, expires_at, used, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.Exec(ctx, query,
		c.ID, c.VaultID, c.IssuedTo, string(c.Purpose), c.Challenge, c.ExpiresAt, c.Used, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create challenge: %w", err)
	}

	return nil
}

func (r *ChallengeRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (model.UnlockChallenge, error) {
	query := `SELECT id, vault_id, issued_to, purpose, challenge, expires_at, used, created_at
			  FROM unlock_challenges WHERE id = $1 FOR UPDATE`

	var c model.UnlockChallenge
	err := r.db.QueryRow(ctx, query, id).Scan(
		&c.ID, &c.VaultID, &c.IssuedTo, &c.Purpose, &c.Challenge, &c.ExpiresAt, &c.Used, &c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.UnlockChallenge{}, model.ErrNotFound
		}
		return model.UnlockChallenge{}, fmt.Errorf("failed to get challenge: %w", err)
	}

	return c, nil
}

func (r *ChallengeRepository) MarkUsed(ctx context.Context, id uuid.UUID) error {
	cmd, err := r.db.Exec(ctx, `UPDATE unlock_challenges SET used = TRUE WHERE id = $1 AND used = FALSE`, id)
	if err != nil {
		return fmt.Errorf("failed to mark challenge used: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return model.ErrNotFound
	}

	return nil
}
