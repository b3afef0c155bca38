package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/dtroode/heirkeeper-server/internal/model"
)

var _ model.PendingRegistrationStore = (*RegistrationRepository)(nil)

type RegistrationRepository struct {
	db Querier
}

func NewRegistrationRepository(db Querier) *RegistrationRepository {
	return &RegistrationRepository{
		db: db,
	}
}

// Upsert replaces any earlier code for the same email.
func (r *RegistrationRepository) Upsert(ctx context.Context, p model.PendingRegistration) error {
	query := `INSERT INTO pending_registrations (email, otp_hash, expires_at, consumed, attempts)
			  VALUES ($1, $2, $3, $4, $5)
			  ON CONFLICT (email) DO UPDATE
			  SET otp_hash = EXCLUDED.otp_hash, expires_at = EXCLUDED.expires_at,
			      consumed = EXCLUDED.consumed, attempts = EXCLUDED.attempts`

	if _, err := r.db.Exec(ctx, query, p.Email, p.OTPHash, p.ExpiresAt, p.Consumed, p.Attempts); err != nil {
		return fmt.Errorf("failed to upsert pending registration: %w", err)
	}

	return nil
}

func (r *RegistrationRepository) GetByEmail(ctx context.Context, email string) (model.PendingRegistration, error) {
	query := `SELECT email, otp_hash, expires_at, consumed, attempts FROM pending_registrations WHERE email = $1`

	var p model.PendingRegistration
	err := r.db.QueryRow(ctx, query, email).Scan(&p.Email, &p.OTPHash, &p.ExpiresAt, &p.Consumed, &p.Attempts)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.PendingRegistration{}, model.ErrNotFound
		}
		return model.PendingRegistration{}, fmt.Errorf("failed to get pending registration: %w", err)
	}

	return p, nil
}

func (r *RegistrationRepository) Consume(ctx context.Context, email string) error {
	query := `UPDATE pending_registrations SET consumed = TRUE WHERE email = $1 AND consumed = FALSE`

	cmd, err := r.db.Exec(ctx, query, email)
	if err != nil {
		return fmt.Errorf("failed to consume pending registration: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return model.ErrNotFound
	}

	return nil
}

func (r *RegistrationRepository) RecordFailedAttempt(ctx context.Context, email string) (int, error) {
	query := `UPDATE pending_registrations SET attempts = attempts + 1
			  WHERE email = $1 AND consumed = FALSE
			  RETURNING attempts`

	var attempts int
	if err := r.db.QueryRow(ctx, query, email).Scan(&attempts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, model.ErrNotFound
		}
		return 0, fmt.Errorf("failed to record failed verification attempt: %w", err)
	}

	return attempts, nil
}
