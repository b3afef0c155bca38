package postgres

import (
	"context"
	"fmt"

	"github.com/dtroode/heirkeeper-server/internal/model"
)

var _ model.AttestationStore = (*AttestationRepository)(nil)

type AttestationRepository struct {
	db Querier
}

func NewAttestationRepository(db Querier) *AttestationRepository {
	return &AttestationRepository{
		db: db,
	}
}

// Create appends an attestation. The table rejects updates and deletes.
func (r *AttestationRepository) Create(ctx context.Context, a model.UnlockAttestation) error {
	query := `INSERT INTO unlock_attestations (id, vault_id, challenge_id, actor_id, kind, attestation_blob,
			  ip_address, user_agent, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.Exec(ctx, query,
		a.ID, a.VaultID, a.ChallengeID, a.ActorID, string(a.Kind), a.AttestationBlob,
		a.IPAddress, a.UserAgent, a.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.ErrChallengeUsed
		}
		return fmt.Errorf("failed to create attestation: %w", err)
	}

	return nil
}
