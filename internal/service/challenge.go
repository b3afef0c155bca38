package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/heirkeeper-server/internal/envelope"
	"github.com/dtroode/heirkeeper-server/internal/model"
)

func newNonce() (string, error) {
	buf := make([]byte, model.ChallengeSize)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random nonce: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

// issueChallenge persists a fresh single-use challenge for vault.
func issueChallenge(ctx context.Context, tx model.Tx, vaultID, issuedTo uuid.UUID, purpose model.ChallengePurpose, now time.Time) (model.UnlockChallenge, error) {
	nonce, err := newNonce()
	if err != nil {
		return model.UnlockChallenge{}, err
	}

	challenge := model.UnlockChallenge{
		ID:        uuid.New(),
		VaultID:   vaultID,
		IssuedTo:  issuedTo,
		Purpose:   purpose,
		Challenge: nonce,
		ExpiresAt: now.Add(model.ChallengeTTL),
		CreatedAt: now,
	}

	if err := tx.Challenges().Create(ctx, challenge); err != nil {
		return model.UnlockChallenge{}, fmt.Errorf("failed to create challenge: %w", err)
	}

	return challenge, nil
}

// checkChallenge locks the challenge and validates, in order, that it exists and belongs to the vault,
// recipient and purpose, that it is unused and that it has not expired.
func checkChallenge(ctx context.Context, tx model.Tx, id, vaultID, issuedTo uuid.UUID, purpose model.ChallengePurpose, now time.Time) (model.UnlockChallenge, error) {
	challenge, err := tx.Challenges().GetForUpdate(ctx, id)
	if errors.Is(err, model.ErrNotFound) {
		return model.UnlockChallenge{}, model.NewErrNotFound(model.ErrChallengeNotFound)
	}
	if err != nil {
		return model.UnlockChallenge{}, fmt.Errorf("failed to get challenge: %w", err)
	}

	if challenge.VaultID != vaultID || challenge.IssuedTo != issuedTo || challenge.Purpose != purpose {
		return model.UnlockChallenge{}, model.NewErrNotFound(model.ErrChallengeNotFound)
	}
	if challenge.Used {
		return model.UnlockChallenge{}, model.NewErrReplayRejected(model.ErrChallengeUsed)
	}
	if !now.Before(challenge.ExpiresAt) {
		return model.UnlockChallenge{}, model.NewErrReplayRejected(model.ErrChallengeExpired)
	}

	return challenge, nil
}

// decodeOpaque checks that value is a non-empty canonical base64 blob within the size bound.
// The decoded bytes are stored as they are and never interpreted.
func decodeOpaque(field, value string) ([]byte, error) {
	if value == "" {
		return nil, model.NewErrValidation(field + " is required")
	}
	if base64.StdEncoding.DecodedLen(len(value)) > model.MaxAttestationSize+2 {
		return nil, model.NewErrValidation(field + " is too large")
	}

	raw, err := envelope.DecodeCanonical(value)
	if err != nil {
		return nil, model.NewErrValidation(field + " must be canonical base64")
	}
	if len(raw) == 0 {
		return nil, model.NewErrValidation(field + " is required")
	}
	if len(raw) > model.MaxAttestationSize {
		return nil, model.NewErrValidation(field + " is too large")
	}

	return raw, nil
}

// requireCanonical validates a client-wrapped key or salt.
func requireCanonical(field, value string) error {
	if value == "" {
		return model.NewErrValidation(field + " is required")
	}
	if _, err := envelope.Canonical(value); err != nil {
		return model.NewErrValidation(field + " must be canonical base64")
	}
	return nil
}
