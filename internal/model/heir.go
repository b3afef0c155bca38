package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// HeirStore defines persistence operations for heirs.
type HeirStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (Heir, error)
	ListByOwnerID(ctx context.Context, ownerID uuid.UUID) ([]Heir, error)
	UpdateKeys(ctx context.Context, id uuid.UUID, keys HeirKeys) error
	MarkVerified(ctx context.Context, id uuid.UUID) error
}

// Heir is a designated recipient of a vault.
//
// EncryptedPrivateKey and Salt are stored inside server envelopes; the private key is additionally
// encrypted client-side under the heir's password-derived key.
type Heir struct {
	ID                  uuid.UUID
	OwnerID             *uuid.UUID
	Email               string
	PublicKey           string
	EncryptedPrivateKey string
	Salt                string
	IsVerified          bool
	TwoFactorEnabled    bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// HasKeys reports whether key-setup has been completed.
func (h Heir) HasKeys() bool {
	return h.PublicKey != "" && h.EncryptedPrivateKey != "" && h.Salt != ""
}

// HeirKeys is the sealed crypto material written at key-setup time.
type HeirKeys struct {
	PublicKey           string
	EncryptedPrivateKey string
	Salt                string
}

// HeirKeySetupParams is the client-submitted key material (client layer only).
type HeirKeySetupParams struct {
	HeirID              uuid.UUID
	PublicKey           string
	EncryptedPrivateKey string
	Salt                string
}

// ShareHeirKeyParams is an owner request to store a heir-wrapped vault key.
type ShareHeirKeyParams struct {
	OwnerID         uuid.UUID
	HeirID          uuid.UUID
	WrappedVaultKey string
}
