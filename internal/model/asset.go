package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AssetStore defines persistence operations for encrypted vault assets.
type AssetStore interface {
	Create(ctx context.Context, asset Asset) error
	ListByVaultID(ctx context.Context, vaultID uuid.UUID) ([]Asset, error)
}

// Asset is metadata of an encrypted asset. The ciphertext lives in object storage under S3Key.
type Asset struct {
	ID        uuid.UUID
	VaultID   uuid.UUID
	Name      string
	Type      string
	Alg       string
	S3Key     string
	Size      int64
	CreatedAt time.Time
}

// CreateAssetParams contains parameters to create an asset.
type CreateAssetParams struct {
	OwnerID       uuid.UUID
	Name          string
	Type          string
	Alg           string
	EncryptedData []byte
}

// AssetBlob is an asset together with its ciphertext.
type AssetBlob struct {
	Asset
	EncryptedData []byte
}

// ClaimKeyMaterial is the heir's key material with the server layer removed.
type ClaimKeyMaterial struct {
	EncryptedVaultKeyForHeir string
	Salt                     string
	EncryptedPrivateKey      string
}

// ClaimInitiation is returned to the heir by the first claim phase.
type ClaimInitiation struct {
	ClaimKeyMaterial
	ChallengeID uuid.UUID
	Challenge   string
	ExpiresAt   time.Time
}

// SubmitClaimParams contains the heir's proof of possession.
type SubmitClaimParams struct {
	HeirID      uuid.UUID
	ChallengeID uuid.UUID
	Proof       string
	Meta        RequestMeta
}

// ClaimResult is returned after the vault was claimed.
type ClaimResult struct {
	VaultID   uuid.UUID
	State     VaultState
	ClaimedAt time.Time
}

// HeirAssets is returned to the heir once the vault is claimed.
type HeirAssets struct {
	ClaimKeyMaterial
	VaultID uuid.UUID
	Assets  []AssetBlob
}
