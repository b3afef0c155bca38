package service

import (
	"bytes"
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dtroode/heirkeeper-server/internal/logger"
	"github.com/dtroode/heirkeeper-server/internal/model"
)

// Asset stores encrypted assets of a vault.
type Asset struct {
	transactor model.Transactor
	storage    model.BlobStorage
	clock      Clock
	logger     *logger.Logger
}

func NewAsset(transactor model.Transactor, storage model.BlobStorage, clock Clock, logger *logger.Logger) *Asset {
	return &Asset{
		transactor: transactor,
		storage:    storage,
		clock:      clock,
		logger:     logger,
	}
}

// AssetKey is the object storage key of an asset blob.
func AssetKey(vaultID, assetID uuid.UUID) string {
	return fmt.Sprintf("vaults/%s/assets/%s", vaultID, assetID)
}

// CreateAsset uploads the ciphertext and records its metadata with an audit intent.
// The blob is removed again if the metadata transaction fails.
func (s *Asset) CreateAsset(ctx context.Context, params model.CreateAssetParams) (model.Asset, error) {
	switch {
	case params.Name == "":
		return model.Asset{}, model.NewErrValidation("name is required")
	case params.Type == "":
		return model.Asset{}, model.NewErrValidation("type is required")
	case params.Alg == "":
		return model.Asset{}, model.NewErrValidation("alg is required")
	case len(params.EncryptedData) == 0:
		return model.Asset{}, model.NewErrValidation("encryptedData is required")
	}

	var vault model.Vault
	err := s.transactor.WithinTx(ctx, func(ctx context.Context, tx model.Tx) error {
		var err error
		vault, err = getOwnerVault(ctx, tx, params.OwnerID)
		return err
	})
	if err != nil {
		return model.Asset{}, err
	}
	if !vault.AcceptsOwnerChanges() {
		return model.Asset{}, model.NewErrStateViolation(model.ErrVaultLocked)
	}

	asset := model.Asset{
		ID:      uuid.New(),
		VaultID: vault.ID,
		Name:    params.Name,
		Type:    params.Type,
		Alg:     params.Alg,
		Size:    int64(len(params.EncryptedData)),
	}
	asset.S3Key = AssetKey(vault.ID, asset.ID)

	if err := s.storage.Upload(ctx, asset.S3Key, bytes.NewReader(params.EncryptedData), asset.Size); err != nil {
		return model.Asset{}, fmt.Errorf("failed to upload asset: %w", err)
	}

	err = s.transactor.WithinTx(ctx, func(ctx context.Context, tx model.Tx) error {
		now := s.clock.Now()

		// The vault may have moved on while the blob was uploading.
		locked, err := lockOwnerVault(ctx, tx, params.OwnerID)
		if err != nil {
			return err
		}
		if !locked.AcceptsOwnerChanges() {
			return model.NewErrStateViolation(model.ErrVaultLocked)
		}

		asset.CreatedAt = now
		if err := tx.Assets().Create(ctx, asset); err != nil {
			return fmt.Errorf("failed to create asset: %w", err)
		}

		return LogIntent(ctx, tx, model.AuditEvent{
			ActorType:  model.ActorOwner,
			ActorID:    params.OwnerID,
			TargetType: model.TargetAsset,
			TargetID:   asset.ID,
			EventType:  model.EventAssetCreated,
			Payload: map[string]any{
				"vaultId": vault.ID,
				"type":    asset.Type,
				"size":    asset.Size,
			},
		}, now)
	})
	if err != nil {
		if delErr := s.storage.Delete(ctx, asset.S3Key); delErr != nil {
			s.logger.Error("Asset service: failed to remove orphaned blob", "key", asset.S3Key, "error", delErr)
		}
		return model.Asset{}, err
	}

	s.logger.Info("Asset service: asset created", "vault_id", vault.ID, "asset_id", asset.ID)
	return asset, nil
}
