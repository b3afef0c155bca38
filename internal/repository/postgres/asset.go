package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dtroode/heirkeeper-server/internal/model"
)

var _ model.AssetStore = (*AssetRepository)(nil)

type AssetRepository struct {
	db Querier
}

func NewAssetRepository(db Querier) *AssetRepository {
	return &AssetRepository{
		db: db,
	}
}

func (r *AssetRepository) Create(ctx context.Context, a model.Asset) error {
	query := `INSERT INTO vault_assets (id, vault_id, name, type, alg, s3_key, size, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.Exec(ctx, query, a.ID, a.VaultID, a.Name, a.Type, a.Alg, a.S3Key, a.Size, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create asset: %w", err)
	}

	return nil
}

func (r *AssetRepository) ListByVaultID(ctx context.Context, vaultID uuid.UUID) ([]model.Asset, error) {
	query := `SELECT id, vault_id, name, type, alg, s3_key, size, created_at
			  FROM vault_assets WHERE vault_id = $1 ORDER BY created_at`

	rows, err := r.db.Query(ctx, query, vaultID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}
	defer rows.Close()

	var assets []model.Asset
	for rows.Next() {
		var a model.Asset
		if err := rows.Scan(&a.ID, &a.VaultID, &a.Name, &a.Type, &a.Alg, &a.S3Key, &a.Size, &a.CreatedAt); err != nil {
			return nil, err
		}
		assets = append(assets, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return assets, nil
}
