package postgres

import (
	"context"
	"fmt"

	"crypto-card-service/internal/core/domain"
)

// AssetRepo implements ports.AssetRepository over the minted_assets table.
// The minting subsystem owns inserts; this repo only reads and deletes.
type AssetRepo struct {
	pool Pool
}

// NewAssetRepo creates a new AssetRepo.
func NewAssetRepo(pool Pool) *AssetRepo {
	return &AssetRepo{pool: pool}
}

// ListAll returns a snapshot of every minted-asset row. Rows inserted after
// this read are outside the snapshot and untouched by the caller's pass.
func (r *AssetRepo) ListAll(ctx context.Context) ([]domain.MintedAsset, error) {
	query := `SELECT id, token_id, owner_id, minted_at FROM minted_assets ORDER BY id`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list minted assets: %w", err)
	}
	defer rows.Close()

	var assets []domain.MintedAsset
	for rows.Next() {
		var a domain.MintedAsset
		if err := rows.Scan(&a.ID, &a.TokenID, &a.OwnerID, &a.MintedAt); err != nil {
			return nil, fmt.Errorf("scan minted asset: %w", err)
		}
		assets = append(assets, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate minted assets: %w", err)
	}
	return assets, nil
}

// DeleteByIDs removes the given rows and reports how many were deleted.
// Rows already gone are simply not counted, so retries are safe.
func (r *AssetRepo) DeleteByIDs(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	query := `DELETE FROM minted_assets WHERE id = ANY($1)`

	tag, err := r.pool.Exec(ctx, query, ids)
	if err != nil {
		return 0, fmt.Errorf("delete minted assets: %w", err)
	}
	return tag.RowsAffected(), nil
}
