package db

import (
	"context"
	"errors"

	"github.com/supplyhub/backend/internal/core/ports"
	"github.com/supplyhub/backend/internal/domain"
	"github.com/supplyhub/backend/internal/infrastructure/logger"
	"gorm.io/gorm"
)

type assetRepository struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAssetRepository(db *gorm.DB, log *logger.Logger) ports.AssetRepository {
	return &assetRepository{db: db, log: log}
}

// Upsert stores the asset under its key, reviving a soft-deleted row for the
// same key.
func (r *assetRepository) Upsert(ctx context.Context, asset *domain.StoredAsset) error {
	var existing domain.StoredAsset
	err := r.db.WithContext(ctx).Unscoped().Where("key = ?", asset.Key).First(&existing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if err := r.db.WithContext(ctx).Create(asset).Error; err != nil {
				r.log.Errorw("asset_repo_create_failed", "key", asset.Key, "error", err)
				return err
			}
			r.log.Infow("asset_repo_create_ok", "id", asset.ID, "key", asset.Key)
			return nil
		}
		r.log.Errorw("asset_repo_get_for_upsert_failed", "key", asset.Key, "error", err)
		return err
	}

	existing.Name = asset.Name
	existing.Size = asset.Size
	existing.ContentType = asset.ContentType
	existing.URL = asset.URL
	existing.ETag = asset.ETag
	existing.Backend = asset.Backend
	existing.BatchID = asset.BatchID
	existing.DeletedAt = gorm.DeletedAt{}
	if err := r.db.WithContext(ctx).Unscoped().Save(&existing).Error; err != nil {
		r.log.Errorw("asset_repo_update_failed", "key", asset.Key, "error", err)
		return err
	}
	*asset = existing
	r.log.Infow("asset_repo_update_ok", "id", existing.ID, "key", existing.Key)
	return nil
}

func (r *assetRepository) GetByID(ctx context.Context, id uint) (*domain.StoredAsset, error) {
	var asset domain.StoredAsset
	if err := r.db.WithContext(ctx).First(&asset, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.log.Errorw("asset_repo_get_failed", "id", id, "error", err)
		return nil, err
	}
	return &asset, nil
}

func (r *assetRepository) GetByKey(ctx context.Context, key string) (*domain.StoredAsset, error) {
	var asset domain.StoredAsset
	if err := r.db.WithContext(ctx).Where("key = ?", key).First(&asset).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.log.Errorw("asset_repo_get_by_key_failed", "key", key, "error", err)
		return nil, err
	}
	return &asset, nil
}

func (r *assetRepository) GetAll(ctx context.Context) ([]domain.StoredAsset, error) {
	var assets []domain.StoredAsset
	if err := r.db.WithContext(ctx).Order("updated_at desc").Find(&assets).Error; err != nil {
		r.log.Errorw("asset_repo_list_failed", "error", err)
		return nil, err
	}
	r.log.Debugw("asset_repo_list_ok", "count", len(assets))
	return assets, nil
}

func (r *assetRepository) Delete(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Delete(&domain.StoredAsset{}, id).Error; err != nil {
		r.log.Errorw("asset_repo_delete_failed", "id", id, "error", err)
		return err
	}
	r.log.Infow("asset_repo_delete_ok", "id", id)
	return nil
}
