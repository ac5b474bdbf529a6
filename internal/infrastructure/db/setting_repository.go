package db

import (
	"context"
	"errors"

	"github.com/supplyhub/backend/internal/core/ports"
	"github.com/supplyhub/backend/internal/domain"
	"github.com/supplyhub/backend/internal/infrastructure/logger"
	"gorm.io/gorm"
)

type systemSettingRepository struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSystemSettingRepository(db *gorm.DB, log *logger.Logger) ports.SystemSettingRepository {
	return &systemSettingRepository{db: db, log: log}
}

func (r *systemSettingRepository) Get(ctx context.Context, key string) (*domain.SystemSetting, error) {
	var setting domain.SystemSetting
	if err := r.db.WithContext(ctx).Where("key = ?", key).First(&setting).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.log.Errorw("setting_repo_get_failed", "key", key, "error", err)
		return nil, err
	}
	return &setting, nil
}

func (r *systemSettingRepository) Set(ctx context.Context, setting *domain.SystemSetting) error {
	return r.SetMany(ctx, []domain.SystemSetting{*setting})
}

// SetMany writes all settings in one transaction; either every key changes or
// none does.
func (r *systemSettingRepository) SetMany(ctx context.Context, settings []domain.SystemSetting) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range settings {
			if err := setInTx(tx, &settings[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		r.log.Errorw("setting_repo_set_failed", "count", len(settings), "error", err)
		return err
	}
	for _, s := range settings {
		r.log.Infow("setting_repo_set_ok", "key", s.Key, "category", s.Category)
	}
	return nil
}

func setInTx(tx *gorm.DB, setting *domain.SystemSetting) error {
	var existing domain.SystemSetting
	err := tx.Unscoped().Where("key = ?", setting.Key).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return tx.Create(setting).Error
	}
	if err != nil {
		return err
	}
	existing.Value = setting.Value
	existing.Type = setting.Type
	existing.Category = setting.Category
	existing.DeletedAt = gorm.DeletedAt{}
	return tx.Unscoped().Save(&existing).Error
}

func (r *systemSettingRepository) GetByCategory(ctx context.Context, category string) ([]domain.SystemSetting, error) {
	var settings []domain.SystemSetting
	if err := r.db.WithContext(ctx).Where("category = ?", category).Order("key").Find(&settings).Error; err != nil {
		r.log.Errorw("setting_repo_get_by_category_failed", "category", category, "error", err)
		return nil, err
	}
	r.log.Debugw("setting_repo_get_by_category_ok", "category", category, "count", len(settings))
	return settings, nil
}

func (r *systemSettingRepository) Delete(ctx context.Context, key string) error {
	if err := r.db.WithContext(ctx).Where("key = ?", key).Delete(&domain.SystemSetting{}).Error; err != nil {
		r.log.Errorw("setting_repo_delete_failed", "key", key, "error", err)
		return err
	}
	r.log.Infow("setting_repo_delete_ok", "key", key)
	return nil
}
