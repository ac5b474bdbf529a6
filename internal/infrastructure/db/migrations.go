package db

import (
	"github.com/supplyhub/backend/internal/domain"
	"gorm.io/gorm"
)

func RunMigrations(db *gorm.DB) error {
	err := db.AutoMigrate(
		&domain.StoredAsset{},
		&domain.BatchRecord{},
		&domain.SystemSetting{},
	)
	if err != nil {
		return err
	}

	if err := createCustomIndexes(db); err != nil {
		return err
	}

	return nil
}

func createCustomIndexes(db *gorm.DB) error {
	// History is always read newest first.
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_batch_records_settled_at
		ON batch_records (settled_at)
	`).Error; err != nil {
		return err
	}

	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_stored_assets_backend
		ON stored_assets (backend)
	`).Error; err != nil {
		return err
	}

	return nil
}
