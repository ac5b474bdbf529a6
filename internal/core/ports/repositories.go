package ports

import (
	"context"
	"time"

	"github.com/supplyhub/backend/internal/domain"
)

type AssetRepository interface {
	Upsert(ctx context.Context, asset *domain.StoredAsset) error
	GetByID(ctx context.Context, id uint) (*domain.StoredAsset, error)
	GetByKey(ctx context.Context, key string) (*domain.StoredAsset, error)
	GetAll(ctx context.Context) ([]domain.StoredAsset, error)
	Delete(ctx context.Context, id uint) error
}

type BatchRecordRepository interface {
	Create(ctx context.Context, record *domain.BatchRecord) error
	GetByBatchID(ctx context.Context, batchID string) (*domain.BatchRecord, error)
	GetAll(ctx context.Context, limit int) ([]domain.BatchRecord, error)
	CleanupOld(ctx context.Context, olderThan time.Duration) (int64, error)
}

type SystemSettingRepository interface {
	Get(ctx context.Context, key string) (*domain.SystemSetting, error)
	Set(ctx context.Context, setting *domain.SystemSetting) error
	SetMany(ctx context.Context, settings []domain.SystemSetting) error
	GetByCategory(ctx context.Context, category string) ([]domain.SystemSetting, error)
	Delete(ctx context.Context, key string) error
}
