package ports

import (
	"context"

	"github.com/supplyhub/backend/internal/domain"
)

type UploadService interface {
	Submit(ctx context.Context, files []domain.SourceFile) (*domain.BatchSnapshot, []domain.Rejection, error)
	GetBatches() []domain.BatchSnapshot
	GetBatch(id string) (*domain.BatchSnapshot, error)
	CancelTask(batchID, taskID string) error
	CancelBatch(batchID string) error
	ReleasePreview(batchID, taskID string) error
	Subscribe(batchID string) (*domain.Subscription, error)
	History(ctx context.Context, limit int) ([]domain.BatchRecord, error)
	Purge(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

type AssetService interface {
	GetAssets(ctx context.Context) ([]domain.StoredAsset, error)
	GetAsset(ctx context.Context, id uint) (*domain.StoredAsset, error)
	RecordUploads(ctx context.Context, backend string, result *domain.BatchResult) error
	DeleteAsset(ctx context.Context, id uint) error
}

type SettingService interface {
	UploadPolicy(ctx context.Context, defaults domain.UploadPolicy) (domain.UploadPolicy, error)
	UpdateUploadPolicy(ctx context.Context, update domain.UploadPolicyUpdate) error
	GetSettings(ctx context.Context) (map[string]string, error)
}
