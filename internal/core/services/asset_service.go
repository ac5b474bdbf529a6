package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/supplyhub/backend/internal/core/ports"
	"github.com/supplyhub/backend/internal/domain"
	"github.com/supplyhub/backend/internal/infrastructure/logger"
)

type assetService struct {
	repo    ports.AssetRepository
	remover ports.ObjectRemover
	logger  *logger.Logger
}

// NewAssetService keeps the canonical collection in step with the remote store.
// Deleting assets needs a client that implements ports.ObjectRemover; without
// one only the row is removed.
func NewAssetService(repo ports.AssetRepository, client ports.TransferClient, logger *logger.Logger) ports.AssetService {
	s := &assetService{repo: repo, logger: logger}
	if r, ok := client.(ports.ObjectRemover); ok {
		s.remover = r
	}
	return s
}

func (s *assetService) GetAssets(ctx context.Context) ([]domain.StoredAsset, error) {
	return s.repo.GetAll(ctx)
}

func (s *assetService) GetAsset(ctx context.Context, id uint) (*domain.StoredAsset, error) {
	asset, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if asset == nil {
		return nil, ErrAssetNotFound
	}
	return asset, nil
}

// RecordUploads upserts one row per succeeded task. A failing row does not stop
// the others; all errors are returned together.
func (s *assetService) RecordUploads(ctx context.Context, backend string, result *domain.BatchResult) error {
	if result == nil {
		return nil
	}
	var errs []error
	for _, t := range result.Succeeded {
		asset := &domain.StoredAsset{
			Key:         t.AssetKey,
			Name:        t.Name,
			Size:        t.Size,
			ContentType: t.ContentType,
			URL:         t.AssetURL,
			ETag:        t.AssetETag,
			Backend:     backend,
			BatchID:     result.BatchID,
		}
		if err := s.repo.Upsert(ctx, asset); err != nil {
			s.logger.Errorw("asset_record_failed", "batch_id", result.BatchID, "key", t.AssetKey, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", t.AssetKey, err))
		}
	}
	if len(errs) == 0 {
		s.logger.Infow("assets_recorded", "batch_id", result.BatchID, "count", len(result.Succeeded))
	}
	return errors.Join(errs...)
}

func (s *assetService) DeleteAsset(ctx context.Context, id uint) error {
	asset, err := s.GetAsset(ctx, id)
	if err != nil {
		return err
	}

	if s.remover != nil {
		if err := s.remover.Remove(ctx, asset.Key); err != nil {
			s.logger.Errorw("asset_remove_failed", "id", id, "key", asset.Key, "error", err)
			return fmt.Errorf("%w: %w", ErrAssetRemoveFailed, err)
		}
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Infow("asset_deleted", "id", id, "key", asset.Key)
	return nil
}
