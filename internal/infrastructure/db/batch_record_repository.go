package db

import (
	"context"
	"errors"
	"time"

	"github.com/supplyhub/backend/internal/core/ports"
	"github.com/supplyhub/backend/internal/domain"
	"github.com/supplyhub/backend/internal/infrastructure/logger"
	"gorm.io/gorm"
)

type batchRecordRepository struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBatchRecordRepository(db *gorm.DB, log *logger.Logger) ports.BatchRecordRepository {
	return &batchRecordRepository{
		db:  db,
		log: log,
	}
}

func (r *batchRecordRepository) Create(ctx context.Context, record *domain.BatchRecord) error {
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		r.log.Errorw("batch_record_repo_create_failed", "batch_id", record.BatchID, "outcome", record.Outcome, "error", err)
		return err
	}
	r.log.Infow("batch_record_repo_create_ok", "id", record.ID, "batch_id", record.BatchID, "outcome", record.Outcome)
	return nil
}

func (r *batchRecordRepository) GetByBatchID(ctx context.Context, batchID string) (*domain.BatchRecord, error) {
	var record domain.BatchRecord
	err := r.db.WithContext(ctx).Where("batch_id = ?", batchID).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.log.Errorw("batch_record_repo_get_failed", "batch_id", batchID, "error", err)
		return nil, err
	}
	return &record, nil
}

func (r *batchRecordRepository) GetAll(ctx context.Context, limit int) ([]domain.BatchRecord, error) {
	var records []domain.BatchRecord
	err := r.db.WithContext(ctx).
		Order("settled_at desc").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		r.log.Errorw("batch_record_repo_list_failed", "error", err)
		return nil, err
	}
	r.log.Debugw("batch_record_repo_list_ok", "count", len(records))
	return records, nil
}

// CleanupOld removes records settled before the cutoff.
func (r *batchRecordRepository) CleanupOld(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	res := r.db.WithContext(ctx).
		Where("settled_at < ?", cutoff).
		Delete(&domain.BatchRecord{})
	if res.Error != nil {
		r.log.Errorw("batch_record_repo_cleanup_failed", "error", res.Error)
		return 0, res.Error
	}
	r.log.Infow("batch_record_repo_cleanup_ok", "removed", res.RowsAffected)
	return res.RowsAffected, nil
}
