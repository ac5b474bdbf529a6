package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/supplyhub/backend/internal/domain"
	"github.com/supplyhub/backend/internal/infrastructure/logger"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	database, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, RunMigrations(database))
	t.Cleanup(func() { _ = Close(database) })
	return database
}

func TestAssetRepository_Upsert(t *testing.T) {
	ctx := context.Background()
	repo := NewAssetRepository(newTestDB(t), logger.NewNop())

	first := &domain.StoredAsset{Key: "assets/a.png", Name: "a.png", Size: 10, Backend: "s3", BatchID: "b1"}
	require.NoError(t, repo.Upsert(ctx, first))
	require.NotZero(t, first.ID)

	second := &domain.StoredAsset{Key: "assets/a.png", Name: "a.png", Size: 20, Backend: "s3", BatchID: "b2"}
	require.NoError(t, repo.Upsert(ctx, second))
	assert.Equal(t, first.ID, second.ID, "same key updates the row")

	all, err := repo.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, int64(20), all[0].Size)
	assert.Equal(t, "b2", all[0].BatchID)
}

func TestAssetRepository_UpsertRevivesDeleted(t *testing.T) {
	ctx := context.Background()
	repo := NewAssetRepository(newTestDB(t), logger.NewNop())

	asset := &domain.StoredAsset{Key: "k", Name: "a.png"}
	require.NoError(t, repo.Upsert(ctx, asset))
	require.NoError(t, repo.Delete(ctx, asset.ID))

	got, err := repo.GetByID(ctx, asset.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	again := &domain.StoredAsset{Key: "k", Name: "a.png", Size: 5}
	require.NoError(t, repo.Upsert(ctx, again))
	assert.Equal(t, asset.ID, again.ID)

	got, err = repo.GetByKey(ctx, "k")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(5), got.Size)
}

func TestAssetRepository_NotFound(t *testing.T) {
	ctx := context.Background()
	repo := NewAssetRepository(newTestDB(t), logger.NewNop())

	got, err := repo.GetByKey(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestBatchRecordRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewBatchRecordRepository(newTestDB(t), logger.NewNop())

	now := time.Now()
	old := &domain.BatchRecord{
		BatchID:   "old",
		Outcome:   domain.BatchOutcomeSucceeded,
		Succeeded: 1,
		StartedAt: now.Add(-49 * time.Hour),
		SettledAt: now.Add(-48 * time.Hour),
	}
	recent := &domain.BatchRecord{
		BatchID:     "recent",
		Outcome:     domain.BatchOutcomePartial,
		Succeeded:   2,
		Failed:      1,
		FailedNames: domain.StringList{"c.png"},
		StartedAt:   now.Add(-time.Minute),
		SettledAt:   now,
	}
	require.NoError(t, repo.Create(ctx, old))
	require.NoError(t, repo.Create(ctx, recent))

	records, err := repo.GetAll(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "recent", records[0].BatchID)
	assert.Equal(t, domain.StringList{"c.png"}, records[0].FailedNames)

	got, err := repo.GetByBatchID(ctx, "old")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.BatchOutcomeSucceeded, got.Outcome)

	removed, err := repo.CleanupOld(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	got, err = repo.GetByBatchID(ctx, "old")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSystemSettingRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewSystemSettingRepository(newTestDB(t), logger.NewNop())

	got, err := repo.Get(ctx, "upload_concurrency_limit")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, repo.SetMany(ctx, []domain.SystemSetting{
		{Key: "upload_concurrency_limit", Value: "4", Type: "int", Category: "upload"},
		{Key: "upload_max_bytes", Value: "1024", Type: "int", Category: "upload"},
	}))
	require.NoError(t, repo.Set(ctx, &domain.SystemSetting{Key: "upload_concurrency_limit", Value: "6", Type: "int", Category: "upload"}))

	got, err = repo.Get(ctx, "upload_concurrency_limit")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "6", got.Value)

	settings, err := repo.GetByCategory(ctx, "upload")
	require.NoError(t, err)
	assert.Len(t, settings, 2)

	require.NoError(t, repo.Delete(ctx, "upload_max_bytes"))
	require.NoError(t, repo.Set(ctx, &domain.SystemSetting{Key: "upload_max_bytes", Value: "2048", Category: "upload"}))
	got, err = repo.Get(ctx, "upload_max_bytes")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "2048", got.Value)
}
