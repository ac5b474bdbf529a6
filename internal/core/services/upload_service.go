package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/supplyhub/backend/internal/core/ports"
	"github.com/supplyhub/backend/internal/core/upload"
	"github.com/supplyhub/backend/internal/domain"
	"github.com/supplyhub/backend/internal/infrastructure/logger"
)

const (
	finalizeTimeout     = 30 * time.Second
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

type UploadServiceConfig struct {
	Client   ports.TransferClient
	Previews ports.PreviewStore
	// Defaults apply where no runtime setting overrides them.
	Defaults domain.UploadPolicy
	// Backend names the store in asset rows ("s3", "sftp", "local").
	Backend          string
	Retention        time.Duration
	HistoryRetention time.Duration
}

type uploadService struct {
	cfg      UploadServiceConfig
	settings ports.SettingService
	assets   ports.AssetService
	records  ports.BatchRecordRepository
	registry *BatchRegistry
	log      *logger.Logger

	// ctx outlives requests; batches are canceled only through Shutdown.
	ctx    context.Context
	cancel context.CancelFunc
	// mu orders wg.Add in Submit against cancel in Shutdown.
	mu sync.Mutex
	wg sync.WaitGroup
}

func NewUploadService(
	cfg UploadServiceConfig,
	settings ports.SettingService,
	assets ports.AssetService,
	records ports.BatchRecordRepository,
	log *logger.Logger,
) ports.UploadService {
	ctx, cancel := context.WithCancel(context.Background())
	return &uploadService{
		cfg:      cfg,
		settings: settings,
		assets:   assets,
		records:  records,
		registry: NewBatchRegistry(),
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (s *uploadService) policy(ctx context.Context) domain.UploadPolicy {
	if s.settings == nil {
		return s.cfg.Defaults
	}
	p, err := s.settings.UploadPolicy(ctx, s.cfg.Defaults)
	if err != nil {
		s.log.Warnw("upload_policy_load_failed", "error", err)
		return s.cfg.Defaults
	}
	return p
}

// track registers a batch with the shutdown wait group unless the service is
// stopping.
func (s *uploadService) track() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() != nil {
		return false
	}
	s.wg.Add(1)
	return true
}

// Submit starts a batch. ctx only bounds the setup; the uploads themselves run
// until they settle or the service shuts down.
func (s *uploadService) Submit(ctx context.Context, files []domain.SourceFile) (*domain.BatchSnapshot, []domain.Rejection, error) {
	if len(files) == 0 {
		return nil, nil, ErrBatchEmpty
	}
	if !s.track() {
		return nil, nil, ErrServiceShuttingDown
	}

	policy := s.policy(ctx)
	engine, err := upload.NewEngine(upload.Config{
		Client:           s.cfg.Client,
		Previews:         s.cfg.Previews,
		Admission:        upload.NewAdmission(policy),
		ConcurrencyLimit: policy.ConcurrencyLimit,
		PreviewPolicy:    policy.PreviewPolicy,
		Logger:           s.log,
	})
	if err != nil {
		s.wg.Done()
		return nil, nil, err
	}

	entry := &batchEntry{}
	var hub *batchHub
	hubReady := make(chan struct{})
	observer := upload.ObserverFuncs{
		OnTaskChanged: func(view domain.TaskView) {
			<-hubReady
			hub.publishTask(view)
		},
	}

	b, rejected, err := engine.Start(s.ctx, files, observer)
	if err != nil {
		s.wg.Done()
		close(hubReady)
		if errors.Is(err, context.Canceled) {
			return nil, nil, ErrServiceShuttingDown
		}
		return nil, nil, err
	}
	hub = newBatchHub(b.ID(), s.log)
	entry.batch = b
	entry.hub = hub
	close(hubReady)

	s.registry.Add(entry)
	go s.finalize(entry)

	s.log.Infow("upload_batch_submitted",
		"batch_id", b.ID(),
		"files", len(files),
		"admitted", b.Len(),
		"rejected", len(rejected),
		"concurrency_limit", engine.ConcurrencyLimit(),
	)

	snap := entry.snapshot()
	if b.Len() == 0 {
		return &snap, rejected, ErrBatchAllRejected
	}
	return &snap, rejected, nil
}

// finalize runs once per batch after the engine emitted its result: it refreshes
// the asset collection, frees the deferred previews, records history and ends
// the live stream.
func (s *uploadService) finalize(entry *batchEntry) {
	defer s.wg.Done()

	b := entry.batch
	<-b.Done()
	result, _ := b.Result()

	ctx, cancel := context.WithTimeout(context.Background(), finalizeTimeout)
	defer cancel()

	if s.assets != nil && len(result.Succeeded) > 0 {
		if err := s.assets.RecordUploads(ctx, s.cfg.Backend, result); err != nil {
			s.log.Errorw("upload_batch_record_assets_failed", "batch_id", b.ID(), "error", err)
		}
	}
	if err := b.ReleaseSettledPreviews(); err != nil {
		s.log.Warnw("upload_batch_release_previews_failed", "batch_id", b.ID(), "error", err)
	}

	summary := result.Summary()
	if s.records != nil {
		record := &domain.BatchRecord{
			BatchID:     b.ID(),
			Outcome:     domain.OutcomeOf(result),
			Admitted:    b.Len(),
			Rejected:    len(result.Rejected),
			Succeeded:   summary.Succeeded,
			Failed:      summary.Failed,
			Canceled:    summary.Canceled,
			FailedNames: domain.StringList(summary.FailedNames),
			StartedAt:   result.StartedAt,
			SettledAt:   result.SettledAt,
		}
		if err := s.records.Create(ctx, record); err != nil {
			s.log.Errorw("upload_batch_record_failed", "batch_id", b.ID(), "error", err)
		}
	}

	notices := summary.Notices()
	for _, n := range notices {
		switch n.Level {
		case domain.NoticeLevelSuccess:
			s.log.Infow("upload_notice", "batch_id", b.ID(), "level", n.Level, "message", n.Message)
		default:
			s.log.Warnw("upload_notice", "batch_id", b.ID(), "level", n.Level, "message", n.Message)
		}
	}

	entry.markSettled(summary, notices)
	entry.hub.close(summary, notices)
}

func (s *uploadService) GetBatches() []domain.BatchSnapshot {
	entries := s.registry.List()
	out := make([]domain.BatchSnapshot, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.snapshot())
	}
	return out
}

func (s *uploadService) GetBatch(id string) (*domain.BatchSnapshot, error) {
	e, err := s.registry.Get(id)
	if err != nil {
		return nil, err
	}
	snap := e.snapshot()
	return &snap, nil
}

func (s *uploadService) CancelTask(batchID, taskID string) error {
	e, err := s.registry.Get(batchID)
	if err != nil {
		return err
	}
	if err := e.batch.Cancel(taskID); err != nil {
		if errors.Is(err, upload.ErrTaskNotFound) {
			return ErrTaskNotFound
		}
		return err
	}
	s.log.Infow("upload_task_cancel_requested", "batch_id", batchID, "task_id", taskID)
	return nil
}

func (s *uploadService) CancelBatch(batchID string) error {
	e, err := s.registry.Get(batchID)
	if err != nil {
		return err
	}
	e.batch.CancelAll()
	s.log.Infow("upload_batch_cancel_requested", "batch_id", batchID)
	return nil
}

func (s *uploadService) ReleasePreview(batchID, taskID string) error {
	e, err := s.registry.Get(batchID)
	if err != nil {
		return err
	}
	if err := e.batch.ReleasePreview(taskID); err != nil {
		if errors.Is(err, upload.ErrTaskNotFound) {
			return ErrTaskNotFound
		}
		return err
	}
	return nil
}

func (s *uploadService) Subscribe(batchID string) (*domain.Subscription, error) {
	e, err := s.registry.Get(batchID)
	if err != nil {
		return nil, err
	}
	return e.hub.subscribe(e.snapshot), nil
}

func (s *uploadService) History(ctx context.Context, limit int) ([]domain.BatchRecord, error) {
	if s.records == nil {
		return []domain.BatchRecord{}, nil
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return s.records.GetAll(ctx, limit)
}

// Purge drops settled batches past retention from memory and old history rows
// from the database.
func (s *uploadService) Purge(ctx context.Context) error {
	if s.cfg.Retention > 0 {
		if purged := s.registry.Purge(s.cfg.Retention); len(purged) > 0 {
			s.log.Infow("upload_batches_purged", "count", len(purged))
		}
	}
	if s.records != nil && s.cfg.HistoryRetention > 0 {
		if _, err := s.records.CleanupOld(ctx, s.cfg.HistoryRetention); err != nil {
			return err
		}
	}
	return nil
}

// Shutdown cancels every running batch and waits for their results to be
// recorded.
func (s *uploadService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.cancel()
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info("upload service stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
