// Package upload orchestrates batch asset uploads: admission, a FIFO queue, a fixed
// worker pool driving an injected transfer client, cooperative per-task
// cancellation, preview handle lifetime and a single aggregated result per batch.
package upload

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/supplyhub/backend/internal/core/ports"
	"github.com/supplyhub/backend/internal/domain"
	"github.com/supplyhub/backend/internal/infrastructure/logger"
)

// Observer receives the view-model stream and the settled result of a batch.
// Calls arrive from worker goroutines and must not block; BatchSettled runs
// before Batch.Done is closed, so it must not wait on the batch.
type Observer interface {
	TaskChanged(view domain.TaskView)
	BatchSettled(result *domain.BatchResult)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	OnTaskChanged  func(view domain.TaskView)
	OnBatchSettled func(result *domain.BatchResult)
}

func (o ObserverFuncs) TaskChanged(view domain.TaskView) {
	if o.OnTaskChanged != nil {
		o.OnTaskChanged(view)
	}
}

func (o ObserverFuncs) BatchSettled(result *domain.BatchResult) {
	if o.OnBatchSettled != nil {
		o.OnBatchSettled(result)
	}
}

type Config struct {
	Client           ports.TransferClient
	Previews         ports.PreviewStore
	Admission        *Admission
	ConcurrencyLimit int
	PreviewPolicy    domain.PreviewPolicy
	Logger           *logger.Logger
}

// Engine starts batches with a fixed configuration.
type Engine struct {
	client    ports.TransferClient
	previews  ports.PreviewStore
	admission *Admission
	limit     int
	policy    domain.PreviewPolicy
	log       *logger.Logger
}

func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Client == nil {
		return nil, ErrTransferClientMissing
	}
	if cfg.ConcurrencyLimit < 1 {
		cfg.ConcurrencyLimit = 1
	}
	if cfg.Admission == nil {
		cfg.Admission = &Admission{}
	}
	if cfg.PreviewPolicy == "" {
		cfg.PreviewPolicy = domain.PreviewPolicyDeferred
	}
	if !cfg.PreviewPolicy.Valid() {
		return nil, fmt.Errorf("upload: unknown preview policy %q", cfg.PreviewPolicy)
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNop()
	}
	return &Engine{
		client:    cfg.Client,
		previews:  cfg.Previews,
		admission: cfg.Admission,
		limit:     cfg.ConcurrencyLimit,
		policy:    cfg.PreviewPolicy,
		log:       cfg.Logger,
	}, nil
}

func (e *Engine) ConcurrencyLimit() int { return e.limit }

// Start admits files, creates a task with a preview for each accepted one and
// begins uploading. Rejected files are returned and never enter the queue.
// Canceling ctx cancels every task of the batch.
func (e *Engine) Start(ctx context.Context, files []domain.SourceFile, observer Observer) (*Batch, []domain.Rejection, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if observer == nil {
		observer = ObserverFuncs{}
	}

	b := &Batch{
		id:        uuid.New().String(),
		startedAt: time.Now(),
		client:    e.client,
		observer:  observer,
		log:       e.log,
		previews:  &previewLifecycle{store: e.previews, policy: e.policy, log: e.log},
		tasks:     make(map[string]*Task, len(files)),
		queue:     NewQueue(),
		done:      make(chan struct{}),
	}

	for _, f := range files {
		admitted, err := e.admission.Admit(f)
		if err != nil {
			reason := err.Error()
			var ve *domain.ValidationError
			if errors.As(err, &ve) {
				reason = ve.Reason
			}
			b.rejected = append(b.rejected, domain.Rejection{Name: f.Name, Size: int64(len(f.Content)), Reason: reason})
			e.log.Infow("upload_file_rejected", "batch_id", b.id, "name", f.Name, "reason", reason)
			continue
		}

		handle, err := b.previews.allocate(ctx, admitted)
		if err != nil {
			b.rejected = append(b.rejected, domain.Rejection{Name: admitted.Name, Size: admitted.Size, Reason: "preview_unavailable"})
			e.log.Warnw("upload_preview_allocate_failed", "batch_id", b.id, "name", admitted.Name, "error", err)
			continue
		}

		t := newTask(ctx, b.id, len(b.order), admitted, handle, b.notify)
		t.source.UploadID = t.id
		b.tasks[t.id] = t
		b.order = append(b.order, t)
	}

	e.log.Infow("upload_batch_started",
		"batch_id", b.id,
		"admitted", len(b.order),
		"rejected", len(b.rejected),
		"concurrency_limit", e.limit,
	)
	b.run(ctx, e.limit)
	return b, b.rejected, nil
}
