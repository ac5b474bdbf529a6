package upload

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/supplyhub/backend/internal/core/ports"
	"github.com/supplyhub/backend/internal/domain"
	"github.com/supplyhub/backend/internal/infrastructure/logger"
)

const orphanRemoveTimeout = 30 * time.Second

// Batch is one submission: its tasks, queue, worker pool and result. It is torn
// down once the result has been emitted.
type Batch struct {
	id        string
	startedAt time.Time
	client    ports.TransferClient
	previews  *previewLifecycle
	observer  Observer
	log       *logger.Logger

	// tasks and order are fixed before run and read-only afterwards.
	tasks    map[string]*Task
	order    []*Task
	rejected []domain.Rejection

	queue *Queue
	pool  *workerPool
	agg   *aggregator
	// cleanup tracks orphan removals running outside the worker slots.
	cleanup sync.WaitGroup

	done   chan struct{}
	result *domain.BatchResult
}

func (b *Batch) run(ctx context.Context, limit int) {
	b.agg = newAggregator(len(b.order))
	for _, t := range b.order {
		b.queue.Enqueue(t)
	}
	b.pool = newWorkerPool(limit, b.queue, b.drive)
	b.pool.start()
	go b.watch(ctx)
	go b.settle()
}

func (b *Batch) watch(ctx context.Context) {
	select {
	case <-ctx.Done():
		b.log.Infow("upload_batch_context_done", "batch_id", b.id, "error", ctx.Err())
		b.CancelAll()
	case <-b.done:
	}
}

func (b *Batch) settle() {
	result := b.agg.collect(b.id, b.startedAt)
	b.pool.wait()
	b.cleanup.Wait()
	result.Rejected = b.rejected

	for _, t := range b.order {
		t.token.Cancel()
	}
	b.result = result

	b.log.Infow("upload_batch_settled",
		"batch_id", b.id,
		"succeeded", len(result.Succeeded),
		"failed", len(result.Failed),
		"canceled", len(result.Canceled),
		"duration_ms", result.SettledAt.Sub(b.startedAt).Milliseconds(),
	)
	b.observer.BatchSettled(result)
	close(b.done)
}

func (b *Batch) notify(t *Task, terminal bool) {
	if terminal {
		b.previews.onTerminal(t)
	}
	b.observer.TaskChanged(t.View())
	if terminal {
		b.agg.record(t)
	}
}

// drive runs one dispatched task through the transfer client.
func (b *Batch) drive(worker int, t *Task) {
	started := time.Now()
	b.log.Debugw("upload_task_started", "batch_id", b.id, "task_id", t.id, "name", t.source.Name, "worker", worker)

	obj, err := b.transfer(t)
	status, orphan := t.finish(obj, err)

	switch status {
	case domain.UploadStatusDone:
		b.log.Infow("upload_task_done",
			"batch_id", b.id,
			"task_id", t.id,
			"name", t.source.Name,
			"key", obj.Key,
			"duration_ms", time.Since(started).Milliseconds(),
		)
	case domain.UploadStatusError:
		v := t.View()
		b.log.Warnw("upload_task_failed",
			"batch_id", b.id,
			"task_id", t.id,
			"name", t.source.Name,
			"kind", v.ErrorKind,
			"error", v.ErrorMessage,
		)
	case domain.UploadStatusCanceled:
		b.log.Infow("upload_task_canceled", "batch_id", b.id, "task_id", t.id, "name", t.source.Name)
	}

	if orphan {
		b.cleanup.Add(1)
		go func() {
			defer b.cleanup.Done()
			b.removeOrphan(t, obj)
		}()
	}
}

func (b *Batch) transfer(t *Task) (obj *domain.StoredObject, err error) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Errorw("upload_transfer_panic", "batch_id", b.id, "task_id", t.id, "panic", r, "stack", string(debug.Stack()))
			obj = nil
			err = domain.NewTransferError(domain.ErrorKindNetwork, "upload", fmt.Errorf("transfer panicked: %v", r))
		}
	}()
	return b.client.Upload(t.token.Context(), t.source, taskProgress{task: t})
}

// removeOrphan deletes an object stored for a task that was canceled while the
// transfer completed.
func (b *Batch) removeOrphan(t *Task, obj *domain.StoredObject) {
	remover, ok := b.client.(ports.ObjectRemover)
	if !ok {
		b.log.Warnw("upload_orphan_kept", "batch_id", b.id, "task_id", t.id, "key", obj.Key)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), orphanRemoveTimeout)
	defer cancel()
	if err := remover.Remove(ctx, obj.Key); err != nil {
		b.log.Warnw("upload_orphan_remove_failed", "batch_id", b.id, "task_id", t.id, "key", obj.Key, "error", err)
		return
	}
	b.log.Infow("upload_orphan_removed", "batch_id", b.id, "task_id", t.id, "key", obj.Key)
}

func (b *Batch) ID() string { return b.id }

func (b *Batch) StartedAt() time.Time { return b.startedAt }

func (b *Batch) Len() int { return len(b.order) }

// Pending is the number of tasks still waiting in the queue.
func (b *Batch) Pending() int { return b.queue.Len() }

// Active is the number of worker slots currently driving a task.
func (b *Batch) Active() int { return b.queue.Active() }

func (b *Batch) Rejected() []domain.Rejection {
	return append([]domain.Rejection(nil), b.rejected...)
}

// Cancel requests cancellation of one task. Canceling a terminal task is a no-op.
func (b *Batch) Cancel(taskID string) error {
	t, ok := b.tasks[taskID]
	if !ok {
		return ErrTaskNotFound
	}
	t.requestCancel()
	return nil
}

func (b *Batch) CancelAll() {
	for _, t := range b.order {
		t.requestCancel()
	}
}

// Views returns the task projections in enqueue order.
func (b *Batch) Views() []domain.TaskView {
	out := make([]domain.TaskView, 0, len(b.order))
	for _, t := range b.order {
		out = append(out, t.View())
	}
	return out
}

func (b *Batch) Task(taskID string) (domain.TaskView, error) {
	t, ok := b.tasks[taskID]
	if !ok {
		return domain.TaskView{}, ErrTaskNotFound
	}
	return t.View(), nil
}

// Done is closed after the result has been emitted.
func (b *Batch) Done() <-chan struct{} { return b.done }

func (b *Batch) Settled() bool {
	select {
	case <-b.done:
		return true
	default:
		return false
	}
}

func (b *Batch) Wait(ctx context.Context) (*domain.BatchResult, error) {
	select {
	case <-b.done:
		return b.result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (b *Batch) Result() (*domain.BatchResult, bool) {
	if !b.Settled() {
		return nil, false
	}
	return b.result, true
}

// Summary is the per-batch outcome handed to observers; nil until settled.
func (b *Batch) Summary() *domain.BatchSummary {
	res, ok := b.Result()
	if !ok {
		return nil
	}
	s := res.Summary()
	return &s
}

// ReleasePreview frees the preview of a terminal task whose release was
// deferred.
func (b *Batch) ReleasePreview(taskID string) error {
	t, ok := b.tasks[taskID]
	if !ok {
		return ErrTaskNotFound
	}
	return b.previews.release(t)
}

// ReleaseSettledPreviews frees every preview still held by a terminal task.
func (b *Batch) ReleaseSettledPreviews() error {
	var errs []error
	for _, t := range b.order {
		if !t.Status().IsTerminal() || !t.previewPending() {
			continue
		}
		if err := b.previews.release(t); err != nil && !errors.Is(err, ErrPreviewReleased) {
			errs = append(errs, fmt.Errorf("task %s: %w", t.id, err))
		}
	}
	return errors.Join(errs...)
}
