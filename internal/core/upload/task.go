package upload

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/supplyhub/backend/internal/domain"
)

var transitions = map[domain.UploadStatus][]domain.UploadStatus{
	domain.UploadStatusQueued:    {domain.UploadStatusUploading, domain.UploadStatusCanceled},
	domain.UploadStatusUploading: {domain.UploadStatusDone, domain.UploadStatusError, domain.UploadStatusCanceled},
}

func canTransition(from, to domain.UploadStatus) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// CancelToken is the cooperative cancellation handle of one task. Its context is
// what the transfer client observes.
type CancelToken struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func newCancelToken(parent context.Context) *CancelToken {
	ctx, cancel := context.WithCancel(parent)
	return &CancelToken{ctx: ctx, cancel: cancel}
}

func (c *CancelToken) Context() context.Context { return c.ctx }

func (c *CancelToken) Cancel() { c.cancel() }

// Requested reports whether cancellation was signalled on this task or its batch.
func (c *CancelToken) Requested() bool { return c.ctx.Err() != nil }

// notifyFunc is invoked outside the task lock after every accepted change.
type notifyFunc func(t *Task, terminal bool)

// Task is one admitted file and its transfer state machine.
type Task struct {
	id      string
	batchID string
	index   int
	source  domain.SourceFile
	token   *CancelToken
	notify  notifyFunc

	mu              sync.Mutex
	status          domain.UploadStatus
	progress        int
	errKind         domain.ErrorKind
	errMsg          string
	object          *domain.StoredObject
	preview         string
	previewReleased bool
	updatedAt       time.Time
}

func newTask(ctx context.Context, batchID string, index int, source domain.SourceFile, preview string, notify notifyFunc) *Task {
	if notify == nil {
		notify = func(*Task, bool) {}
	}
	return &Task{
		id:        uuid.New().String(),
		batchID:   batchID,
		index:     index,
		source:    source,
		token:     newCancelToken(ctx),
		notify:    notify,
		status:    domain.UploadStatusQueued,
		preview:   preview,
		updatedAt: time.Now(),
	}
}

func (t *Task) ID() string { return t.id }

func (t *Task) Token() *CancelToken { return t.token }

func (t *Task) Status() domain.UploadStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

func (t *Task) View() domain.TaskView {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.viewLocked()
}

func (t *Task) viewLocked() domain.TaskView {
	v := domain.TaskView{
		ID:              t.id,
		BatchID:         t.batchID,
		Name:            t.source.Name,
		Size:            t.source.Size,
		ContentType:     t.source.ContentType,
		ProgressPercent: t.progress,
		Status:          t.status,
		ErrorKind:       t.errKind,
		ErrorMessage:    t.errMsg,
		UpdatedAt:       t.updatedAt,
	}
	if !t.previewReleased {
		v.PreviewHandle = t.preview
	}
	if t.object != nil {
		v.AssetKey = t.object.Key
		v.AssetURL = t.object.URL
		v.AssetETag = t.object.ETag
	}
	return v
}

// transitionLocked moves the task to the target status; the caller holds t.mu.
func (t *Task) transitionLocked(to domain.UploadStatus) error {
	if !canTransition(t.status, to) {
		return ErrInvalidTransition
	}
	t.status = to
	t.updatedAt = time.Now()
	return nil
}

// begin moves a queued task to uploading. A task whose token already fired is
// canceled instead. changed reports a transition the caller must announce with
// notify once it holds no other lock.
func (t *Task) begin() (started, changed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != domain.UploadStatusQueued {
		return false, false
	}
	if t.token.Requested() {
		_ = t.transitionLocked(domain.UploadStatusCanceled)
		return false, true
	}
	_ = t.transitionLocked(domain.UploadStatusUploading)
	return true, true
}

// requestCancel cancels a queued task outright and signals an uploading one.
// Terminal tasks are left alone.
func (t *Task) requestCancel() {
	t.mu.Lock()
	switch t.status {
	case domain.UploadStatusQueued:
		_ = t.transitionLocked(domain.UploadStatusCanceled)
		t.mu.Unlock()
		t.token.Cancel()
		t.notify(t, true)
	case domain.UploadStatusUploading:
		t.mu.Unlock()
		t.token.Cancel()
	default:
		t.mu.Unlock()
	}
}

// updateProgress records percent while uploading. Late, stale or out-of-order
// updates are discarded.
func (t *Task) updateProgress(percent int) bool {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	t.mu.Lock()
	if t.status != domain.UploadStatusUploading || t.token.Requested() || percent <= t.progress {
		t.mu.Unlock()
		return false
	}
	t.progress = percent
	t.updatedAt = time.Now()
	t.mu.Unlock()
	t.notify(t, false)
	return true
}

// finish applies the outcome of the transfer. It reports whether the remote store
// kept an object for a task that ended canceled.
func (t *Task) finish(obj *domain.StoredObject, err error) (status domain.UploadStatus, orphan bool) {
	if err == nil && obj == nil {
		err = domain.NewServerError("upload", ErrEmptyResult.Error())
	}
	kind := Classify(err)

	t.mu.Lock()
	switch {
	case t.token.Requested() || kind == domain.ErrorKindCanceled:
		orphan = err == nil
		if e := t.transitionLocked(domain.UploadStatusCanceled); e != nil {
			t.mu.Unlock()
			return t.Status(), false
		}
		if orphan {
			t.object = obj
		}
	case err != nil:
		if e := t.transitionLocked(domain.UploadStatusError); e != nil {
			t.mu.Unlock()
			return t.Status(), false
		}
		t.errKind = kind
		t.errMsg = messageOf(err)
	default:
		if e := t.transitionLocked(domain.UploadStatusDone); e != nil {
			t.mu.Unlock()
			return t.Status(), false
		}
		t.object = obj
		t.progress = 100
	}
	status = t.status
	t.mu.Unlock()

	t.notify(t, true)
	return status, orphan
}

// releasePreview frees the preview handle exactly once, never before the task
// is terminal.
func (t *Task) releasePreview(release func(handle string) error) error {
	t.mu.Lock()
	if !t.status.IsTerminal() {
		t.mu.Unlock()
		return ErrTaskNotTerminal
	}
	if t.previewReleased {
		t.mu.Unlock()
		return ErrPreviewReleased
	}
	t.previewReleased = true
	handle := t.preview
	t.mu.Unlock()

	if handle == "" {
		return nil
	}
	return release(handle)
}

func (t *Task) previewPending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.previewReleased
}

// taskProgress adapts byte counts from the transfer client into percentages.
type taskProgress struct {
	task *Task
}

func (p taskProgress) Update(bytesTransferred, totalBytes int64) {
	if totalBytes <= 0 {
		return
	}
	p.task.updateProgress(int(bytesTransferred * 100 / totalBytes))
}
