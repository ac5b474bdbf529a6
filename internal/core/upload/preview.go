package upload

import (
	"context"
	"errors"

	"github.com/supplyhub/backend/internal/core/ports"
	"github.com/supplyhub/backend/internal/domain"
	"github.com/supplyhub/backend/internal/infrastructure/logger"
)

// previewLifecycle ties preview handles to task lifetime: acquired at creation,
// released once on every terminal exit path.
type previewLifecycle struct {
	store  ports.PreviewStore
	policy domain.PreviewPolicy
	log    *logger.Logger
}

func (p *previewLifecycle) allocate(ctx context.Context, file domain.SourceFile) (string, error) {
	if p.store == nil {
		return "", nil
	}
	return p.store.Allocate(ctx, file)
}

// onTerminal releases error and canceled previews right away; done previews
// follow the policy.
func (p *previewLifecycle) onTerminal(t *Task) {
	if t.Status() == domain.UploadStatusDone && p.policy == domain.PreviewPolicyDeferred {
		return
	}
	if err := p.release(t); err != nil && !errors.Is(err, ErrPreviewReleased) {
		p.log.Warnw("upload_preview_release_failed", "task_id", t.id, "error", err)
	}
}

func (p *previewLifecycle) release(t *Task) error {
	return t.releasePreview(func(handle string) error {
		if p.store == nil {
			return nil
		}
		return p.store.Release(handle)
	})
}
