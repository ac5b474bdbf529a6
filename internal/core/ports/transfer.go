package ports

import (
	"context"

	"github.com/supplyhub/backend/internal/domain"
)

// ProgressReporter receives non-blocking transfer progress notifications.
type ProgressReporter interface {
	Update(bytesTransferred, totalBytes int64)
}

// TransferClient moves the bytes of one file to the remote store. The context is the
// task's cancellation token and must be checked between chunks.
type TransferClient interface {
	Upload(ctx context.Context, file domain.SourceFile, progress ProgressReporter) (*domain.StoredObject, error)
}

// ObjectRemover is implemented by transfer clients that can delete stored objects.
type ObjectRemover interface {
	Remove(ctx context.Context, key string) error
}

// PreviewStore allocates ephemeral local previews for files awaiting upload.
type PreviewStore interface {
	Allocate(ctx context.Context, file domain.SourceFile) (string, error)
	Release(handle string) error
}
