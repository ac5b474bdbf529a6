package storage

import (
	"bytes"
	"context"
	"io"

	"github.com/supplyhub/backend/internal/core/ports"
	"github.com/supplyhub/backend/internal/domain"
)

// ChunkSize is the write size used by the streaming stores.
const ChunkSize = 32 * 1024

// CopyChunks writes content to dst in ChunkSize pieces, reporting progress after
// each chunk and checking ctx between them.
func CopyChunks(ctx context.Context, op string, dst io.Writer, content []byte, progress ports.ProgressReporter) (int64, error) {
	total := int64(len(content))
	var written int64
	for written < total {
		if err := ctx.Err(); err != nil {
			return written, domain.NewTransferError(domain.ErrorKindCanceled, op, err)
		}
		end := written + ChunkSize
		if end > total {
			end = total
		}
		n, err := dst.Write(content[written:end])
		written += int64(n)
		if err != nil {
			return written, domain.NewNetworkError(op, err)
		}
		if progress != nil {
			progress.Update(written, total)
		}
	}
	return written, nil
}

// progressReader counts bytes handed to the SDK. Seeking resets the count so a
// retried request reports from the start again.
type progressReader struct {
	reader   *bytes.Reader
	progress ports.ProgressReporter
	total    int64
	read     int64
}

func newProgressReader(content []byte, progress ports.ProgressReporter) *progressReader {
	return &progressReader{
		reader:   bytes.NewReader(content),
		progress: progress,
		total:    int64(len(content)),
	}
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	if n > 0 {
		pr.read += int64(n)
		if pr.progress != nil {
			pr.progress.Update(pr.read, pr.total)
		}
	}
	return n, err
}

func (pr *progressReader) Seek(offset int64, whence int) (int64, error) {
	pos, err := pr.reader.Seek(offset, whence)
	if err == nil {
		pr.read = pos
	}
	return pos, err
}
