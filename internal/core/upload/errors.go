package upload

import (
	"context"
	"errors"
	"net"
	"os"

	"github.com/supplyhub/backend/internal/domain"
)

var (
	ErrInvalidTransition     = errors.New("upload: invalid status transition")
	ErrTaskNotFound          = errors.New("upload: task not found")
	ErrTaskNotTerminal       = errors.New("upload: task has not reached a terminal state")
	ErrPreviewReleased       = errors.New("upload: preview already released")
	ErrTransferClientMissing = errors.New("upload: transfer client is required")
	ErrEmptyResult           = errors.New("upload: transfer client returned no object")
)

// Classify maps a transfer failure onto the error taxonomy. Errors the client did
// not classify itself are treated as network failures.
func Classify(err error) domain.ErrorKind {
	if err == nil {
		return ""
	}
	var te *domain.TransferError
	if errors.As(err, &te) && te.Kind != "" {
		return te.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, domain.ErrTransferCanceled) {
		return domain.ErrorKindCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return domain.ErrorKindTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return domain.ErrorKindTimeout
	}
	return domain.ErrorKindNetwork
}

// messageOf is the text stored on a task in the error state.
func messageOf(err error) string {
	var te *domain.TransferError
	if errors.As(err, &te) {
		return te.UserMessage()
	}
	return err.Error()
}
