package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a transfer did not succeed.
type ErrorKind string

const (
	ErrorKindNetwork    ErrorKind = "network"
	ErrorKindValidation ErrorKind = "validation"
	ErrorKindServer     ErrorKind = "server"
	ErrorKindTimeout    ErrorKind = "timeout"
	ErrorKindCanceled   ErrorKind = "canceled"
)

var (
	ErrTransferNetwork  = errors.New("transfer: network failure")
	ErrTransferServer   = errors.New("transfer: server error")
	ErrTransferTimeout  = errors.New("transfer: timed out")
	ErrTransferCanceled = errors.New("transfer: canceled")
)

// TransferError is the classified failure a transfer client reports.
type TransferError struct {
	Kind ErrorKind
	// Op is the client operation that failed (e.g. "put", "create", "copy").
	Op string
	// Message is the remote-provided explanation, when there is one.
	Message string
	Err     error
}

func (e *TransferError) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s %s: %s: %v", e.Kind, e.Op, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s %s: %s", e.Kind, e.Op, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s %s: %v", e.Kind, e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s", e.Kind, e.Op)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// UserMessage is the text shown next to a failed item.
func (e *TransferError) UserMessage() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind) + " error"
}

func NewTransferError(kind ErrorKind, op string, err error) *TransferError {
	return &TransferError{Kind: kind, Op: op, Err: err}
}

func NewServerError(op, message string) *TransferError {
	return &TransferError{Kind: ErrorKindServer, Op: op, Message: message, Err: ErrTransferServer}
}

func NewNetworkError(op string, err error) *TransferError {
	return &TransferError{Kind: ErrorKindNetwork, Op: op, Err: fmt.Errorf("%w: %w", ErrTransferNetwork, err)}
}

func NewTimeoutError(op string, err error) *TransferError {
	return &TransferError{Kind: ErrorKindTimeout, Op: op, Err: fmt.Errorf("%w: %w", ErrTransferTimeout, err)}
}

// ValidationError rejects a candidate file at admission.
type ValidationError struct {
	Name   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Name, e.Reason)
}
