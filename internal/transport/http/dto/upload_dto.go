package dto

import (
	"time"

	"github.com/supplyhub/backend/internal/domain"
)

type ErrorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

// SubmitBatchResponse is returned for an accepted batch. Rejected files are
// listed next to it; they never became tasks.
type SubmitBatchResponse struct {
	Batch    *domain.BatchSnapshot `json:"batch"`
	Rejected []domain.Rejection    `json:"rejected"`
}

type RejectedBatchResponse struct {
	Error    string             `json:"error"`
	Rejected []domain.Rejection `json:"rejected"`
}

type UpdateUploadPolicyRequest struct {
	ConcurrencyLimit *int     `json:"concurrency_limit,omitempty"`
	MaxBytes         *int64   `json:"max_bytes,omitempty"`
	AllowedTypes     []string `json:"allowed_types,omitempty"`
}

func (r *UpdateUploadPolicyRequest) Validate() []string {
	var errors []string
	if r.ConcurrencyLimit == nil && r.MaxBytes == nil && r.AllowedTypes == nil {
		errors = append(errors, "at least one of concurrency_limit, max_bytes or allowed_types is required")
	}
	if r.ConcurrencyLimit != nil && *r.ConcurrencyLimit < 1 {
		errors = append(errors, "concurrency_limit must be at least 1")
	}
	if r.MaxBytes != nil && *r.MaxBytes < 0 {
		errors = append(errors, "max_bytes must not be negative")
	}
	return errors
}

func (r *UpdateUploadPolicyRequest) ToDomain() domain.UploadPolicyUpdate {
	return domain.UploadPolicyUpdate{
		ConcurrencyLimit: r.ConcurrencyLimit,
		MaxBytes:         r.MaxBytes,
		AllowedTypes:     r.AllowedTypes,
	}
}

type AssetResponse struct {
	ID          uint      `json:"id"`
	Key         string    `json:"key"`
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	URL         string    `json:"url"`
	ETag        string    `json:"etag,omitempty"`
	Backend     string    `json:"backend"`
	BatchID     string    `json:"batch_id"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func AssetToResponse(a *domain.StoredAsset) AssetResponse {
	return AssetResponse{
		ID:          a.ID,
		Key:         a.Key,
		Name:        a.Name,
		Size:        a.Size,
		ContentType: a.ContentType,
		URL:         a.URL,
		ETag:        a.ETag,
		Backend:     a.Backend,
		BatchID:     a.BatchID,
		UpdatedAt:   a.UpdatedAt,
	}
}

func AssetsToResponse(assets []domain.StoredAsset) []AssetResponse {
	out := make([]AssetResponse, 0, len(assets))
	for i := range assets {
		out = append(out, AssetToResponse(&assets[i]))
	}
	return out
}

const (
	StreamSnapshot = "snapshot"
	StreamError    = "error"
)

// StreamMessage is one frame of the batch websocket. The first frame is the
// snapshot; task and settled frames follow, mirroring domain.BatchEvent.
type StreamMessage struct {
	Type    string                `json:"type"`
	Batch   *domain.BatchSnapshot `json:"batch,omitempty"`
	Task    *domain.TaskView      `json:"task,omitempty"`
	Summary *domain.BatchSummary  `json:"summary,omitempty"`
	Notices []domain.Notice       `json:"notices,omitempty"`
	Error   string                `json:"error,omitempty"`
}

func EventToMessage(ev domain.BatchEvent) StreamMessage {
	return StreamMessage{
		Type:    string(ev.Type),
		Task:    ev.Task,
		Summary: ev.Summary,
		Notices: ev.Notices,
	}
}
