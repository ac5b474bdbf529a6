package domain

import "time"

type UploadStatus string

const (
	UploadStatusQueued    UploadStatus = "queued"
	UploadStatusUploading UploadStatus = "uploading"
	UploadStatusDone      UploadStatus = "done"
	UploadStatusError     UploadStatus = "error"
	UploadStatusCanceled  UploadStatus = "canceled"
)

// IsTerminal reports whether no further transition is allowed from s.
func (s UploadStatus) IsTerminal() bool {
	return s == UploadStatusDone || s == UploadStatusError || s == UploadStatusCanceled
}

// SourceFile is a local candidate asset offered for upload.
type SourceFile struct {
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type,omitempty"`
	Content     []byte `json:"-"`
	// UploadID is unique per upload attempt. Stores put it in the object key
	// so two uploads never share an object.
	UploadID string `json:"-"`
}

// StoredObject describes an asset accepted by the remote store.
type StoredObject struct {
	Key         string `json:"key"`
	URL         string `json:"url,omitempty"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type,omitempty"`
	ETag        string `json:"etag,omitempty"`
}

// TaskView is the read-only projection of a task used for live rendering.
type TaskView struct {
	ID              string       `json:"id"`
	BatchID         string       `json:"batch_id"`
	Name            string       `json:"name"`
	Size            int64        `json:"size"`
	ContentType     string       `json:"content_type,omitempty"`
	ProgressPercent int          `json:"progress_percent"`
	Status          UploadStatus `json:"status"`
	PreviewHandle   string       `json:"preview_handle,omitempty"`
	ErrorKind       ErrorKind    `json:"error_kind,omitempty"`
	ErrorMessage    string       `json:"error_message,omitempty"`
	AssetKey        string       `json:"asset_key,omitempty"`
	AssetURL        string       `json:"asset_url,omitempty"`
	AssetETag       string       `json:"asset_etag,omitempty"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// Rejection is a candidate refused at admission; it never became a task.
type Rejection struct {
	Name   string `json:"name"`
	Size   int64  `json:"size"`
	Reason string `json:"reason"`
}
