package domain

// PreviewPolicy decides when a successful task's preview is released.
type PreviewPolicy string

const (
	// PreviewPolicyImmediate releases the preview in the done transition.
	PreviewPolicyImmediate PreviewPolicy = "immediate"
	// PreviewPolicyDeferred leaves the release to the caller, after the
	// canonical collection has been refreshed.
	PreviewPolicyDeferred PreviewPolicy = "deferred"
)

func (p PreviewPolicy) Valid() bool {
	return p == PreviewPolicyImmediate || p == PreviewPolicyDeferred
}

// UploadPolicy is the effective admission and scheduling policy for a new batch.
type UploadPolicy struct {
	ConcurrencyLimit int           `json:"concurrency_limit"`
	MaxBytes         int64         `json:"max_bytes"`
	AllowedTypes     []string      `json:"allowed_types"`
	PreviewPolicy    PreviewPolicy `json:"preview_policy"`
}

type UploadPolicyUpdate struct {
	ConcurrencyLimit *int     `json:"concurrency_limit,omitempty"`
	MaxBytes         *int64   `json:"max_bytes,omitempty"`
	AllowedTypes     []string `json:"allowed_types,omitempty"`
}
