package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
)

// ==================== ENUMS ====================

type BatchOutcome string

const (
	BatchOutcomeSucceeded BatchOutcome = "succeeded"
	BatchOutcomePartial   BatchOutcome = "partial"
	BatchOutcomeFailed    BatchOutcome = "failed"
	BatchOutcomeCanceled  BatchOutcome = "canceled"
	BatchOutcomeEmpty     BatchOutcome = "empty"
)

// ==================== JSON TYPES ====================

type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("failed to scan StringList: invalid type")
	}
	return json.Unmarshal(raw, (*[]string)(l))
}

// ==================== ENTITIES ====================

// StoredAsset is one entry of the canonical collection held by the remote store.
type StoredAsset struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Key         string `gorm:"size:512;uniqueIndex;not null" json:"key"`
	Name        string `gorm:"size:255;not null" json:"name"`
	Size        int64  `json:"size"`
	ContentType string `gorm:"size:100" json:"content_type"`
	URL         string `gorm:"type:text" json:"url"`
	ETag        string `gorm:"size:255" json:"etag,omitempty"`
	Backend     string `gorm:"size:20" json:"backend"`
	BatchID     string `gorm:"size:64;index" json:"batch_id"`
}

// BatchRecord is the persisted history row written once per settled batch.
type BatchRecord struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	BatchID     string       `gorm:"size:64;uniqueIndex;not null" json:"batch_id"`
	Outcome     BatchOutcome `gorm:"size:20;not null;index" json:"outcome"`
	Admitted    int          `json:"admitted"`
	Rejected    int          `json:"rejected"`
	Succeeded   int          `json:"succeeded"`
	Failed      int          `json:"failed"`
	Canceled    int          `json:"canceled"`
	FailedNames StringList   `gorm:"type:text" json:"failed_names"`
	StartedAt   time.Time    `json:"started_at"`
	SettledAt   time.Time    `json:"settled_at"`
}

type SystemSetting struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Key      string `gorm:"size:255;uniqueIndex;not null" json:"key"`
	Value    string `gorm:"type:text" json:"value"`
	Type     string `gorm:"size:50;default:'string'" json:"type"`
	Category string `gorm:"size:100;index" json:"category"`
}

// OutcomeOf classifies a settled batch for the history table.
func OutcomeOf(r *BatchResult) BatchOutcome {
	total := len(r.Succeeded) + len(r.Failed) + len(r.Canceled)
	switch {
	case total == 0:
		return BatchOutcomeEmpty
	case len(r.Succeeded) == total:
		return BatchOutcomeSucceeded
	case len(r.Canceled) == total:
		return BatchOutcomeCanceled
	case len(r.Succeeded) == 0 && len(r.Failed) > 0:
		return BatchOutcomeFailed
	default:
		return BatchOutcomePartial
	}
}
