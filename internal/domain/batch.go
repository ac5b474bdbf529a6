package domain

import (
	"fmt"
	"strings"
	"time"
)

// BatchResult is the single aggregated outcome of a settled batch.
type BatchResult struct {
	BatchID   string      `json:"batch_id"`
	Succeeded []TaskView  `json:"succeeded"`
	Failed    []TaskView  `json:"failed"`
	Canceled  []TaskView  `json:"canceled"`
	Rejected  []Rejection `json:"rejected"`
	StartedAt time.Time   `json:"started_at"`
	SettledAt time.Time   `json:"settled_at"`
}

// Total is the number of admitted tasks accounted for by the result.
func (r *BatchResult) Total() int {
	return len(r.Succeeded) + len(r.Failed) + len(r.Canceled)
}

func (r *BatchResult) Summary() BatchSummary {
	s := BatchSummary{
		BatchID:   r.BatchID,
		Succeeded: len(r.Succeeded),
		Failed:    len(r.Failed),
		Canceled:  len(r.Canceled),
	}
	for _, t := range r.Failed {
		s.FailedNames = append(s.FailedNames, t.Name)
	}
	return s
}

type NoticeLevel string

const (
	NoticeLevelSuccess NoticeLevel = "success"
	NoticeLevelError   NoticeLevel = "error"
)

type Notice struct {
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
}

// BatchSummary is handed to observers once per settled batch.
type BatchSummary struct {
	BatchID     string   `json:"batch_id"`
	Succeeded   int      `json:"succeeded"`
	Failed      int      `json:"failed"`
	Canceled    int      `json:"canceled"`
	FailedNames []string `json:"failed_names,omitempty"`
}

// Notices returns at most one success notice and one failure notice.
// Canceled items never produce a notice.
func (s BatchSummary) Notices() []Notice {
	var notices []Notice
	if s.Succeeded > 0 {
		noun := "files"
		if s.Succeeded == 1 {
			noun = "file"
		}
		notices = append(notices, Notice{
			Level:   NoticeLevelSuccess,
			Message: fmt.Sprintf("upload complete: %d %s uploaded", s.Succeeded, noun),
		})
	}
	if s.Failed > 0 {
		notices = append(notices, Notice{
			Level:   NoticeLevelError,
			Message: "some uploads failed: " + strings.Join(s.FailedNames, ", "),
		})
	}
	return notices
}

// BatchSnapshot is a point-in-time view of a batch for the API.
type BatchSnapshot struct {
	ID        string        `json:"id"`
	StartedAt time.Time     `json:"started_at"`
	Settled   bool          `json:"settled"`
	Tasks     []TaskView    `json:"tasks"`
	Rejected  []Rejection   `json:"rejected,omitempty"`
	Summary   *BatchSummary `json:"summary,omitempty"`
	Notices   []Notice      `json:"notices,omitempty"`
}

type BatchEventType string

const (
	BatchEventTask    BatchEventType = "task"
	BatchEventSettled BatchEventType = "settled"
)

type BatchEvent struct {
	Type    BatchEventType `json:"type"`
	Task    *TaskView      `json:"task,omitempty"`
	Summary *BatchSummary  `json:"summary,omitempty"`
	Notices []Notice       `json:"notices,omitempty"`
}

// Subscription delivers the live events of one batch. Events is closed after the
// settled event or when Cancel is called.
type Subscription struct {
	ID       string
	Snapshot BatchSnapshot
	Events   <-chan BatchEvent
	Cancel   func()
}
