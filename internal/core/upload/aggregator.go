package upload

import (
	"sort"
	"time"

	"github.com/supplyhub/backend/internal/domain"
)

// aggregator is the single consumer of terminal transitions. It settles once
// every admitted task has reported.
type aggregator struct {
	expected int
	events   chan *Task
}

func newAggregator(expected int) *aggregator {
	// Each task reports once, so a buffer of expected never blocks a sender.
	return &aggregator{
		expected: expected,
		events:   make(chan *Task, expected),
	}
}

func (a *aggregator) record(t *Task) {
	a.events <- t
}

// collect blocks until all tasks are terminal and returns them bucketed.
func (a *aggregator) collect(batchID string, startedAt time.Time) *domain.BatchResult {
	var succeeded, failed, canceled []*Task
	seen := make(map[string]struct{}, a.expected)

	for len(seen) < a.expected {
		t := <-a.events
		if _, dup := seen[t.id]; dup {
			continue
		}
		seen[t.id] = struct{}{}
		switch t.Status() {
		case domain.UploadStatusDone:
			succeeded = append(succeeded, t)
		case domain.UploadStatusError:
			failed = append(failed, t)
		case domain.UploadStatusCanceled:
			canceled = append(canceled, t)
		}
	}

	return &domain.BatchResult{
		BatchID:   batchID,
		Succeeded: views(succeeded),
		Failed:    views(failed),
		Canceled:  views(canceled),
		StartedAt: startedAt,
		SettledAt: time.Now(),
	}
}

// views projects tasks in enqueue order, whatever order they completed in.
func views(tasks []*Task) []domain.TaskView {
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].index < tasks[j].index })
	out := make([]domain.TaskView, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.View())
	}
	return out
}
