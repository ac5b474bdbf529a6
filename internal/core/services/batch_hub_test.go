package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/supplyhub/backend/internal/domain"
	"github.com/supplyhub/backend/internal/infrastructure/logger"
)

func emptySnapshot() domain.BatchSnapshot { return domain.BatchSnapshot{ID: "b1"} }

func drain(ch <-chan domain.BatchEvent) []domain.BatchEvent {
	var out []domain.BatchEvent
	for ev := range ch {
		out = append(out, ev)
	}
	return out
}

func TestBatchHub_PublishAndClose(t *testing.T) {
	hub := newBatchHub("b1", logger.NewNop())
	sub := hub.subscribe(emptySnapshot)
	assert.Equal(t, 1, hub.subscribers())

	hub.publishTask(domain.TaskView{ID: "t1", Status: domain.UploadStatusUploading})
	hub.close(domain.BatchSummary{BatchID: "b1", Succeeded: 1}, nil)
	hub.publishTask(domain.TaskView{ID: "t1", Status: domain.UploadStatusDone})

	events := drain(sub.Events)
	require.Len(t, events, 2)
	assert.Equal(t, "t1", events[0].Task.ID)
	assert.Equal(t, domain.BatchEventSettled, events[1].Type)
	assert.Zero(t, hub.subscribers())
}

func TestBatchHub_SlowSubscriberStillGetsSettled(t *testing.T) {
	hub := newBatchHub("b1", logger.NewNop())
	sub := hub.subscribe(emptySnapshot)

	for i := 0; i < subscriberBuffer*2; i++ {
		hub.publishTask(domain.TaskView{ID: "t1", ProgressPercent: i % 100})
	}
	hub.close(domain.BatchSummary{BatchID: "b1"}, nil)

	events := drain(sub.Events)
	require.Len(t, events, subscriberBuffer)
	assert.Equal(t, domain.BatchEventSettled, events[len(events)-1].Type)
}

func TestBatchHub_SubscribeAfterClose(t *testing.T) {
	hub := newBatchHub("b1", logger.NewNop())
	hub.close(domain.BatchSummary{BatchID: "b1", Failed: 1}, []domain.Notice{{Level: domain.NoticeLevelError, Message: "x"}})

	sub := hub.subscribe(emptySnapshot)
	events := drain(sub.Events)
	require.Len(t, events, 1)
	assert.Equal(t, 1, events[0].Summary.Failed)
	assert.Len(t, events[0].Notices, 1)
	sub.Cancel()
}

func TestBatchHub_Unsubscribe(t *testing.T) {
	hub := newBatchHub("b1", logger.NewNop())
	sub := hub.subscribe(emptySnapshot)
	sub.Cancel()
	sub.Cancel()

	_, ok := <-sub.Events
	assert.False(t, ok)
	assert.Zero(t, hub.subscribers())

	hub.publishTask(domain.TaskView{ID: "t1"})
	hub.close(domain.BatchSummary{}, nil)
}
