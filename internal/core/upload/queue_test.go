package upload

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/supplyhub/backend/internal/domain"
)

func queuedTasks(n int) []*Task {
	tasks := make([]*Task, 0, n)
	for i := 0; i < n; i++ {
		tasks = append(tasks, newTask(context.Background(), "batch-1", i, pngFile("f.png"), "", nil))
	}
	return tasks
}

func TestQueue_FIFO(t *testing.T) {
	q := NewQueue()
	tasks := queuedTasks(3)
	for _, task := range tasks {
		q.Enqueue(task)
	}
	assert.Equal(t, 3, q.Len())

	for i := range tasks {
		got, ok := q.DispatchNext()
		require.True(t, ok)
		assert.Same(t, tasks[i], got)
		assert.Equal(t, i+1, q.Active())
	}

	_, ok := q.DispatchNext()
	assert.False(t, ok)
	assert.Zero(t, q.Len())
}

func TestQueue_SkipsCanceled(t *testing.T) {
	q := NewQueue()
	tasks := queuedTasks(4)
	for _, task := range tasks {
		q.Enqueue(task)
	}
	tasks[0].requestCancel()
	tasks[2].requestCancel()

	got, ok := q.DispatchNext()
	require.True(t, ok)
	assert.Same(t, tasks[1], got)

	got, ok = q.DispatchNext()
	require.True(t, ok)
	assert.Same(t, tasks[3], got)

	_, ok = q.DispatchNext()
	assert.False(t, ok)
	assert.Equal(t, 2, q.Active())
}

func TestQueue_Complete(t *testing.T) {
	q := NewQueue()
	q.Enqueue(queuedTasks(1)[0])
	_, ok := q.DispatchNext()
	require.True(t, ok)
	assert.Equal(t, 1, q.Active())

	q.Complete()
	q.Complete()
	assert.Zero(t, q.Active())
}

func TestQueue_NotifiesOutsideLock(t *testing.T) {
	q := NewQueue()
	var activeSeen []int
	notify := func(task *Task, terminal bool) {
		// Reading queue state from an observer must not block.
		activeSeen = append(activeSeen, q.Active())
	}
	canceled := newTask(context.Background(), "batch-1", 0, pngFile("a.png"), "", notify)
	next := newTask(context.Background(), "batch-1", 1, pngFile("b.png"), "", notify)
	q.Enqueue(canceled)
	q.Enqueue(next)
	canceled.token.Cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		got, ok := q.DispatchNext()
		assert.True(t, ok)
		assert.Same(t, next, got)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("DispatchNext deadlocked on a notification reading the queue")
	}
	assert.Equal(t, []int{1, 1}, activeSeen, "the dropped task is announced after the next one took its slot")
	assert.Equal(t, domain.UploadStatusCanceled, canceled.Status())
}
