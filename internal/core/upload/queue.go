package upload

import "sync"

// Queue holds tasks awaiting a worker slot in enqueue order. It also counts the
// slots in use; both are only touched under mu.
type Queue struct {
	mu      sync.Mutex
	pending []*Task
	active  int
}

func NewQueue() *Queue {
	return &Queue{}
}

func (q *Queue) Enqueue(t *Task) {
	q.mu.Lock()
	q.pending = append(q.pending, t)
	q.mu.Unlock()
}

// DispatchNext removes the earliest task that is still queued and marks it
// uploading. Tasks canceled while waiting are dropped without taking a slot.
// Observers are notified after mu is released.
func (q *Queue) DispatchNext() (*Task, bool) {
	var next *Task
	var dropped []*Task

	q.mu.Lock()
	for len(q.pending) > 0 {
		t := q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]
		started, changed := t.begin()
		if started {
			q.active++
			next = t
			break
		}
		if changed {
			dropped = append(dropped, t)
		}
	}
	q.mu.Unlock()

	for _, t := range dropped {
		t.notify(t, true)
	}
	if next == nil {
		return nil, false
	}
	next.notify(next, false)
	return next, true
}

// Complete frees the slot taken by a dispatched task.
func (q *Queue) Complete() {
	q.mu.Lock()
	if q.active > 0 {
		q.active--
	}
	q.mu.Unlock()
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (q *Queue) Active() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.active
}
