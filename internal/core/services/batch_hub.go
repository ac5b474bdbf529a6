package services

import (
	"sync"

	"github.com/google/uuid"
	"github.com/supplyhub/backend/internal/domain"
	"github.com/supplyhub/backend/internal/infrastructure/logger"
)

const subscriberBuffer = 128

// batchHub fans the events of one batch out to its subscribers. Publishing never
// blocks: a subscriber that falls behind loses intermediate task events, but
// always receives the settled event.
type batchHub struct {
	batchID string
	log     *logger.Logger

	mu     sync.Mutex
	subs   map[string]chan domain.BatchEvent
	closed bool
	final  domain.BatchEvent
}

func newBatchHub(batchID string, log *logger.Logger) *batchHub {
	return &batchHub{
		batchID: batchID,
		log:     log,
		subs:    make(map[string]chan domain.BatchEvent),
	}
}

func (h *batchHub) publishTask(view domain.TaskView) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	ev := domain.BatchEvent{Type: domain.BatchEventTask, Task: &view}
	for id, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			h.log.Debugw("batch_hub_event_dropped", "batch_id", h.batchID, "subscriber", id, "task_id", view.ID)
		}
	}
}

// close delivers the settled event and ends every subscription.
func (h *batchHub) close(summary domain.BatchSummary, notices []domain.Notice) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	h.final = domain.BatchEvent{Type: domain.BatchEventSettled, Summary: &summary, Notices: notices}
	for id, ch := range h.subs {
		deliverFinal(ch, h.final)
		close(ch)
		delete(h.subs, id)
	}
}

// deliverFinal makes room for the settled event by dropping the oldest queued one.
func deliverFinal(ch chan domain.BatchEvent, ev domain.BatchEvent) {
	for {
		select {
		case ch <- ev:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// subscribe registers a subscriber. snapshot is taken under the hub lock so no
// event published afterwards is missing from the stream.
func (h *batchHub) subscribe(snapshot func() domain.BatchSnapshot) *domain.Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := uuid.New().String()
	ch := make(chan domain.BatchEvent, subscriberBuffer)
	sub := &domain.Subscription{
		ID:       id,
		Snapshot: snapshot(),
		Events:   ch,
	}

	if h.closed {
		ch <- h.final
		close(ch)
		sub.Cancel = func() {}
		return sub
	}

	h.subs[id] = ch
	sub.Cancel = func() { h.unsubscribe(id) }
	return sub
}

func (h *batchHub) unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(ch)
	}
}

func (h *batchHub) subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
