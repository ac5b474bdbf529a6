package services

import (
	"sort"
	"sync"
	"time"

	"github.com/supplyhub/backend/internal/core/upload"
	"github.com/supplyhub/backend/internal/domain"
)

// batchEntry is a running or recently settled batch with its subscribers.
type batchEntry struct {
	batch *upload.Batch
	hub   *batchHub

	mu        sync.RWMutex
	settled   bool
	settledAt time.Time
	summary   *domain.BatchSummary
	notices   []domain.Notice
}

func (e *batchEntry) markSettled(summary domain.BatchSummary, notices []domain.Notice) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.settled = true
	e.settledAt = time.Now()
	e.summary = &summary
	e.notices = notices
}

// snapshot reports the batch as settled only once its results were persisted.
func (e *batchEntry) snapshot() domain.BatchSnapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	snap := domain.BatchSnapshot{
		ID:        e.batch.ID(),
		StartedAt: e.batch.StartedAt(),
		Settled:   e.settled,
		Tasks:     e.batch.Views(),
		Rejected:  e.batch.Rejected(),
		Notices:   e.notices,
	}
	if e.summary != nil {
		s := *e.summary
		snap.Summary = &s
	}
	return snap
}

func (e *batchEntry) settledBefore(cutoff time.Time) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.settled && e.settledAt.Before(cutoff)
}

// BatchRegistry indexes live batches by id for lookups from the API.
type BatchRegistry struct {
	batches map[string]*batchEntry
	mu      sync.RWMutex
}

func NewBatchRegistry() *BatchRegistry {
	return &BatchRegistry{
		batches: make(map[string]*batchEntry),
	}
}

func (r *BatchRegistry) Add(e *batchEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches[e.batch.ID()] = e
}

func (r *BatchRegistry) Get(id string) (*batchEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, exists := r.batches[id]
	if !exists {
		return nil, ErrBatchNotFound
	}
	return e, nil
}

// List returns the entries newest first.
func (r *BatchRegistry) List() []*batchEntry {
	r.mu.RLock()
	out := make([]*batchEntry, 0, len(r.batches))
	for _, e := range r.batches {
		out = append(out, e)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].batch.StartedAt().After(out[j].batch.StartedAt())
	})
	return out
}

// Purge forgets batches settled more than olderThan ago and returns their ids.
func (r *BatchRegistry) Purge(olderThan time.Duration) []string {
	cutoff := time.Now().Add(-olderThan)

	r.mu.Lock()
	defer r.mu.Unlock()

	var purged []string
	for id, e := range r.batches {
		if e.settledBefore(cutoff) {
			delete(r.batches, id)
			purged = append(purged, id)
		}
	}
	return purged
}

func (r *BatchRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.batches)
}
