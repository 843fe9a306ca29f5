package batch

import (
	"sync"

	"github.com/weatherdash/weather-api-handler/internal/models"
)

// DefaultRecentCapacity bounds the in-memory record of processed batches.
const DefaultRecentCapacity = 100

// RecentBatches is a bounded FIFO of the most recently processed batches.
// Oldest entries are evicted past capacity. The record lives only in
// memory: it is lost on restart and never written to the relational store.
// Guarded by its own lock, separate from anything the fetch path holds.
type RecentBatches struct {
	mu       sync.Mutex
	capacity int
	items    []models.BatchRecord
}

// NewRecentBatches returns a buffer with the given capacity (DefaultRecentCapacity if <= 0).
func NewRecentBatches(capacity int) *RecentBatches {
	if capacity <= 0 {
		capacity = DefaultRecentCapacity
	}
	return &RecentBatches{capacity: capacity}
}

// Push appends a batch record, evicting the oldest entry when full.
func (r *RecentBatches) Push(rec models.BatchRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, rec)
	if len(r.items) > r.capacity {
		r.items = append(r.items[:0], r.items[len(r.items)-r.capacity:]...)
	}
}

// Latest returns the most recently pushed record.
func (r *RecentBatches) Latest() (models.BatchRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.items) == 0 {
		return models.BatchRecord{}, false
	}
	return r.items[len(r.items)-1], true
}

// List returns a copy of the buffer contents, oldest first.
func (r *RecentBatches) List() []models.BatchRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.BatchRecord, len(r.items))
	copy(out, r.items)
	return out
}

// Len returns the number of records currently held.
func (r *RecentBatches) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}
