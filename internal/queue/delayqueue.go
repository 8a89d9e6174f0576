// Package queue implements the in-process delay queue that holds pending
// receipt batches between allocation close and collector pickup: a
// standard binary min-heap keyed by Timeout (spec.md §9 — fairness between
// allocations is not required).
//
// The queue is mutated only from the collection tick and from
// CollectReceipts/recovery. In cmd/collector recovery runs on the main
// goroutine before the tick goroutine starts; every method is guarded
// with a mutex so the queue stays consistent when callers run on
// separate goroutines.
package queue

import (
	"container/heap"
	"sync"

	"github.com/dl-graf/indexer/internal/model"
)

// DelayQueue is a thread-safe min-heap of pending receipt batches ordered
// by Timeout ascending.
type DelayQueue struct {
	mu sync.Mutex
	h  batchHeap
}

// New returns an empty delay queue.
func New() *DelayQueue {
	q := &DelayQueue{}
	heap.Init(&q.h)
	return q
}

// Push adds a batch to the queue. The batch must be non-empty — an empty
// batch indicates a programmer error upstream (collectReceipts and
// recovery both guarantee non-empty batches before calling Push).
func (q *DelayQueue) Push(b model.ReceiptsBatch) {
	if len(b.Receipts) == 0 {
		panic("queue: Push called with an empty batch")
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	heap.Push(&q.h, b)
}

// Len returns the number of batches currently queued.
func (q *DelayQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.h.Len()
}

// Peek returns the earliest batch without removing it, and whether the
// queue was non-empty.
func (q *DelayQueue) Peek() (model.ReceiptsBatch, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.h.Len() == 0 {
		return model.ReceiptsBatch{}, false
	}
	return q.h[0], true
}

// Pop removes and returns the earliest batch.
func (q *DelayQueue) Pop() (model.ReceiptsBatch, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.h.Len() == 0 {
		return model.ReceiptsBatch{}, false
	}
	return heap.Pop(&q.h).(model.ReceiptsBatch), true
}

// DrainReady pops every batch whose Timeout is <= now, in heap (timeout)
// order, and returns them as a slice. Used by the collector's 10s tick,
// which drains all eligible batches in one pass.
func (q *DelayQueue) DrainReady(now int64) []model.ReceiptsBatch {
	q.mu.Lock()
	defer q.mu.Unlock()

	var ready []model.ReceiptsBatch
	for q.h.Len() > 0 && q.h[0].Timeout <= now {
		ready = append(ready, heap.Pop(&q.h).(model.ReceiptsBatch))
	}
	return ready
}

// batchHeap implements container/heap.Interface over ReceiptsBatch values
// ordered by Timeout ascending.
type batchHeap []model.ReceiptsBatch

func (h batchHeap) Len() int            { return len(h) }
func (h batchHeap) Less(i, j int) bool  { return h[i].Timeout < h[j].Timeout }
func (h batchHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *batchHeap) Push(x interface{}) { *h = append(*h, x.(model.ReceiptsBatch)) }
func (h *batchHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
