// Package recovery reconstructs in-memory pending receipt batches from
// durable state at startup (spec.md §4.6), since the delay queue itself
// is not persisted.
package recovery

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dl-graf/indexer/internal/model"
	"github.com/dl-graf/indexer/internal/queue"
	"github.com/dl-graf/indexer/internal/store"
)

// defaultCollectionTimeout mirrors collector.defaultCollectionTimeout —
// used when batchDelay is zero.
const defaultCollectionTimeout = 20 * time.Minute

// QueuePendingReceiptsFromDatabase loads every closed allocation summary
// and the receipts still on hand for it, and re-seeds the delay queue
// with one batch per allocation that has at least one receipt. Empty
// batches (closed allocations with no receipts) are discarded. batchDelay
// is the collector.batchDelay knob used to recompute each batch's
// timeout; a zero value falls back to the spec's 20-minute default.
func QueuePendingReceiptsFromDatabase(ctx context.Context, st store.Store, dq *queue.DelayQueue, log *zap.Logger, batchDelay time.Duration) error {
	if batchDelay <= 0 {
		batchDelay = defaultCollectionTimeout
	}
	summaries, err := st.ClosedSummaries(ctx)
	if err != nil {
		return fmt.Errorf("recovery: load closed summaries: %w", err)
	}
	if len(summaries) == 0 {
		return nil
	}

	batches := make(map[model.AllocationID]*model.ReceiptsBatch, len(summaries))
	allocations := make([]model.AllocationID, len(summaries))
	for i, s := range summaries {
		allocations[i] = s.Allocation
		timeout := *s.ClosedAt + batchDelay.Milliseconds()
		batches[s.Allocation] = &model.ReceiptsBatch{Allocation: s.Allocation, Timeout: timeout}
	}

	receipts, err := st.ReceiptsForAllocations(ctx, allocations)
	if err != nil {
		return fmt.Errorf("recovery: load receipts: %w", err)
	}

	for _, r := range receipts {
		batch, ok := batches[r.Allocation]
		if !ok {
			panic(fmt.Sprintf("recovery: receipt %s references allocation %s with no closed summary", r.ID, r.Allocation))
		}
		batch.Receipts = append(batch.Receipts, r)
	}

	pushed := 0
	for _, batch := range batches {
		if len(batch.Receipts) == 0 {
			continue
		}
		dq.Push(*batch)
		pushed++
	}
	log.Info("recovery requeued pending receipt batches",
		zap.Int("closed_allocations", len(summaries)),
		zap.Int("batches_pushed", pushed))
	return nil
}
