// Package collector implements the receipt-collection half of the
// pipeline: rememberAllocations/collectReceipts (spec.md §4.4) feed the
// delay queue, and a 10s tick drains it through the
// encoding→exchanging→persisting state machine.
package collector

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"

	"github.com/dl-graf/indexer/internal/codec"
	"github.com/dl-graf/indexer/internal/coreerr"
	"github.com/dl-graf/indexer/internal/gateway"
	"github.com/dl-graf/indexer/internal/metrics"
	"github.com/dl-graf/indexer/internal/model"
	"github.com/dl-graf/indexer/internal/queue"
	"github.com/dl-graf/indexer/internal/store"
)

// defaultMaxChunkReceipts is the largest receipt count the gateway accepts
// per partial-voucher POST before the collector must chunk, absent an
// override (spec.md §4.4, collector.chunkSize).
const defaultMaxChunkReceipts = 25000

// defaultCollectionTimeout is how long a closed allocation's receipts sit
// in the delay queue before the collector exchanges them with the
// gateway, absent an override (collector.batchDelay).
const defaultCollectionTimeout = 20 * time.Minute

// Clock abstracts wall-clock time so ticks and timeouts are testable.
type Clock func() time.Time

// Collector owns the delay queue and drives the collection tick.
type Collector struct {
	store             store.Store
	gateway           *gateway.Client
	queue             *queue.DelayQueue
	metrics           *metrics.Metrics
	log               *zap.Logger
	now               Clock
	maxChunkReceipts  int
	collectionTimeout time.Duration
}

// New builds a Collector. chunkSize and batchDelay configure the
// collector.chunkSize/collector.batchDelay knobs; a zero value falls back
// to the spec's defaults (25 000 receipts, 20 minutes).
func New(st store.Store, gw *gateway.Client, dq *queue.DelayQueue, m *metrics.Metrics, log *zap.Logger, chunkSize int, batchDelay time.Duration) *Collector {
	if chunkSize <= 0 {
		chunkSize = defaultMaxChunkReceipts
	}
	if batchDelay <= 0 {
		batchDelay = defaultCollectionTimeout
	}
	return &Collector{
		store:             st,
		gateway:           gw,
		queue:             dq,
		metrics:           m,
		log:               log,
		now:               time.Now,
		maxChunkReceipts:  chunkSize,
		collectionTimeout: batchDelay,
	}
}

// RememberAllocations upserts a zeroed summary for every id in one
// transaction. Returns true on success, false on any error — the error is
// logged, not rethrown (spec.md §4.4).
func (c *Collector) RememberAllocations(ctx context.Context, allocations []model.AllocationID) bool {
	if err := c.store.RememberAllocations(ctx, allocations); err != nil {
		c.log.Error("remember allocations failed",
			zap.Error(fmt.Errorf("%w: %w", coreerr.ErrRememberAllocationsFailed, err)))
		return false
	}
	return true
}

// CollectReceipts sets closedAt=now on the allocation's summary, loads its
// receipts, and — if any exist — pushes a batch onto the delay queue with
// a timeout of now plus the collection delay (20 minutes unless
// configured otherwise). Errors propagate: this is invoked by the
// close-allocation workflow, for which failure is fatal (spec.md §4.4).
func (c *Collector) CollectReceipts(ctx context.Context, allocation model.AllocationID) (bool, error) {
	receipts, err := c.store.CloseAllocationAndLoadReceipts(ctx, allocation, c.now().UnixMilli())
	if err != nil {
		return false, fmt.Errorf("%w: %w", coreerr.ErrQueueReceiptsFailed, err)
	}
	if len(receipts) == 0 {
		return false, nil
	}
	c.queue.Push(model.ReceiptsBatch{
		Receipts:   receipts,
		Allocation: allocation,
		Timeout:    c.now().Add(c.collectionTimeout).UnixMilli(),
	})
	c.metrics.ReceiptsToCollect.WithLabelValues(string(allocation)).Add(float64(len(receipts)))
	return true, nil
}

// Tick drains every batch whose timeout has elapsed and runs each through
// the collection state machine. Call this from the 10s collection timer.
func (c *Collector) Tick(ctx context.Context) {
	ready := c.queue.DrainReady(c.now().UnixMilli())
	for _, batch := range ready {
		c.process(ctx, batch)
	}
}

// process runs one drained batch through
// encoding → exchanging → persisting → done | failed.
func (c *Collector) process(ctx context.Context, batch model.ReceiptsBatch) {
	if len(batch.Receipts) == 0 {
		panic("collector: drained an empty receipts batch")
	}
	start := c.now()
	defer func() {
		c.metrics.ReceiptsExchangeSeconds.WithLabelValues(string(batch.Allocation)).
			Observe(c.now().Sub(start).Seconds())
	}()

	voucher, err := c.exchange(ctx, batch)
	if err != nil {
		c.metrics.ReceiptsFailed.WithLabelValues(string(batch.Allocation)).Inc()
		c.log.Error("collect exchange failed",
			zap.String("allocation", string(batch.Allocation)),
			zap.Error(fmt.Errorf("%w: %w", coreerr.ErrCollectExchangeFailed, err)))
		return
	}

	receiptIDs := make([]string, len(batch.Receipts))
	for i, r := range batch.Receipts {
		receiptIDs[i] = r.ID
	}
	if err := c.store.PersistExchange(ctx, receiptIDs, voucher); err != nil {
		c.metrics.ReceiptsFailed.WithLabelValues(string(batch.Allocation)).Inc()
		c.log.Error("persist exchange failed",
			zap.String("allocation", string(batch.Allocation)),
			zap.Error(fmt.Errorf("%w: %w", coreerr.ErrCollectExchangeFailed, err)))
		return
	}

	amount, _ := new(big.Float).SetInt(voucher.Amount).Float64()
	c.metrics.Vouchers.WithLabelValues(string(batch.Allocation)).Inc()
	c.metrics.VoucherCollectedFees.WithLabelValues(string(batch.Allocation)).Add(amount)
	c.metrics.ReceiptsToCollect.WithLabelValues(string(batch.Allocation)).Sub(float64(len(batch.Receipts)))
}

// exchange runs the single-shot or chunked gateway exchange for a batch
// and returns the final voucher.
func (c *Collector) exchange(ctx context.Context, batch model.ReceiptsBatch) (model.Voucher, error) {
	if len(batch.Receipts) <= c.maxChunkReceipts {
		payload, err := codec.EncodeReceiptsBatch(batch.Receipts)
		if err != nil {
			return model.Voucher{}, fmt.Errorf("encode receipts batch: %w", err)
		}
		voucher, err := c.gateway.CollectReceipts(ctx, payload)
		if err != nil {
			return model.Voucher{}, fmt.Errorf("collect-receipts: %w", err)
		}
		return voucher, nil
	}
	return c.exchangeChunked(ctx, batch)
}

func (c *Collector) exchangeChunked(ctx context.Context, batch model.ReceiptsBatch) (model.Voucher, error) {
	var partials []model.PartialVoucher
	defer func() {
		c.metrics.VouchersToExchange.WithLabelValues(string(batch.Allocation)).Sub(float64(len(partials)))
	}()
	for start := 0; start < len(batch.Receipts); start += c.maxChunkReceipts {
		end := start + c.maxChunkReceipts
		if end > len(batch.Receipts) {
			end = len(batch.Receipts)
		}
		chunk := batch.Receipts[start:end]
		payload, err := codec.EncodeReceiptsBatch(chunk)
		if err != nil {
			return model.Voucher{}, fmt.Errorf("encode chunk [%d:%d]: %w", start, end, err)
		}
		pv, err := c.gateway.PartialVoucher(ctx, payload)
		if err != nil {
			return model.Voucher{}, fmt.Errorf("partial-voucher [%d:%d]: %w", start, end, err)
		}
		c.metrics.VouchersToExchange.WithLabelValues(string(batch.Allocation)).Inc()
		partials = append(partials, pv)
	}

	payload, err := codec.EncodePartialVoucherBatch(partials)
	if err != nil {
		return model.Voucher{}, fmt.Errorf("encode partial voucher batch: %w", err)
	}
	voucher, err := c.gateway.Voucher(ctx, payload)
	if err != nil {
		return model.Voucher{}, fmt.Errorf("voucher: %w", err)
	}
	return voucher, nil
}
