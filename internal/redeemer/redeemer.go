// Package redeemer implements the voucher-redemption half of the
// pipeline: a 30s tick loads candidate vouchers, partitions them by
// on-chain state and economic threshold, and submits an eligible batch
// for on-chain redemption (spec.md §4.5).
package redeemer

import (
	"context"
	"fmt"
	"math/big"
	"time"

	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/dl-graf/indexer/internal/chain"
	"github.com/dl-graf/indexer/internal/coreerr"
	"github.com/dl-graf/indexer/internal/metrics"
	"github.com/dl-graf/indexer/internal/model"
	"github.com/dl-graf/indexer/internal/store"
)

// Config carries the three threshold knobs spec.md §6 names.
type Config struct {
	RedemptionThreshold *big.Int
	BatchThreshold      *big.Int
	MaxBatchSize        int
}

// Redeemer owns the 30s redemption tick.
type Redeemer struct {
	store   store.Store
	chain   chain.AllocationExchange
	txm     chain.TransactionManager
	cfg     Config
	metrics *metrics.Metrics
	log     *zap.Logger
	now     func() time.Time
}

func New(st store.Store, exchange chain.AllocationExchange, txm chain.TransactionManager, cfg Config, m *metrics.Metrics, log *zap.Logger) *Redeemer {
	return &Redeemer{store: st, chain: exchange, txm: txm, cfg: cfg, metrics: m, log: log, now: time.Now}
}

// Tick runs one redemption cycle (spec.md §4.5 steps 1-6).
func (r *Redeemer) Tick(ctx context.Context) {
	start := r.now()
	defer func() {
		r.metrics.VouchersRedeemSeconds.Observe(r.now().Sub(start).Seconds())
	}()

	candidates, err := r.store.VouchersByValueDesc(ctx, r.cfg.MaxBatchSize)
	if err != nil {
		r.log.Error("load redemption candidates failed", zap.Error(err))
		return
	}

	var eligible, belowThreshold []model.Voucher
	for _, v := range candidates {
		redeemed, err := r.chain.AllocationsRedeemed(ctx, v.Allocation)
		if err != nil {
			r.log.Error("allocationsRedeemed check failed",
				zap.String("allocation", string(v.Allocation)), zap.Error(err))
			continue
		}
		if redeemed {
			if err := r.store.DeleteVoucher(ctx, v.Allocation); err != nil {
				r.log.Error("delete stale voucher failed",
					zap.String("allocation", string(v.Allocation)), zap.Error(err))
			}
			continue
		}
		if v.Amount.Cmp(r.cfg.RedemptionThreshold) < 0 {
			belowThreshold = append(belowThreshold, v)
			continue
		}
		eligible = append(eligible, v)
	}

	if len(belowThreshold) > 0 {
		r.log.Info("vouchers below redemption threshold", zap.Int("count", len(belowThreshold)))
	}
	if len(eligible) == 0 {
		return
	}

	batchSize := len(eligible)
	if batchSize > r.cfg.MaxBatchSize {
		batchSize = r.cfg.MaxBatchSize
	}
	batch := eligible[:batchSize]

	total := big.NewInt(0)
	for _, v := range batch {
		total.Add(total, v.Amount)
	}
	if total.Cmp(r.cfg.BatchThreshold) <= 0 {
		r.log.Info("redemption batch below economic threshold",
			zap.String("total", total.String()), zap.Int("count", len(batch)))
		return
	}

	r.submit(ctx, batch)
}

// submit builds the on-chain payload and hands it to the transaction
// manager (spec.md §4.5 submit(batch)).
func (r *Redeemer) submit(ctx context.Context, batch []model.Voucher) {
	entries := make([]chain.RedemptionEntry, len(batch))
	for i, v := range batch {
		entries[i] = chain.RedemptionEntry{AllocationID: v.Allocation, Amount: v.Amount, Signature: v.Signature}
	}

	scoped := r.log.With(zap.Int("batch_size", len(entries)))
	var estimate chain.GasEstimateFunc = func(ctx context.Context) (uint64, error) {
		return r.chain.EstimateRedeemMany(ctx, entries)
	}
	var send chain.SendFunc = func(ctx context.Context, gasLimit uint64) (*gethtypes.Transaction, error) {
		return r.chain.SendRedeemMany(ctx, entries, gasLimit)
	}
	result, err := r.txm.Submit(ctx, estimate, send, scoped)
	if err != nil {
		for _, v := range batch {
			r.metrics.VoucherRedeemsFailed.WithLabelValues(string(v.Allocation)).Inc()
		}
		scoped.Error("redeem batch submission failed",
			zap.Error(fmt.Errorf("%w: %w", coreerr.ErrVoucherRedeemFailed, err)))
		return
	}

	if result.Sentinel != chain.SentinelNone {
		for _, v := range batch {
			r.metrics.VoucherExchangesInvalid.WithLabelValues(string(v.Allocation)).Inc()
		}
		scoped.Warn("redeem batch rejected by sentinel",
			zap.String("sentinel", result.Sentinel.String()),
			zap.Error(coreerr.ErrVoucherRedeemInvalid))
		return
	}

	amounts := make(map[model.AllocationID]*big.Int, len(batch))
	for _, v := range batch {
		amounts[v.Allocation] = v.Amount
	}
	if err := r.store.ApplyRedemption(ctx, amounts); err != nil {
		scoped.Error("apply redemption bookkeeping failed", zap.Error(err))
		return
	}

	r.metrics.VouchersRedeem.Set(float64(len(batch)))
	for _, v := range batch {
		r.metrics.VoucherExchangesOK.WithLabelValues(string(v.Allocation)).Inc()
	}
}
