package redeemer

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/dl-graf/indexer/internal/chain"
	"github.com/dl-graf/indexer/internal/metrics"
	"github.com/dl-graf/indexer/internal/model"
)

// ── fakes ─────────────────────────────────────────────────────────────────

type fakeStore struct {
	mu        sync.Mutex
	vouchers  map[model.AllocationID]model.Voucher
	withdrawn map[model.AllocationID]*big.Int
	deleted   []model.AllocationID
}

func newFakeStore(vouchers ...model.Voucher) *fakeStore {
	fs := &fakeStore{vouchers: map[model.AllocationID]model.Voucher{}, withdrawn: map[model.AllocationID]*big.Int{}}
	for _, v := range vouchers {
		fs.vouchers[v.Allocation] = v
	}
	return fs
}

func (f *fakeStore) RememberAllocations(ctx context.Context, allocations []model.AllocationID) error {
	return nil
}
func (f *fakeStore) CloseAllocationAndLoadReceipts(ctx context.Context, allocation model.AllocationID, now int64) ([]model.AllocationReceipt, error) {
	return nil, nil
}
func (f *fakeStore) PersistExchange(ctx context.Context, receiptIDs []string, voucher model.Voucher) error {
	return nil
}
func (f *fakeStore) ClosedSummaries(ctx context.Context) ([]model.AllocationSummary, error) {
	return nil, nil
}
func (f *fakeStore) ReceiptsForAllocations(ctx context.Context, allocations []model.AllocationID) ([]model.AllocationReceipt, error) {
	return nil, nil
}

func (f *fakeStore) VouchersByValueDesc(ctx context.Context, limit int) ([]model.Voucher, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Voucher, 0, len(f.vouchers))
	for _, v := range f.vouchers {
		out = append(out, v)
	}
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].Amount.Cmp(out[i].Amount) > 0 {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) DeleteVoucher(ctx context.Context, allocation model.AllocationID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.vouchers, allocation)
	f.deleted = append(f.deleted, allocation)
	return nil
}

func (f *fakeStore) ApplyRedemption(ctx context.Context, amounts map[model.AllocationID]*big.Int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for alloc, amount := range amounts {
		f.withdrawn[alloc] = amount
		delete(f.vouchers, alloc)
	}
	return nil
}

type fakeExchange struct {
	redeemed       map[model.AllocationID]bool
	estimateCalled int
	sendCalled     int
}

func (f *fakeExchange) EstimateRedeemMany(ctx context.Context, entries []chain.RedemptionEntry) (uint64, error) {
	f.estimateCalled++
	return 21000, nil
}
func (f *fakeExchange) SendRedeemMany(ctx context.Context, entries []chain.RedemptionEntry, gasLimit uint64) (*gethtypes.Transaction, error) {
	f.sendCalled++
	return gethtypes.NewTx(&gethtypes.LegacyTx{}), nil
}
func (f *fakeExchange) AllocationsRedeemed(ctx context.Context, allocation model.AllocationID) (bool, error) {
	return f.redeemed[allocation], nil
}

// fakeTxManager runs the closures and returns a canned result, skipping
// bind.WaitMined — a pure in-memory stand-in for chain.TransactionManager.
type fakeTxManager struct {
	sentinel chain.Sentinel
	err      error
}

func (m *fakeTxManager) Submit(ctx context.Context, estimate chain.GasEstimateFunc, send chain.SendFunc, log *zap.Logger) (*chain.SubmitResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	if _, err := estimate(ctx); err != nil {
		return nil, err
	}
	if m.sentinel != chain.SentinelNone {
		return &chain.SubmitResult{Sentinel: m.sentinel}, nil
	}
	if _, err := send(ctx, 21000); err != nil {
		return nil, err
	}
	return &chain.SubmitResult{Receipt: &gethtypes.Receipt{Status: gethtypes.ReceiptStatusSuccessful}}, nil
}

func voucher(alloc string, amount int64) model.Voucher {
	return model.Voucher{Allocation: model.AllocationID(alloc), Amount: big.NewInt(amount), Signature: "0xsig"}
}

func newRedeemer(fs *fakeStore, ex *fakeExchange, txm *fakeTxManager, cfg Config) *Redeemer {
	r := New(fs, ex, txm, cfg, metrics.New(), zap.NewNop())
	r.now = func() time.Time { return time.Unix(0, 0) }
	return r
}

// ── tests ─────────────────────────────────────────────────────────────────

func TestTick_BelowThreshold_NoSubmission(t *testing.T) {
	fs := newFakeStore(voucher("0xa", 10), voucher("0xb", 20))
	ex := &fakeExchange{redeemed: map[model.AllocationID]bool{}}
	txm := &fakeTxManager{}
	r := newRedeemer(fs, ex, txm, Config{RedemptionThreshold: big.NewInt(100), BatchThreshold: big.NewInt(1000), MaxBatchSize: 10})

	r.Tick(context.Background())

	if ex.sendCalled != 0 {
		t.Fatalf("expected no on-chain call, got %d", ex.sendCalled)
	}
	if len(fs.vouchers) != 2 {
		t.Fatalf("expected both vouchers to remain, got %d", len(fs.vouchers))
	}
}

func TestTick_BatchThresholdGate(t *testing.T) {
	fs := newFakeStore(voucher("0xa", 400), voucher("0xb", 300))
	ex := &fakeExchange{redeemed: map[model.AllocationID]bool{}}
	txm := &fakeTxManager{}
	r := newRedeemer(fs, ex, txm, Config{RedemptionThreshold: big.NewInt(1), BatchThreshold: big.NewInt(1000), MaxBatchSize: 10})

	r.Tick(context.Background())
	if ex.sendCalled != 0 {
		t.Fatal("expected total 700 <= 1000 to block submission")
	}

	fs.vouchers["0xc"] = voucher("0xc", 500)
	r.Tick(context.Background())
	if ex.sendCalled != 1 {
		t.Fatalf("expected total 1200 > 1000 to submit, sendCalled=%d", ex.sendCalled)
	}
}

func TestTick_StaleVoucherDeletedNotSubmitted(t *testing.T) {
	fs := newFakeStore(voucher("0xa", 500))
	ex := &fakeExchange{redeemed: map[model.AllocationID]bool{model.AllocationID("0xa"): true}}
	txm := &fakeTxManager{}
	r := newRedeemer(fs, ex, txm, Config{RedemptionThreshold: big.NewInt(1), BatchThreshold: big.NewInt(1), MaxBatchSize: 10})

	r.Tick(context.Background())

	if ex.sendCalled != 0 {
		t.Fatal("expected no submission for stale voucher")
	}
	if len(fs.vouchers) != 0 {
		t.Fatal("expected stale voucher deleted")
	}
	if len(fs.deleted) != 1 {
		t.Fatal("expected exactly one deletion")
	}
}

func TestTick_SentinelPaused_LeavesVouchers(t *testing.T) {
	fs := newFakeStore(voucher("0xa", 500))
	ex := &fakeExchange{redeemed: map[model.AllocationID]bool{}}
	txm := &fakeTxManager{sentinel: chain.SentinelPaused}
	r := newRedeemer(fs, ex, txm, Config{RedemptionThreshold: big.NewInt(1), BatchThreshold: big.NewInt(1), MaxBatchSize: 10})

	r.Tick(context.Background())

	if len(fs.vouchers) != 1 {
		t.Fatal("expected voucher to remain after paused sentinel")
	}
}

func TestTick_SuccessfulSubmission_AppliesRedemption(t *testing.T) {
	fs := newFakeStore(voucher("0xa", 500), voucher("0xb", 600))
	ex := &fakeExchange{redeemed: map[model.AllocationID]bool{}}
	txm := &fakeTxManager{}
	r := newRedeemer(fs, ex, txm, Config{RedemptionThreshold: big.NewInt(1), BatchThreshold: big.NewInt(1), MaxBatchSize: 10})

	r.Tick(context.Background())

	if len(fs.vouchers) != 0 {
		t.Fatalf("expected both vouchers redeemed, got %d remaining", len(fs.vouchers))
	}
	if len(fs.withdrawn) != 2 {
		t.Fatalf("expected withdrawnFees updated for both, got %d", len(fs.withdrawn))
	}
}

func TestTick_TxManagerError_LeavesVouchers(t *testing.T) {
	fs := newFakeStore(voucher("0xa", 500))
	ex := &fakeExchange{redeemed: map[model.AllocationID]bool{}}
	txm := &fakeTxManager{err: errors.New("rpc down")}
	r := newRedeemer(fs, ex, txm, Config{RedemptionThreshold: big.NewInt(1), BatchThreshold: big.NewInt(1), MaxBatchSize: 10})

	r.Tick(context.Background())

	if len(fs.vouchers) != 1 {
		t.Fatal("expected voucher to remain after tx manager error")
	}
}

func TestTick_MaxBatchSizeCap(t *testing.T) {
	fs := newFakeStore(voucher("0xa", 100), voucher("0xb", 200), voucher("0xc", 300))
	ex := &fakeExchange{redeemed: map[model.AllocationID]bool{}}
	txm := &fakeTxManager{}
	r := newRedeemer(fs, ex, txm, Config{RedemptionThreshold: big.NewInt(1), BatchThreshold: big.NewInt(1), MaxBatchSize: 2})

	r.Tick(context.Background())

	if len(fs.withdrawn) != 2 {
		t.Fatalf("expected only maxBatchSize=2 vouchers redeemed, got %d", len(fs.withdrawn))
	}
}
