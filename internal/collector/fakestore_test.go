package collector

import (
	"context"
	"math/big"
	"sync"

	"github.com/dl-graf/indexer/internal/model"
)

// fakeStore is an in-memory Store for collector tests — the hand-written
// fake this core uses instead of a real database, the same role
// miniredis plays for the teacher's redis-backed tests.
type fakeStore struct {
	mu        sync.Mutex
	summaries map[model.AllocationID]*model.AllocationSummary
	receipts  map[model.AllocationID][]model.AllocationReceipt
	vouchers  map[model.AllocationID]model.Voucher

	closeErr    error
	persistErr  error
	rememberErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		summaries: map[model.AllocationID]*model.AllocationSummary{},
		receipts:  map[model.AllocationID][]model.AllocationReceipt{},
		vouchers:  map[model.AllocationID]model.Voucher{},
	}
}

func (f *fakeStore) RememberAllocations(ctx context.Context, allocations []model.AllocationID) error {
	if f.rememberErr != nil {
		return f.rememberErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range allocations {
		if _, ok := f.summaries[a]; !ok {
			f.summaries[a] = &model.AllocationSummary{
				Allocation:    a,
				CollectedFees: big.NewInt(0),
				WithdrawnFees: big.NewInt(0),
			}
		}
	}
	return nil
}

func (f *fakeStore) CloseAllocationAndLoadReceipts(ctx context.Context, allocation model.AllocationID, now int64) ([]model.AllocationReceipt, error) {
	if f.closeErr != nil {
		return nil, f.closeErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.summaries[allocation]
	if !ok {
		s = &model.AllocationSummary{Allocation: allocation, CollectedFees: big.NewInt(0), WithdrawnFees: big.NewInt(0)}
		f.summaries[allocation] = s
	}
	s.ClosedAt = &now
	out := append([]model.AllocationReceipt(nil), f.receipts[allocation]...)
	return out, nil
}

func (f *fakeStore) PersistExchange(ctx context.Context, receiptIDs []string, voucher model.Voucher) error {
	if f.persistErr != nil {
		return f.persistErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	remove := map[string]bool{}
	for _, id := range receiptIDs {
		remove[id] = true
	}
	remaining := f.receipts[voucher.Allocation][:0]
	for _, r := range f.receipts[voucher.Allocation] {
		if !remove[r.ID] {
			remaining = append(remaining, r)
		}
	}
	f.receipts[voucher.Allocation] = remaining

	s, ok := f.summaries[voucher.Allocation]
	if !ok {
		s = &model.AllocationSummary{Allocation: voucher.Allocation, CollectedFees: big.NewInt(0), WithdrawnFees: big.NewInt(0)}
		f.summaries[voucher.Allocation] = s
	}
	s.CollectedFees = new(big.Int).Add(s.CollectedFees, voucher.Amount)
	f.vouchers[voucher.Allocation] = voucher
	return nil
}

func (f *fakeStore) ClosedSummaries(ctx context.Context) ([]model.AllocationSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.AllocationSummary
	for _, s := range f.summaries {
		if s.ClosedAt != nil {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeStore) ReceiptsForAllocations(ctx context.Context, allocations []model.AllocationID) ([]model.AllocationReceipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.AllocationReceipt
	for _, a := range allocations {
		out = append(out, f.receipts[a]...)
	}
	return out, nil
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
	return nil
}

func (f *fakeStore) ApplyRedemption(ctx context.Context, amounts map[model.AllocationID]*big.Int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for alloc, amount := range amounts {
		s, ok := f.summaries[alloc]
		if !ok {
			s = &model.AllocationSummary{Allocation: alloc, CollectedFees: big.NewInt(0), WithdrawnFees: big.NewInt(0)}
			f.summaries[alloc] = s
		}
		s.WithdrawnFees = new(big.Int).Add(s.WithdrawnFees, amount)
		delete(f.vouchers, alloc)
	}
	return nil
}
