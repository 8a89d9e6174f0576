// Package store is the persistence adapter: strongly-typed access to the
// receipts/summaries/vouchers tables, with every multi-statement write run
// inside a single serializable transaction (spec.md §5).
package store

import (
	"context"
	"math/big"

	"github.com/dl-graf/indexer/internal/model"
)

// Store is the persistence contract consumed by the collector, redeemer,
// and recovery packages. It is implemented by GormStore (production,
// postgres) and by an in-memory fake in tests.
type Store interface {
	// RememberAllocations upserts a zeroed AllocationSummary for every id,
	// in one transaction. Idempotent.
	RememberAllocations(ctx context.Context, allocations []model.AllocationID) error

	// CloseAllocationAndLoadReceipts sets closedAt=now on the allocation's
	// summary and returns all of its receipts ordered by id ascending, in
	// one transaction.
	CloseAllocationAndLoadReceipts(ctx context.Context, allocation model.AllocationID, now int64) ([]model.AllocationReceipt, error)

	// PersistExchange deletes the given receipt ids, ensures a summary
	// exists for voucher.Allocation, adds voucher.Amount to its
	// collectedFees, and upserts the voucher row — all in one transaction.
	PersistExchange(ctx context.Context, receiptIDs []string, voucher model.Voucher) error

	// ClosedSummaries returns every AllocationSummary with a non-nil
	// ClosedAt, used by recovery to reseed the delay queue at startup.
	ClosedSummaries(ctx context.Context) ([]model.AllocationSummary, error)

	// ReceiptsForAllocations returns every receipt whose allocation is in
	// the given set, ordered by id ascending.
	ReceiptsForAllocations(ctx context.Context, allocations []model.AllocationID) ([]model.AllocationReceipt, error)

	// VouchersByValueDesc returns up to limit vouchers ordered by amount
	// descending.
	VouchersByValueDesc(ctx context.Context, limit int) ([]model.Voucher, error)

	// DeleteVoucher removes the voucher row for allocation (used when the
	// chain reports it already redeemed).
	DeleteVoucher(ctx context.Context, allocation model.AllocationID) error

	// ApplyRedemption ensures a summary exists and adds amount to
	// withdrawnFees for each entry in amounts, then deletes the
	// corresponding voucher rows — all in one transaction.
	ApplyRedemption(ctx context.Context, amounts map[model.AllocationID]*big.Int) error
}
