package store

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"

	"gorm.io/gorm"

	"github.com/dl-graf/indexer/internal/model"
)

// GormStore is the production Store backed by gorm (postgres in
// production, sqlite in tests — see gorm_store_test.go, the relational
// analogue of the teacher's miniredis-backed redis tests).
type GormStore struct {
	db      *gorm.DB
	txOpts  *sql.TxOptions
}

// New wraps an already-opened *gorm.DB, running every multi-statement
// write at serializable isolation (spec.md §5). AutoMigrate is left to
// the caller (cmd/collector/main.go) so tests can point this at a fresh
// in-memory schema without pulling in migration tooling.
func New(db *gorm.DB) *GormStore {
	return &GormStore{db: db, txOpts: &sql.TxOptions{Isolation: sql.LevelSerializable}}
}

// NewWithTxOptions is New, but lets the caller override the isolation
// level — sqlite (used in tests) does not support SERIALIZABLE through
// database/sql the way postgres does, so tests pass nil here to use the
// driver's default.
func NewWithTxOptions(db *gorm.DB, txOpts *sql.TxOptions) *GormStore {
	return &GormStore{db: db, txOpts: txOpts}
}

// AutoMigrate creates the three tables if they do not already exist.
func (s *GormStore) AutoMigrate() error {
	return s.db.AutoMigrate(&receiptRow{}, &summaryRow{}, &voucherRow{})
}

func (s *GormStore) RememberAllocations(ctx context.Context, allocations []model.AllocationID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, alloc := range allocations {
			row := summaryRow{
				Allocation:    string(alloc),
				CollectedFees: bigToDecimal(big.NewInt(0)),
				WithdrawnFees: bigToDecimal(big.NewInt(0)),
			}
			if err := tx.Where("allocation = ?", string(alloc)).
				Attrs(summaryRow{CollectedFees: "0", WithdrawnFees: "0"}).
				FirstOrCreate(&row, "allocation = ?", string(alloc)).Error; err != nil {
				return fmt.Errorf("upsert summary %s: %w", alloc, err)
			}
		}
		return nil
	}, s.txOpts)
}

func (s *GormStore) CloseAllocationAndLoadReceipts(ctx context.Context, allocation model.AllocationID, now int64) ([]model.AllocationReceipt, error) {
	var receipts []model.AllocationReceipt
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := summaryRow{Allocation: string(allocation), CollectedFees: "0", WithdrawnFees: "0"}
		if err := tx.Where("allocation = ?", string(allocation)).
			Attrs(summaryRow{CollectedFees: "0", WithdrawnFees: "0"}).
			FirstOrCreate(&row, "allocation = ?", string(allocation)).Error; err != nil {
			return fmt.Errorf("ensure summary %s: %w", allocation, err)
		}
		closedAt := now
		if err := tx.Model(&summaryRow{}).
			Where("allocation = ?", string(allocation)).
			Update("closed_at", closedAt).Error; err != nil {
			return fmt.Errorf("set closed_at %s: %w", allocation, err)
		}

		var rows []receiptRow
		if err := tx.Where("allocation = ?", string(allocation)).
			Order("id ASC").Find(&rows).Error; err != nil {
			return fmt.Errorf("load receipts %s: %w", allocation, err)
		}
		receipts = toReceipts(rows)
		return nil
	}, s.txOpts)
	return receipts, err
}

func (s *GormStore) PersistExchange(ctx context.Context, receiptIDs []string, voucher model.Voucher) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(receiptIDs) > 0 {
			if err := tx.Where("id IN ?", receiptIDs).Delete(&receiptRow{}).Error; err != nil {
				return fmt.Errorf("delete receipts: %w", err)
			}
		}

		summary := summaryRow{Allocation: string(voucher.Allocation), CollectedFees: "0", WithdrawnFees: "0"}
		if err := tx.Where("allocation = ?", string(voucher.Allocation)).
			Attrs(summaryRow{CollectedFees: "0", WithdrawnFees: "0"}).
			FirstOrCreate(&summary, "allocation = ?", string(voucher.Allocation)).Error; err != nil {
			return fmt.Errorf("ensure summary %s: %w", voucher.Allocation, err)
		}
		newCollected := new(big.Int).Add(decimalToBig(summary.CollectedFees), voucher.Amount)
		if err := tx.Model(&summaryRow{}).
			Where("allocation = ?", string(voucher.Allocation)).
			Update("collected_fees", bigToDecimal(newCollected)).Error; err != nil {
			return fmt.Errorf("update collected_fees %s: %w", voucher.Allocation, err)
		}

		vRow := voucherRow{
			Allocation: string(voucher.Allocation),
			Amount:     bigToDecimal(voucher.Amount),
			Signature:  voucher.Signature,
		}
		if err := tx.Save(&vRow).Error; err != nil {
			return fmt.Errorf("upsert voucher %s: %w", voucher.Allocation, err)
		}
		return nil
	}, s.txOpts)
}

func (s *GormStore) ClosedSummaries(ctx context.Context) ([]model.AllocationSummary, error) {
	var rows []summaryRow
	if err := s.db.WithContext(ctx).Where("closed_at IS NOT NULL").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load closed summaries: %w", err)
	}
	out := make([]model.AllocationSummary, len(rows))
	for i, r := range rows {
		out[i] = model.AllocationSummary{
			Allocation:    model.AllocationID(r.Allocation),
			ClosedAt:      r.ClosedAt,
			CollectedFees: decimalToBig(r.CollectedFees),
			WithdrawnFees: decimalToBig(r.WithdrawnFees),
		}
	}
	return out, nil
}

func (s *GormStore) ReceiptsForAllocations(ctx context.Context, allocations []model.AllocationID) ([]model.AllocationReceipt, error) {
	if len(allocations) == 0 {
		return nil, nil
	}
	allocStrs := make([]string, len(allocations))
	for i, a := range allocations {
		allocStrs[i] = string(a)
	}
	var rows []receiptRow
	if err := s.db.WithContext(ctx).
		Where("allocation IN ?", allocStrs).
		Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load receipts: %w", err)
	}
	return toReceipts(rows), nil
}

func (s *GormStore) VouchersByValueDesc(ctx context.Context, limit int) ([]model.Voucher, error) {
	var rows []voucherRow
	q := s.db.WithContext(ctx).Order("CAST(amount AS NUMERIC) DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load vouchers: %w", err)
	}
	out := make([]model.Voucher, len(rows))
	for i, r := range rows {
		out[i] = model.Voucher{
			Allocation: model.AllocationID(r.Allocation),
			Amount:     decimalToBig(r.Amount),
			Signature:  r.Signature,
		}
	}
	return out, nil
}

func (s *GormStore) DeleteVoucher(ctx context.Context, allocation model.AllocationID) error {
	if err := s.db.WithContext(ctx).Where("allocation = ?", string(allocation)).Delete(&voucherRow{}).Error; err != nil {
		return fmt.Errorf("delete voucher %s: %w", allocation, err)
	}
	return nil
}

func (s *GormStore) ApplyRedemption(ctx context.Context, amounts map[model.AllocationID]*big.Int) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for alloc, amount := range amounts {
			summary := summaryRow{Allocation: string(alloc), CollectedFees: "0", WithdrawnFees: "0"}
			if err := tx.Where("allocation = ?", string(alloc)).
				Attrs(summaryRow{CollectedFees: "0", WithdrawnFees: "0"}).
				FirstOrCreate(&summary, "allocation = ?", string(alloc)).Error; err != nil {
				return fmt.Errorf("ensure summary %s: %w", alloc, err)
			}
			newWithdrawn := new(big.Int).Add(decimalToBig(summary.WithdrawnFees), amount)
			if err := tx.Model(&summaryRow{}).
				Where("allocation = ?", string(alloc)).
				Update("withdrawn_fees", bigToDecimal(newWithdrawn)).Error; err != nil {
				return fmt.Errorf("update withdrawn_fees %s: %w", alloc, err)
			}
			if err := tx.Where("allocation = ?", string(alloc)).Delete(&voucherRow{}).Error; err != nil {
				return fmt.Errorf("delete voucher %s: %w", alloc, err)
			}
		}
		return nil
	}, s.txOpts)
}

func toReceipts(rows []receiptRow) []model.AllocationReceipt {
	out := make([]model.AllocationReceipt, len(rows))
	for i, r := range rows {
		out[i] = model.AllocationReceipt{
			ID:         r.ID,
			Allocation: model.AllocationID(r.Allocation),
			Fees:       decimalToBig(r.Fees),
			Signature:  r.Signature,
		}
	}
	return out
}
