package store

import "math/big"

// Table models. All big integers are stored as decimal strings (spec.md
// §6), the relational analogue of the teacher's *big.Int struct fields
// serialized through JSON in internal/voucher/types.go.

type receiptRow struct {
	ID         string `gorm:"primaryKey;column:id"`
	Allocation string `gorm:"column:allocation;index:idx_receipts_allocation"`
	Fees       string `gorm:"column:fees"`
	Signature  string `gorm:"column:signature"`
}

func (receiptRow) TableName() string { return "allocation_receipts" }

type summaryRow struct {
	Allocation    string `gorm:"primaryKey;column:allocation"`
	ClosedAt      *int64 `gorm:"column:closed_at"`
	CollectedFees string `gorm:"column:collected_fees"`
	WithdrawnFees string `gorm:"column:withdrawn_fees"`
}

func (summaryRow) TableName() string { return "allocation_summaries" }

type voucherRow struct {
	Allocation string `gorm:"primaryKey;column:allocation"`
	Amount     string `gorm:"column:amount"`
	Signature  string `gorm:"column:signature"`
}

func (voucherRow) TableName() string { return "vouchers" }

func bigToDecimal(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func decimalToBig(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return big.NewInt(0)
	}
	return v
}
