// Package model holds the entities shared across the collector, redeemer,
// codec, and store packages: allocations, receipts, vouchers, and the
// transient in-memory batch types that never touch the database.
package model

import (
	"math/big"

	"github.com/dl-graf/indexer/internal/hexutil"
)

// AllocationID is a 20-byte address, always held in normalized form
// (lowercase hex, "0x"-prefixed).
type AllocationID string

// NewAllocationID normalizes a raw hex address into an AllocationID.
func NewAllocationID(raw string) (AllocationID, error) {
	if _, err := hexutil.Decode(raw, 20); err != nil {
		return "", err
	}
	return AllocationID(hexutil.Normalize(raw)), nil
}

// AllocationReceipt is a single signed micropayment receipt collected
// under an allocation. Destroyed atomically once exchanged for a voucher.
type AllocationReceipt struct {
	ID         string       // 15-byte hex identifier
	Allocation AllocationID
	Fees       *big.Int // unsigned, fits in 33 bytes
	Signature  string   // 64-byte hex
}

// AllocationSummary is the per-allocation bookkeeping row.
type AllocationSummary struct {
	Allocation     AllocationID
	ClosedAt       *int64 // unix millis, nil until the allocation is closed
	CollectedFees  *big.Int
	WithdrawnFees  *big.Int
}

// Voucher is a gateway-signed aggregate claim redeemable on-chain.
type Voucher struct {
	Allocation AllocationID
	Amount     *big.Int
	Signature  string // hex
}

// PartialVoucher is an interim aggregate over a contiguous range of receipt
// ids. It is never persisted — held only in memory during chunked
// collection.
type PartialVoucher struct {
	Allocation    AllocationID
	Fees          *big.Int
	Signature     string // 32-byte hex
	ReceiptIDMin  string // 32-byte hex
	ReceiptIDMax  string // 32-byte hex
}

// ReceiptsBatch is a transient, in-memory unit of work pushed onto the
// delay queue on allocation close (or at recovery) and popped by the
// collector's tick. Every receipt in Receipts shares Allocation and is
// ordered by ID ascending — that ordering fixes the canonical encoding.
type ReceiptsBatch struct {
	Receipts []AllocationReceipt
	Allocation AllocationID
	// Timeout is the epoch-millisecond time at which this batch becomes
	// eligible for processing by the collector tick.
	Timeout int64
}
