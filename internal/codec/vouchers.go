package codec

import (
	"fmt"
	"math/big"

	"github.com/dl-graf/indexer/internal/hexutil"
	"github.com/dl-graf/indexer/internal/model"
)

const (
	// partialFeesLen is 32, not 33: the partial-voucher record packs
	// fees/signature/receiptIDMin/receiptIDMax as four 32-byte words so the
	// batch total comes out to 20 + 128*n, matching the quantified
	// invariant in the testable-properties section. (A literal 33-byte
	// fees slot, as used for individual receipts, would make the record
	// 129 bytes and break that invariant — see DESIGN.md.)
	partialFeesLen  = 32
	receiptBoundLen = 32

	partialRecordLen = partialFeesLen + signatureLen32 + receiptBoundLen*2 // 128
	signatureLen32   = 32
)

// EncodePartialVoucherBatch writes the 20 + 128*n byte encoding of a
// partial-voucher batch: the shared allocation id, then one 128-byte
// record per partial voucher in the order given.
func EncodePartialVoucherBatch(pvs []model.PartialVoucher) ([]byte, error) {
	if len(pvs) == 0 {
		panic("codec: EncodePartialVoucherBatch called with an empty batch")
	}

	alloc, err := hexutil.Decode(string(pvs[0].Allocation), allocationIDLen)
	if err != nil {
		return nil, fmt.Errorf("codec: allocation id: %w", err)
	}

	out := make([]byte, allocationIDLen+partialRecordLen*len(pvs))
	copy(out, alloc)

	off := allocationIDLen
	for i, pv := range pvs {
		if pv.Allocation != pvs[0].Allocation {
			return nil, fmt.Errorf("codec: partial voucher %d allocation %q does not match batch allocation %q", i, pv.Allocation, pvs[0].Allocation)
		}
		if err := writeBigInt(out[off:off+partialFeesLen], pv.Fees, partialFeesLen); err != nil {
			return nil, fmt.Errorf("codec: partial voucher %d fees: %w", i, err)
		}
		off += partialFeesLen

		sig, err := hexutil.Decode(pv.Signature, signatureLen32)
		if err != nil {
			return nil, fmt.Errorf("codec: partial voucher %d signature: %w", i, err)
		}
		copy(out[off:off+signatureLen32], sig)
		off += signatureLen32

		min, err := hexutil.Decode(pv.ReceiptIDMin, receiptBoundLen)
		if err != nil {
			return nil, fmt.Errorf("codec: partial voucher %d receipt_id_min: %w", i, err)
		}
		copy(out[off:off+receiptBoundLen], min)
		off += receiptBoundLen

		max, err := hexutil.Decode(pv.ReceiptIDMax, receiptBoundLen)
		if err != nil {
			return nil, fmt.Errorf("codec: partial voucher %d receipt_id_max: %w", i, err)
		}
		copy(out[off:off+receiptBoundLen], max)
		off += receiptBoundLen
	}

	return out, nil
}

// DecodePartialVoucherBatch reverses EncodePartialVoucherBatch.
func DecodePartialVoucherBatch(b []byte) (model.AllocationID, []model.PartialVoucher, error) {
	if len(b) < allocationIDLen {
		return "", nil, fmt.Errorf("codec: partial voucher batch too short (%d bytes)", len(b))
	}
	rest := b[allocationIDLen:]
	if len(rest)%partialRecordLen != 0 {
		return "", nil, fmt.Errorf("codec: partial voucher batch length %d is not 20 + 128*n", len(b))
	}
	alloc := model.AllocationID(hexutil.Encode(b[:allocationIDLen]))

	n := len(rest) / partialRecordLen
	pvs := make([]model.PartialVoucher, n)
	off := 0
	for i := 0; i < n; i++ {
		fees := new(big.Int).SetBytes(rest[off : off+partialFeesLen])
		off += partialFeesLen
		sig := hexutil.Encode(rest[off : off+signatureLen32])
		off += signatureLen32
		min := hexutil.Encode(rest[off : off+receiptBoundLen])
		off += receiptBoundLen
		max := hexutil.Encode(rest[off : off+receiptBoundLen])
		off += receiptBoundLen
		pvs[i] = model.PartialVoucher{
			Allocation:   alloc,
			Fees:         fees,
			Signature:    sig,
			ReceiptIDMin: min,
			ReceiptIDMax: max,
		}
	}
	return alloc, pvs, nil
}
