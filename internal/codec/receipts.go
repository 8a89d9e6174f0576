// Package codec implements the deterministic binary encodings exchanged
// with the gateway: a batch of receipts, and a batch of partial vouchers.
// Both encodings are pure byte-packing — no framing, no length prefixes —
// so callers size their buffers up front from the record count.
package codec

import (
	"fmt"
	"math/big"

	"github.com/dl-graf/indexer/internal/hexutil"
	"github.com/dl-graf/indexer/internal/model"
)

const (
	allocationIDLen = 20
	receiptFeesLen  = 33
	receiptIDLen    = 15
	signatureLen    = 64

	receiptRecordLen = receiptFeesLen + receiptIDLen + signatureLen // 112
)

// EncodeReceiptsBatch writes the 20 + 112*n byte encoding of a receipt
// batch: the shared allocation id, then one 112-byte record per receipt in
// the order given. Callers must pass receipts already sorted by id
// ascending — that order fixes the canonical encoding.
func EncodeReceiptsBatch(receipts []model.AllocationReceipt) ([]byte, error) {
	if len(receipts) == 0 {
		panic("codec: EncodeReceiptsBatch called with an empty batch")
	}

	alloc, err := hexutil.Decode(string(receipts[0].Allocation), allocationIDLen)
	if err != nil {
		return nil, fmt.Errorf("codec: allocation id: %w", err)
	}

	out := make([]byte, allocationIDLen+receiptRecordLen*len(receipts))
	copy(out, alloc)

	off := allocationIDLen
	for i, r := range receipts {
		if r.Allocation != receipts[0].Allocation {
			return nil, fmt.Errorf("codec: receipt %d allocation %q does not match batch allocation %q", i, r.Allocation, receipts[0].Allocation)
		}
		if err := writeBigInt(out[off:off+receiptFeesLen], r.Fees, receiptFeesLen); err != nil {
			return nil, fmt.Errorf("codec: receipt %d fees: %w", i, err)
		}
		off += receiptFeesLen

		id, err := hexutil.Decode(r.ID, receiptIDLen)
		if err != nil {
			return nil, fmt.Errorf("codec: receipt %d id: %w", i, err)
		}
		copy(out[off:off+receiptIDLen], id)
		off += receiptIDLen

		sig, err := hexutil.Decode(r.Signature, signatureLen)
		if err != nil {
			return nil, fmt.Errorf("codec: receipt %d signature: %w", i, err)
		}
		copy(out[off:off+signatureLen], sig)
		off += signatureLen
	}

	return out, nil
}

// DecodeReceiptsBatch reverses EncodeReceiptsBatch, used by tests and by
// any replay tooling. It does not validate cross-receipt ordering.
func DecodeReceiptsBatch(b []byte) (model.AllocationID, []model.AllocationReceipt, error) {
	if len(b) < allocationIDLen {
		return "", nil, fmt.Errorf("codec: receipt batch too short (%d bytes)", len(b))
	}
	rest := b[allocationIDLen:]
	if len(rest)%receiptRecordLen != 0 {
		return "", nil, fmt.Errorf("codec: receipt batch length %d is not 20 + 112*n", len(b))
	}
	alloc := model.AllocationID(hexutil.Encode(b[:allocationIDLen]))

	n := len(rest) / receiptRecordLen
	receipts := make([]model.AllocationReceipt, n)
	off := 0
	for i := 0; i < n; i++ {
		fees := new(big.Int).SetBytes(rest[off : off+receiptFeesLen])
		off += receiptFeesLen
		id := hexutil.Encode(rest[off : off+receiptIDLen])
		off += receiptIDLen
		sig := hexutil.Encode(rest[off : off+signatureLen])
		off += signatureLen
		receipts[i] = model.AllocationReceipt{
			ID:         id,
			Allocation: alloc,
			Fees:       fees,
			Signature:  sig,
		}
	}
	return alloc, receipts, nil
}

// writeBigInt left-zero-pads the big-endian encoding of v into exactly
// slotLen bytes. It rejects any value whose natural (leading-zero-free)
// byte length exceeds slotLen.
func writeBigInt(dst []byte, v *big.Int, slotLen int) error {
	if v == nil || v.Sign() < 0 {
		return fmt.Errorf("value must be a non-negative integer")
	}
	natural := v.Bytes()
	if len(natural) > slotLen {
		return fmt.Errorf("value does not fit in %d bytes (needs %d)", slotLen, len(natural))
	}
	for i := range dst {
		dst[i] = 0
	}
	copy(dst[slotLen-len(natural):], natural)
	return nil
}
