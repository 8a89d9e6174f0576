package gateway

import (
	"fmt"
	"math/big"

	"github.com/dl-graf/indexer/internal/hexutil"
	"github.com/dl-graf/indexer/internal/model"
)

// voucherWire is the JSON shape the gateway returns from /collect-receipts
// and /voucher: {allocation, amount, signature}. The allocation address
// may come back in a different case than requested (spec.md §4.2 edge
// case); toModel canonicalizes it through hexutil.Normalize.
type voucherWire struct {
	Allocation string `json:"allocation"`
	Amount     string `json:"amount"`
	Signature  string `json:"signature"`
}

func (w voucherWire) toModel() (model.Voucher, error) {
	amount, ok := new(big.Int).SetString(w.Amount, 10)
	if !ok {
		return model.Voucher{}, fmt.Errorf("gateway: invalid voucher amount %q", w.Amount)
	}
	return model.Voucher{
		Allocation: model.AllocationID(hexutil.Normalize(w.Allocation)),
		Amount:     amount,
		Signature:  hexutil.Normalize(w.Signature),
	}, nil
}

// partialVoucherWire is the JSON shape returned from /partial-voucher.
type partialVoucherWire struct {
	Allocation   string `json:"allocation"`
	Fees         string `json:"fees"`
	Signature    string `json:"signature"`
	ReceiptIDMin string `json:"receiptIdMin"`
	ReceiptIDMax string `json:"receiptIdMax"`
}

func (w partialVoucherWire) toModel() (model.PartialVoucher, error) {
	fees, ok := new(big.Int).SetString(w.Fees, 10)
	if !ok {
		return model.PartialVoucher{}, fmt.Errorf("gateway: invalid partial voucher fees %q", w.Fees)
	}
	return model.PartialVoucher{
		Allocation:   model.AllocationID(hexutil.Normalize(w.Allocation)),
		Fees:         fees,
		Signature:    hexutil.Normalize(w.Signature),
		ReceiptIDMin: w.ReceiptIDMin,
		ReceiptIDMax: w.ReceiptIDMax,
	}, nil
}
