// Package chain defines the boundary to the two out-of-scope external
// collaborators named in spec.md §1: the allocation-exchange contract
// (redeemMany / allocationsRedeemed) and the transaction manager (gas
// estimation, sending, and the paused/unauthorized sentinels). Only the
// interfaces and a thin go-ethereum-backed implementation live here — the
// transaction manager's retry/backoff policy and the contract's Solidity
// are both out of this core's scope.
package chain

import (
	"context"
	"math/big"

	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/dl-graf/indexer/internal/model"
)

// RedemptionEntry is one line of the on-chain batch payload: an
// allocation, the amount being redeemed, and the voucher signature that
// authorizes it.
type RedemptionEntry struct {
	AllocationID model.AllocationID
	Amount       *big.Int
	Signature    string
}

// Sentinel is one of the two non-error outcomes the transaction manager
// may return instead of a receipt.
type Sentinel int

const (
	SentinelNone Sentinel = iota
	SentinelPaused
	SentinelUnauthorized
)

func (s Sentinel) String() string {
	switch s {
	case SentinelPaused:
		return "paused"
	case SentinelUnauthorized:
		return "unauthorized"
	default:
		return "none"
	}
}

// SubmitResult is what the transaction manager hands back: either a mined
// receipt (Sentinel == SentinelNone) or a sentinel with no receipt.
type SubmitResult struct {
	Receipt  *gethtypes.Receipt
	Sentinel Sentinel
}

// GasEstimateFunc estimates the gas cost of a pending call.
type GasEstimateFunc func(ctx context.Context) (uint64, error)

// SendFunc sends the call with the given gas limit and returns the
// pending transaction.
type SendFunc func(ctx context.Context, gasLimit uint64) (*gethtypes.Transaction, error)

// TransactionManager is the out-of-scope collaborator that turns an
// estimate closure and a send closure into a mined receipt or a sentinel.
type TransactionManager interface {
	Submit(ctx context.Context, estimate GasEstimateFunc, send SendFunc, log *zap.Logger) (*SubmitResult, error)
}

// AllocationExchange is the out-of-scope on-chain contract collaborator.
type AllocationExchange interface {
	// EstimateRedeemMany estimates the gas cost of redeeming entries.
	EstimateRedeemMany(ctx context.Context, entries []RedemptionEntry) (uint64, error)
	// SendRedeemMany submits the batch with the given gas limit.
	SendRedeemMany(ctx context.Context, entries []RedemptionEntry, gasLimit uint64) (*gethtypes.Transaction, error)
	// AllocationsRedeemed reports whether the allocation has already been
	// redeemed on-chain.
	AllocationsRedeemed(ctx context.Context, allocation model.AllocationID) (bool, error)
}
