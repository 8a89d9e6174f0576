// Package coreerr names the domain-stable error codes of spec.md §7, so
// logs and metrics can key off a fixed identifier rather than an error's
// free-form message (which is still wrapped in via %w for diagnostics).
package coreerr

import "errors"

var (
	// ErrRememberAllocationsFailed means a summary upsert failed inside
	// RememberAllocations. Logged and returned as false; the caller may
	// retry.
	ErrRememberAllocationsFailed = errors.New("remember_allocations_failed")

	// ErrQueueReceiptsFailed means the closing transaction or delay-queue
	// push failed inside CollectReceipts. Surfaced to the caller — fatal
	// for that close action.
	ErrQueueReceiptsFailed = errors.New("queue_receipts_failed")

	// ErrCollectExchangeFailed means the gateway-exchange state machine
	// failed. Logged; receipts stay in the database for a later retry.
	ErrCollectExchangeFailed = errors.New("collect_exchange_failed")

	// ErrVoucherRedeemFailed means on-chain submission failed. Logged; the
	// voucher stays in the database for the next redemption cycle.
	ErrVoucherRedeemFailed = errors.New("voucher_redeem_failed")

	// ErrVoucherRedeemInvalid means the transaction manager returned the
	// paused or unauthorized sentinel. Counted separately from
	// ErrVoucherRedeemFailed; retried next cycle.
	ErrVoucherRedeemInvalid = errors.New("voucher_redeem_invalid")
)
