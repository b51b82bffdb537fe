// Package reconcile runs the end-to-end callback protocol: authenticate the
// fields, decode the order token, classify the gateway's verdict, and, only
// for an approved payment, settle the credit exactly once.
package reconcile

import (
	"context"

	"coinpay/internal/core/domain"
)

// SettleStatus is the closed set of non-error settle answers.
type SettleStatus string

const (
	// SettleCredited means this call won the insert and the wallet moved.
	SettleCredited SettleStatus = "CREDITED"

	// SettleAlreadyProcessed means a ledger entry for this order reference
	// already existed. No side effects happened on this call.
	SettleAlreadyProcessed SettleStatus = "ALREADY_PROCESSED"

	// SettleBeneficiaryNotFound means the token named a wallet that does
	// not exist. The ledger entry is kept, marked FAILED.
	SettleBeneficiaryNotFound SettleStatus = "BENEFICIARY_NOT_FOUND"
)

// SettleResult reports what the ledger did.
type SettleResult struct {
	Status SettleStatus

	// NewBalance is set when Status is SettleCredited.
	NewBalance int64

	// PriorStatus is set when Status is SettleAlreadyProcessed: what the
	// existing entry said (CREDITED, FAILED, or a PENDING racer).
	PriorStatus domain.EntryStatus
}

// CreditLedger is the one storage surface the orchestrator needs.
//
// Settle must guarantee: for a given order reference the wallet is
// incremented by CreditAmount at most once, ever, no matter how many times
// or how concurrently it is called. The serialization point is a uniqueness
// constraint in the store, not a lock in this process. A returned error is a
// transient persistence failure: nothing was committed and a retry is safe.
type CreditLedger interface {
	Settle(ctx context.Context, ref domain.OrderReference) (SettleResult, error)
}
