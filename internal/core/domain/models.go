package domain

import (
	"time"

	"github.com/google/uuid"
)

// Field names the gateway sends back on the redirect / notify leg.
const (
	FieldResponseCode      = "responseCode"
	FieldTransactionStatus = "transactionStatus"
	FieldOrderReference    = "orderReference"
	FieldAmount            = "amount"
	FieldSecureHash        = "secureHash"
)

// CallbackFields holds the raw query fields exactly as received.
// Nothing in here is trusted until the signature check passes.
type CallbackFields map[string]string

type EntryStatus string

const (
	EntryPending  EntryStatus = "PENDING"
	EntryCredited EntryStatus = "CREDITED"
	EntryFailed   EntryStatus = "FAILED"
)

// CreditLedgerEntry is the durable idempotency witness: one row per order
// reference, created exactly once, never deleted.
type CreditLedgerEntry struct {
	ID              uuid.UUID   `json:"id"`
	OrderRef        string      `json:"order_ref"`
	BeneficiaryID   int64       `json:"beneficiary_id"`
	Amount          int64       `json:"amount"`
	Status          EntryStatus `json:"status"`
	CreditedBalance int64       `json:"credited_balance,omitempty"`
	ProcessedAt     time.Time   `json:"processed_at,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
}
