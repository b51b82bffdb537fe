package domain

// Outcome is the closed set of things a callback can resolve to.
type Outcome string

const (
	// OutcomeApproved means the wallet was credited right now.
	OutcomeApproved Outcome = "APPROVED"

	// OutcomeUserCancelled means the user backed out at the gateway.
	OutcomeUserCancelled Outcome = "USER_CANCELLED"

	// OutcomeDeclined means the gateway refused the payment.
	OutcomeDeclined Outcome = "DECLINED"

	// OutcomeRejected means the callback itself failed authenticity or
	// format checks and was never acted on.
	OutcomeRejected Outcome = "REJECTED"

	// OutcomeAlreadyProcessed means a duplicate delivery: the order
	// reference was settled before. Not a failure.
	OutcomeAlreadyProcessed Outcome = "ALREADY_PROCESSED"

	// OutcomeBeneficiaryNotFound means the token named a wallet we don't have.
	OutcomeBeneficiaryNotFound Outcome = "BENEFICIARY_NOT_FOUND"

	// OutcomePersistenceFailure means storage let us down. Safe to retry,
	// nothing was committed.
	OutcomePersistenceFailure Outcome = "PERSISTENCE_FAILURE"
)

// Result is the single answer handed back to the controller layer.
// Message is always drawn from a fixed table, never from gateway internals.
type Result struct {
	Outcome        Outcome `json:"outcome"`
	Message        string  `json:"message"`
	CreditedAmount int64   `json:"credited_amount,omitempty"`
	NewBalance     int64   `json:"new_balance,omitempty"`
	OrderReference string  `json:"order_reference,omitempty"`
}
