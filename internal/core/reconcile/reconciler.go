package reconcile

import (
	"context"
	"log/slog"

	"coinpay/internal/core/domain"
	"coinpay/internal/core/gateway"
	"coinpay/internal/core/security"
)

// Fixed user-facing messages. Like the gateway decline table, this is the
// complete list of things this package will ever say to an end user.
const (
	msgVerificationFailed  = "The payment confirmation could not be verified. If you were charged, please contact support."
	msgMalformedReference  = "The payment reference is not valid. If you were charged, please contact support."
	msgCredited            = "Payment received. Your coins have been added to your wallet."
	msgAlreadyProcessed    = "This payment has already been processed. Your coins were added when it first completed."
	msgAlreadyFailed       = "This payment has already been processed but could not be credited. Please contact support."
	msgBeneficiaryNotFound = "We could not match this payment to an account. Please contact support."
	msgPersistenceFailure  = "We could not complete the credit right now. Please try again in a moment."
)

// Reconciler is stateless and safe for concurrent use; all shared mutable
// state lives behind the CreditLedger.
type Reconciler struct {
	secret    []byte
	maxCredit int64
	ledger    CreditLedger
}

// New builds a Reconciler. The secret is loaded once at process start and
// immutable after this call; it must never appear in logs or responses.
func New(secret string, maxCredit int64, ledger CreditLedger) *Reconciler {
	return &Reconciler{
		secret:    []byte(secret),
		maxCredit: maxCredit,
		ledger:    ledger,
	}
}

// Reconcile runs one callback through the whole pipeline:
// canonicalize -> verify signature -> decode token -> classify -> settle.
// Every exit path returns a closed Result; nothing is thrown past the caller.
func (r *Reconciler) Reconcile(ctx context.Context, fields domain.CallbackFields) domain.Result {
	rawRef := fields[domain.FieldOrderReference]

	// 1. Authenticity gate. Until this passes, no field is trusted - not
	// even the order reference we echo back in the result.
	supplied := fields[domain.FieldSecureHash]
	if supplied == "" {
		slog.Warn("Callback rejected: signature missing")
		return domain.Result{Outcome: domain.OutcomeRejected, Message: msgVerificationFailed}
	}

	canonical := security.Canonicalize(fields, domain.FieldSecureHash)
	if security.VerifySignature(canonical, supplied, r.secret) != security.Verified {
		slog.Warn("Callback rejected: signature mismatch", "order_ref", rawRef)
		return domain.Result{Outcome: domain.OutcomeRejected, Message: msgVerificationFailed}
	}

	// 2. Decode the order token. Strict grammar, no partial parse.
	ref, err := domain.ParseOrderReference(rawRef, r.maxCredit)
	if err != nil {
		slog.Warn("Callback rejected: malformed order reference", "order_ref", rawRef)
		return domain.Result{Outcome: domain.OutcomeRejected, Message: msgMalformedReference, OrderReference: rawRef}
	}

	// 3. What did the gateway actually say?
	outcome := gateway.Classify(fields[domain.FieldResponseCode], fields[domain.FieldTransactionStatus])

	switch outcome.Kind {
	case gateway.KindUserCancelled:
		slog.Info("Payment cancelled by user", "order_ref", rawRef)
		return domain.Result{Outcome: domain.OutcomeUserCancelled, Message: outcome.Message, OrderReference: rawRef}

	case gateway.KindDeclined:
		slog.Info("Payment declined by gateway", "order_ref", rawRef, "code", outcome.Code)
		return domain.Result{Outcome: domain.OutcomeDeclined, Message: outcome.Message, OrderReference: rawRef}
	}

	// 4. Approved: settle exactly once.
	settled, err := r.ledger.Settle(ctx, ref)
	if err != nil {
		slog.Error("Settle failed, nothing committed", "error", err, "order_ref", rawRef)
		return domain.Result{Outcome: domain.OutcomePersistenceFailure, Message: msgPersistenceFailure, OrderReference: rawRef}
	}

	switch settled.Status {
	case SettleAlreadyProcessed:
		slog.Info("Duplicate delivery, credit already settled", "order_ref", rawRef, "prior_status", settled.PriorStatus)
		result := domain.Result{Outcome: domain.OutcomeAlreadyProcessed, Message: msgAlreadyProcessed, OrderReference: rawRef}
		if settled.PriorStatus == domain.EntryCredited {
			result.CreditedAmount = ref.CreditAmount
		}
		// "Your coins were added" would be a lie for a FAILED witness.
		if settled.PriorStatus == domain.EntryFailed {
			result.Message = msgAlreadyFailed
		}
		return result

	case SettleBeneficiaryNotFound:
		slog.Warn("Credit refused: beneficiary not found", "order_ref", rawRef, "beneficiary_id", ref.BeneficiaryID)
		return domain.Result{Outcome: domain.OutcomeBeneficiaryNotFound, Message: msgBeneficiaryNotFound, OrderReference: rawRef}
	}

	slog.Info("💰 Wallet credited", "order_ref", rawRef, "beneficiary_id", ref.BeneficiaryID, "amount", ref.CreditAmount)
	return domain.Result{
		Outcome:        domain.OutcomeApproved,
		Message:        msgCredited,
		CreditedAmount: ref.CreditAmount,
		NewBalance:     settled.NewBalance,
		OrderReference: rawRef,
	}
}
