package reconcile_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coinpay/internal/adapter/storage/inmem"
	"coinpay/internal/core/domain"
	"coinpay/internal/core/reconcile"
	"coinpay/internal/core/security"
)

const (
	testSecret    = "test-gateway-secret"
	testMaxCredit = 100000
	testToken     = "COIN_42_500_1700000000"
)

// signedFields builds a callback the way the gateway would: all fields plus
// a valid secureHash over their canonical form.
func signedFields(orderRef, responseCode, txStatus string) domain.CallbackFields {
	fields := domain.CallbackFields{
		domain.FieldResponseCode:      responseCode,
		domain.FieldTransactionStatus: txStatus,
		domain.FieldOrderReference:    orderRef,
		domain.FieldAmount:            "500",
	}
	canonical := security.Canonicalize(fields, domain.FieldSecureHash)
	fields[domain.FieldSecureHash] = security.Sign(canonical, []byte(testSecret))
	return fields
}

func newTestReconciler() (*reconcile.Reconciler, *inmem.Ledger) {
	ledger := inmem.NewLedger()
	ledger.CreateAccount(42, 1000)
	return reconcile.New(testSecret, testMaxCredit, ledger), ledger
}

func TestReconcileApprovedCreditsWallet(t *testing.T) {
	r, ledger := newTestReconciler()

	result := r.Reconcile(context.Background(), signedFields(testToken, "00", "00"))

	require.Equal(t, domain.OutcomeApproved, result.Outcome)
	assert.Equal(t, int64(500), result.CreditedAmount)
	assert.Equal(t, int64(1500), result.NewBalance)
	assert.Equal(t, testToken, result.OrderReference)
	assert.Equal(t, int64(1500), ledger.Balance(42))

	entry := ledger.Entry(testToken)
	require.NotNil(t, entry)
	assert.Equal(t, domain.EntryCredited, entry.Status)
	assert.Equal(t, int64(1500), entry.CreditedBalance)
}

func TestReconcileReplayIsAlreadyProcessed(t *testing.T) {
	r, ledger := newTestReconciler()
	fields := signedFields(testToken, "00", "00")

	first := r.Reconcile(context.Background(), fields)
	require.Equal(t, domain.OutcomeApproved, first.Outcome)

	second := r.Reconcile(context.Background(), fields)
	assert.Equal(t, domain.OutcomeAlreadyProcessed, second.Outcome)
	assert.Equal(t, int64(500), second.CreditedAmount)
	assert.Zero(t, second.NewBalance)
	assert.Contains(t, second.Message, "were added when it first completed")

	// The replay must not move the wallet.
	assert.Equal(t, int64(1500), ledger.Balance(42))
}

func TestReconcileTamperedSignature(t *testing.T) {
	r, ledger := newTestReconciler()

	fields := signedFields(testToken, "00", "00")
	sig := []byte(fields[domain.FieldSecureHash])
	if sig[0] == 'a' {
		sig[0] = 'b'
	} else {
		sig[0] = 'a'
	}
	fields[domain.FieldSecureHash] = string(sig)

	result := r.Reconcile(context.Background(), fields)

	assert.Equal(t, domain.OutcomeRejected, result.Outcome)
	assert.NotEmpty(t, result.Message)
	// Nothing downstream of the gate may run: no entry, no credit.
	assert.Nil(t, ledger.Entry(testToken))
	assert.Equal(t, int64(1000), ledger.Balance(42))
}

func TestReconcileMissingSignature(t *testing.T) {
	r, ledger := newTestReconciler()

	fields := signedFields(testToken, "00", "00")
	delete(fields, domain.FieldSecureHash)

	result := r.Reconcile(context.Background(), fields)

	assert.Equal(t, domain.OutcomeRejected, result.Outcome)
	assert.Equal(t, int64(1000), ledger.Balance(42))
}

func TestReconcileMalformedOrderReference(t *testing.T) {
	r, ledger := newTestReconciler()

	// Signed correctly, but the token itself is garbage: the signature gate
	// passes and the codec must reject it whole.
	result := r.Reconcile(context.Background(), signedFields("COIN_42_garbage", "00", "00"))

	assert.Equal(t, domain.OutcomeRejected, result.Outcome)
	assert.Equal(t, int64(1000), ledger.Balance(42))
}

func TestReconcileUserCancelled(t *testing.T) {
	r, ledger := newTestReconciler()

	result := r.Reconcile(context.Background(), signedFields(testToken, "24", "24"))

	assert.Equal(t, domain.OutcomeUserCancelled, result.Outcome)
	assert.NotEmpty(t, result.Message)
	assert.Nil(t, ledger.Entry(testToken))
	assert.Equal(t, int64(1000), ledger.Balance(42))
}

func TestReconcileDeclined(t *testing.T) {
	r, ledger := newTestReconciler()

	result := r.Reconcile(context.Background(), signedFields(testToken, "51", "51"))

	assert.Equal(t, domain.OutcomeDeclined, result.Outcome)
	assert.Contains(t, result.Message, "insufficient funds")
	assert.Nil(t, ledger.Entry(testToken))
}

func TestReconcileBeneficiaryNotFound(t *testing.T) {
	r, ledger := newTestReconciler()

	token := "COIN_99_500_1700000000"
	result := r.Reconcile(context.Background(), signedFields(token, "00", "00"))

	assert.Equal(t, domain.OutcomeBeneficiaryNotFound, result.Outcome)

	// The failed attempt still leaves a witness so the token cannot be
	// replayed into a fresh credit if the account appears later.
	entry := ledger.Entry(token)
	require.NotNil(t, entry)
	assert.Equal(t, domain.EntryFailed, entry.Status)

	replay := r.Reconcile(context.Background(), signedFields(token, "00", "00"))
	assert.Equal(t, domain.OutcomeAlreadyProcessed, replay.Outcome)
	assert.Zero(t, replay.CreditedAmount)
	// The replay of a FAILED witness must not claim coins were added.
	assert.Contains(t, replay.Message, "could not be credited")
	assert.NotContains(t, replay.Message, "were added")
}

func TestReconcilePersistenceFailureThenRetry(t *testing.T) {
	r, ledger := newTestReconciler()
	fields := signedFields(testToken, "00", "00")

	ledger.FailNext(errors.New("connection reset"))
	first := r.Reconcile(context.Background(), fields)
	assert.Equal(t, domain.OutcomePersistenceFailure, first.Outcome)
	assert.Nil(t, ledger.Entry(testToken))
	assert.Equal(t, int64(1000), ledger.Balance(42))

	// Nothing was committed, so the retry behaves like a first delivery.
	second := r.Reconcile(context.Background(), fields)
	assert.Equal(t, domain.OutcomeApproved, second.Outcome)
	assert.Equal(t, int64(1500), ledger.Balance(42))
}

func TestReconcileConcurrentDuplicates(t *testing.T) {
	r, ledger := newTestReconciler()
	fields := signedFields(testToken, "00", "00")

	const n = 16
	results := make([]domain.Result, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = r.Reconcile(context.Background(), fields)
		}(i)
	}
	wg.Wait()

	var credited, alreadyProcessed int
	for _, result := range results {
		switch result.Outcome {
		case domain.OutcomeApproved:
			credited++
		case domain.OutcomeAlreadyProcessed:
			alreadyProcessed++
		default:
			t.Fatalf("unexpected outcome %s", result.Outcome)
		}
	}

	assert.Equal(t, 1, credited)
	assert.Equal(t, n-1, alreadyProcessed)
	assert.Equal(t, int64(1500), ledger.Balance(42))
}
