// Package inmem provides an in-memory credit ledger for tests and local runs.
// The map under the mutex plays the role of the UNIQUE index: the first
// settle for a token wins, everyone after observes the existing entry.
package inmem

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"coinpay/internal/core/domain"
	"coinpay/internal/core/reconcile"
)

// Ledger implements reconcile.CreditLedger with in-memory storage.
type Ledger struct {
	mu        sync.Mutex
	balances  map[int64]int64
	entries   map[string]*domain.CreditLedgerEntry
	clockFunc func() time.Time
	failNext  error
}

// NewLedger creates an empty in-memory ledger.
func NewLedger() *Ledger {
	return &Ledger{
		balances:  make(map[int64]int64),
		entries:   make(map[string]*domain.CreditLedgerEntry),
		clockFunc: time.Now,
	}
}

// NewLedgerWithClock creates a ledger with an injected clock for determinism.
func NewLedgerWithClock(clockFunc func() time.Time) *Ledger {
	l := NewLedger()
	l.clockFunc = clockFunc
	return l
}

// CreateAccount seeds a beneficiary wallet.
func (l *Ledger) CreateAccount(id int64, balance int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[id] = balance
}

// Balance reports a wallet's current coin count.
func (l *Ledger) Balance(id int64) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[id]
}

// Entry returns the ledger entry for a token, or nil if none was created.
func (l *Ledger) Entry(token string) *domain.CreditLedgerEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.entries[token]; ok {
		copied := *e
		return &copied
	}
	return nil
}

// FailNext makes the next Settle call return err with no state change,
// simulating a storage outage.
func (l *Ledger) FailNext(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failNext = err
}

// Settle implements reconcile.CreditLedger.
func (l *Ledger) Settle(ctx context.Context, ref domain.OrderReference) (reconcile.SettleResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.failNext != nil {
		err := l.failNext
		l.failNext = nil
		return reconcile.SettleResult{}, err
	}

	token := ref.Encode()

	if existing, ok := l.entries[token]; ok {
		return reconcile.SettleResult{
			Status:      reconcile.SettleAlreadyProcessed,
			PriorStatus: existing.Status,
		}, nil
	}

	now := l.clockFunc()
	entry := &domain.CreditLedgerEntry{
		ID:            uuid.New(),
		OrderRef:      token,
		BeneficiaryID: ref.BeneficiaryID,
		Amount:        ref.CreditAmount,
		ProcessedAt:   now,
		CreatedAt:     now,
	}

	balance, ok := l.balances[ref.BeneficiaryID]
	if !ok {
		entry.Status = domain.EntryFailed
		l.entries[token] = entry
		return reconcile.SettleResult{Status: reconcile.SettleBeneficiaryNotFound}, nil
	}

	balance += ref.CreditAmount
	l.balances[ref.BeneficiaryID] = balance

	entry.Status = domain.EntryCredited
	entry.CreditedBalance = balance
	l.entries[token] = entry

	return reconcile.SettleResult{Status: reconcile.SettleCredited, NewBalance: balance}, nil
}
