package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"coinpay/internal/core/domain"
	"coinpay/internal/core/reconcile"
)

// Every storage call on the settle path runs under this deadline. A timeout
// rolls the transaction back, so the caller can treat it as transient.
const settleTimeout = 5 * time.Second

type LedgerRepository struct {
	Db *pgxpool.Pool
}

func NewLedgerRepository(db *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{Db: db}
}

// Settle credits the beneficiary for one order reference, at most once ever.
//
// The whole thing is a single transaction:
//
//  1. Insert the ledger entry keyed by the full token. The UNIQUE constraint
//     on order_ref is the only serialization point: a concurrent duplicate
//     blocks on the index until the winner commits, then sees the conflict.
//  2. On conflict, read the existing entry and report AlreadyProcessed.
//  3. Otherwise bump the wallet with an atomic increment (balance = balance + n,
//     never read-then-write) and stamp the entry CREDITED with the snapshot.
//
// Entry and balance commit together or not at all. There is no committed
// entry without its increment, and no increment without its entry.
func (r *LedgerRepository) Settle(ctx context.Context, ref domain.OrderReference) (reconcile.SettleResult, error) {
	ctx, cancel := context.WithTimeout(ctx, settleTimeout)
	defer cancel()

	token := ref.Encode()

	tx, err := r.Db.Begin(ctx)
	if err != nil {
		return reconcile.SettleResult{}, fmt.Errorf("begin settle tx: %w", err)
	}
	defer tx.Rollback(ctx)

	entryID := uuid.New()
	var insertedID uuid.UUID
	err = tx.QueryRow(ctx, `
		INSERT INTO credit_ledger (id, order_ref, beneficiary_id, amount, status)
		VALUES ($1, $2, $3, $4, 'PENDING')
		ON CONFLICT (order_ref) DO NOTHING
		RETURNING id`,
		entryID, token, ref.BeneficiaryID, ref.CreditAmount).Scan(&insertedID)

	if errors.Is(err, pgx.ErrNoRows) {
		// Lost the insert: this order reference was settled before (or by
		// a concurrent delivery that just committed). Report what it did.
		var prior string
		err = r.Db.QueryRow(ctx,
			`SELECT status FROM credit_ledger WHERE order_ref = $1`, token).Scan(&prior)
		if err != nil {
			return reconcile.SettleResult{}, fmt.Errorf("read prior entry: %w", err)
		}
		return reconcile.SettleResult{
			Status:      reconcile.SettleAlreadyProcessed,
			PriorStatus: domain.EntryStatus(prior),
		}, nil
	}
	if err != nil {
		return reconcile.SettleResult{}, fmt.Errorf("insert ledger entry: %w", err)
	}

	var newBalance int64
	err = tx.QueryRow(ctx,
		`UPDATE accounts SET balance = balance + $1 WHERE id = $2 RETURNING balance`,
		ref.CreditAmount, ref.BeneficiaryID).Scan(&newBalance)

	if errors.Is(err, pgx.ErrNoRows) {
		// No such wallet. Keep the entry as a FAILED witness so the token
		// can never be replayed into a fresh credit later.
		if _, err := tx.Exec(ctx,
			`UPDATE credit_ledger SET status = 'FAILED', processed_at = NOW() WHERE id = $1`, entryID); err != nil {
			return reconcile.SettleResult{}, fmt.Errorf("mark entry failed: %w", err)
		}
		if err := tx.Commit(ctx); err != nil {
			return reconcile.SettleResult{}, fmt.Errorf("commit failed entry: %w", err)
		}
		return reconcile.SettleResult{Status: reconcile.SettleBeneficiaryNotFound}, nil
	}
	if err != nil {
		return reconcile.SettleResult{}, fmt.Errorf("increment balance: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE credit_ledger
		SET status = 'CREDITED', credited_balance = $1, processed_at = NOW()
		WHERE id = $2`, newBalance, entryID)
	if err != nil {
		return reconcile.SettleResult{}, fmt.Errorf("mark entry credited: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return reconcile.SettleResult{}, fmt.Errorf("commit settle tx: %w", err)
	}

	return reconcile.SettleResult{Status: reconcile.SettleCredited, NewBalance: newBalance}, nil
}

// ListCredits fetches the last 10 ledger entries for one beneficiary.
func (r *LedgerRepository) ListCredits(ctx context.Context, beneficiaryID int64) ([]domain.CreditLedgerEntry, error) {
	rows, err := r.Db.Query(ctx, `
		SELECT id, order_ref, beneficiary_id, amount, status,
		       COALESCE(credited_balance, 0), COALESCE(processed_at, created_at), created_at
		FROM credit_ledger
		WHERE beneficiary_id = $1
		ORDER BY created_at DESC
		LIMIT 10`, beneficiaryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.CreditLedgerEntry
	for rows.Next() {
		var e domain.CreditLedgerEntry
		if err := rows.Scan(&e.ID, &e.OrderRef, &e.BeneficiaryID, &e.Amount, &e.Status,
			&e.CreditedBalance, &e.ProcessedAt, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// EnqueueWebhook queues a job for the background worker. Best effort: the
// credit has already committed by the time this runs.
func (r *LedgerRepository) EnqueueWebhook(ctx context.Context, url string, payload []byte) error {
	_, err := r.Db.Exec(ctx,
		`INSERT INTO webhook_jobs (id, url, payload) VALUES ($1, $2, $3)`,
		uuid.New(), url, payload)
	if err != nil {
		return fmt.Errorf("queue webhook job: %w", err)
	}
	return nil
}
