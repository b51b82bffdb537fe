package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrAccountNotFound is returned when a beneficiary id matches nothing.
var ErrAccountNotFound = errors.New("account not found")

type AccountRepository struct {
	db *pgxpool.Pool
}

func NewAccountRepository(db *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{db: db}
}

// Account is a beneficiary wallet. Balance is a coin count, always mutated
// through atomic increments, never read-modify-write.
type Account struct {
	ID        int64     `json:"id"`
	OwnerName string    `json:"owner_name"`
	Balance   int64     `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateAccount
func (r *AccountRepository) CreateAccount(ctx context.Context, ownerName string) (*Account, error) {
	query := `
		INSERT INTO accounts (owner_name, balance)
		VALUES ($1, 0)
		RETURNING id, owner_name, balance, created_at
	`
	var acc Account
	err := r.db.QueryRow(ctx, query, ownerName).Scan(
		&acc.ID, &acc.OwnerName, &acc.Balance, &acc.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	return &acc, nil
}

// GetAccountByID
func (r *AccountRepository) GetAccountByID(ctx context.Context, id int64) (*Account, error) {
	query := `SELECT id, owner_name, balance, created_at FROM accounts WHERE id = $1`
	var acc Account
	err := r.db.QueryRow(ctx, query, id).Scan(
		&acc.ID, &acc.OwnerName, &acc.Balance, &acc.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

// AdjustBalance applies a manual operator adjustment atomically and returns
// the new balance. Used by the admin surface only; gateway credits go through
// the ledger's Settle.
func (r *AccountRepository) AdjustBalance(ctx context.Context, id int64, delta int64) (int64, error) {
	var newBalance int64
	err := r.db.QueryRow(ctx,
		`UPDATE accounts SET balance = balance + $1 WHERE id = $2 RETURNING balance`,
		delta, id).Scan(&newBalance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrAccountNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to adjust balance: %w", err)
	}
	return newBalance, nil
}

// SaveAPIKey stores the hashed admin key for the account
func (r *AccountRepository) SaveAPIKey(ctx context.Context, accountID int64, keyHash string, keyPrefix string) error {
	query := `INSERT INTO api_keys (account_id, key_hash, key_prefix) VALUES ($1, $2, $3)`

	_, err := r.db.Exec(ctx, query, accountID, keyHash, keyPrefix)
	if err != nil {
		return fmt.Errorf("failed to save api key: %w", err)
	}
	return nil
}
