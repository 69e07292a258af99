// internal/repository/balance_repo.go
package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"southmoney-ledger/internal/domain"
)

// BalanceRepository is the ledger store: durable per-user balance records
// with atomic read-modify-write. Every method takes a DBExecutor so that
// mutations join the caller's transaction boundary; nothing here commits
// on its own.
type BalanceRepository interface {
	// CreateBalance inserts the balance row for a newly opened account.
	CreateBalance(ctx context.Context, q DBExecutor, balance *domain.AccountBalance) error
	// GetBalance retrieves a user's balance record.
	GetBalance(ctx context.Context, q DBExecutor, userID int64) (*domain.AccountBalance, error)
	// GetBalanceForUpdate retrieves a balance record with a row lock
	// (SELECT ... FOR UPDATE), so it must be called inside a transaction.
	GetBalanceForUpdate(ctx context.Context, q DBExecutor, userID int64) (*domain.AccountBalance, error)
	// Debit subtracts amount from the user's balance. It never applies a
	// partial debit: if the balance is smaller than amount it fails with
	// util.ErrInsufficientFunds and leaves the row untouched.
	Debit(ctx context.Context, q DBExecutor, userID int64, amount decimal.Decimal) error
	// Credit adds amount to the user's balance, failing with
	// util.ErrAccountNotFound if no balance row exists.
	Credit(ctx context.Context, q DBExecutor, userID int64, amount decimal.Decimal) error
	// AddEarnings bumps the user's cumulative and today earnings counters.
	AddEarnings(ctx context.Context, q DBExecutor, userID int64, amount decimal.Decimal) error
	// ResetTodayEarnings zeroes every account's today_earnings counter and
	// returns the number of rows touched. Run by the daily rollover.
	ResetTodayEarnings(ctx context.Context, q DBExecutor) (int64, error)
}
