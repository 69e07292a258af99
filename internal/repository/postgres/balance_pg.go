// internal/repository/postgres/balance_pg.go
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"southmoney-ledger/internal/domain"
	"southmoney-ledger/internal/repository"
	"southmoney-ledger/internal/util"
)

// BalanceRepository implements repository.BalanceRepository for PostgreSQL.
type BalanceRepository struct {
	// Methods receive a DBExecutor directly, so no connection is held here.
}

// NewBalanceRepository creates a new BalanceRepository.
func NewBalanceRepository(db *sqlx.DB) repository.BalanceRepository {
	return &BalanceRepository{}
}

// isUniqueViolation reports whether err is a Postgres unique-constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23505"
	}
	return false
}

// CreateBalance inserts the balance row for a newly opened account.
func (r *BalanceRepository) CreateBalance(ctx context.Context, q repository.DBExecutor, balance *domain.AccountBalance) error {
	query := `INSERT INTO balances (user_id, balance, cumulative_earnings, today_earnings, updated_at)
              VALUES ($1, $2, $3, $4, $5)`
	_, err := q.ExecContext(ctx, query,
		balance.UserID, balance.Balance, balance.CumulativeEarnings, balance.TodayEarnings, balance.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("balance for user %d already exists: %w", balance.UserID, util.ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to create balance for user %d: %w", balance.UserID, err)
	}
	return nil
}

// GetBalance retrieves a user's balance record.
func (r *BalanceRepository) GetBalance(ctx context.Context, q repository.DBExecutor, userID int64) (*domain.AccountBalance, error) {
	var balance domain.AccountBalance
	query := `SELECT user_id, balance, cumulative_earnings, today_earnings, updated_at FROM balances WHERE user_id = $1`
	err := q.GetContext(ctx, &balance, query, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, util.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get balance for user %d: %w", userID, err)
	}
	return &balance, nil
}

// GetBalanceForUpdate retrieves a balance record with a row lock. Callers
// must be inside a transaction; the lock is held until commit or rollback.
func (r *BalanceRepository) GetBalanceForUpdate(ctx context.Context, q repository.DBExecutor, userID int64) (*domain.AccountBalance, error) {
	var balance domain.AccountBalance
	query := `SELECT user_id, balance, cumulative_earnings, today_earnings, updated_at FROM balances WHERE user_id = $1 FOR UPDATE`
	err := q.GetContext(ctx, &balance, query, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, util.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to lock balance for user %d: %w", userID, err)
	}
	return &balance, nil
}

// Debit subtracts amount from the user's balance. The WHERE clause guards
// the invariant balance >= 0: when funds are short, zero rows change and
// the debit is reported as insufficient funds rather than partially applied.
func (r *BalanceRepository) Debit(ctx context.Context, q repository.DBExecutor, userID int64, amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return util.ErrInvalidAmount
	}
	query := `UPDATE balances SET balance = balance - $1, updated_at = $2 WHERE user_id = $3 AND balance >= $1`
	result, err := q.ExecContext(ctx, query, amount, time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("failed to debit user %d: %w", userID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected debiting user %d: %w", userID, err)
	}
	if rowsAffected == 0 {
		return util.ErrInsufficientFunds
	}
	return nil
}

// Credit adds amount to the user's balance.
func (r *BalanceRepository) Credit(ctx context.Context, q repository.DBExecutor, userID int64, amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return util.ErrInvalidAmount
	}
	query := `UPDATE balances SET balance = balance + $1, updated_at = $2 WHERE user_id = $3`
	result, err := q.ExecContext(ctx, query, amount, time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("failed to credit user %d: %w", userID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected crediting user %d: %w", userID, err)
	}
	if rowsAffected == 0 {
		return util.ErrAccountNotFound
	}
	return nil
}

// AddEarnings bumps the seller's cumulative and today earnings counters.
func (r *BalanceRepository) AddEarnings(ctx context.Context, q repository.DBExecutor, userID int64, amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return util.ErrInvalidAmount
	}
	query := `UPDATE balances
              SET cumulative_earnings = cumulative_earnings + $1,
                  today_earnings = today_earnings + $1,
                  updated_at = $2
              WHERE user_id = $3`
	result, err := q.ExecContext(ctx, query, amount, time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("failed to add earnings for user %d: %w", userID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected adding earnings for user %d: %w", userID, err)
	}
	if rowsAffected == 0 {
		return util.ErrAccountNotFound
	}
	return nil
}

// ResetTodayEarnings zeroes every account's today_earnings counter.
func (r *BalanceRepository) ResetTodayEarnings(ctx context.Context, q repository.DBExecutor) (int64, error) {
	query := `UPDATE balances SET today_earnings = 0, updated_at = $1 WHERE today_earnings <> 0`
	result, err := q.ExecContext(ctx, query, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to reset today earnings: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected resetting today earnings: %w", err)
	}
	return rowsAffected, nil
}
