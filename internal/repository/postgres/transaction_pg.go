// internal/repository/postgres/transaction_pg.go
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"southmoney-ledger/internal/domain"
	"southmoney-ledger/internal/repository"
	"southmoney-ledger/internal/util"
)

const transactionColumns = `id, product_id, buyer_id, seller_id, quantity, unit_price, total_price, purchase_time, idempotency_key, created_at`

// TransactionRepository implements repository.TransactionRepository for PostgreSQL.
type TransactionRepository struct {
	// Methods receive a DBExecutor directly, so no connection is held here.
}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository(db *sqlx.DB) repository.TransactionRepository {
	return &TransactionRepository{}
}

// CreateTransaction inserts a settlement record. Records are immutable:
// there is no update counterpart. A conflict on the idempotency key's
// unique index surfaces as util.ErrDuplicateEntry.
func (r *TransactionRepository) CreateTransaction(ctx context.Context, q repository.DBExecutor, record *domain.TransactionRecord) error {
	query := `INSERT INTO transactions (` + transactionColumns + `)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := q.ExecContext(ctx, query,
		record.ID,
		record.ProductID,
		record.BuyerID,
		record.SellerID,
		record.Quantity,
		record.UnitPrice,
		record.TotalPrice,
		record.PurchaseTime,
		record.IdempotencyKey,
		record.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("transaction with this idempotency key already exists: %w", util.ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

// GetTransactionByID retrieves one settlement record.
func (r *TransactionRepository) GetTransactionByID(ctx context.Context, q repository.DBExecutor, id uuid.UUID) (*domain.TransactionRecord, error) {
	var record domain.TransactionRecord
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	err := q.GetContext(ctx, &record, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get transaction %s: %w", id, err)
	}
	return &record, nil
}

// GetTransactionByIdempotencyKey retrieves the record settled under a
// client-supplied key.
func (r *TransactionRepository) GetTransactionByIdempotencyKey(ctx context.Context, q repository.DBExecutor, key string) (*domain.TransactionRecord, error) {
	var record domain.TransactionRecord
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE idempotency_key = $1`
	err := q.GetContext(ctx, &record, query, key)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get transaction by idempotency key: %w", err)
	}
	return &record, nil
}

// GetTransactionsByBuyerID retrieves a page of a buyer's purchases, newest
// first, along with the total count for the pagination envelope.
func (r *TransactionRepository) GetTransactionsByBuyerID(ctx context.Context, q repository.DBExecutor, buyerID int64, limit, offset int) ([]domain.TransactionRecord, int64, error) {
	records := []domain.TransactionRecord{}

	query := `SELECT ` + transactionColumns + `
              FROM transactions
              WHERE buyer_id = $1
              ORDER BY purchase_time DESC
              LIMIT $2 OFFSET $3`
	err := q.SelectContext(ctx, &records, query, buyerID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch purchases for buyer %d: %w", buyerID, err)
	}

	var totalCount int64
	countQuery := `SELECT COUNT(*) FROM transactions WHERE buyer_id = $1`
	err = q.GetContext(ctx, &totalCount, countQuery, buyerID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count purchases for buyer %d: %w", buyerID, err)
	}

	return records, totalCount, nil
}

// GetTransactionsBySellerID retrieves all of a seller's sales, newest first.
// seller_id is denormalized onto the record at settlement time, so no join
// against products is needed.
func (r *TransactionRepository) GetTransactionsBySellerID(ctx context.Context, q repository.DBExecutor, sellerID int64) ([]domain.TransactionRecord, error) {
	records := []domain.TransactionRecord{}
	query := `SELECT ` + transactionColumns + `
              FROM transactions
              WHERE seller_id = $1
              ORDER BY purchase_time DESC`
	err := q.SelectContext(ctx, &records, query, sellerID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch sales for seller %d: %w", sellerID, err)
	}
	return records, nil
}

// GetTransactionsByDateRange retrieves records settled within [start, end].
func (r *TransactionRepository) GetTransactionsByDateRange(ctx context.Context, q repository.DBExecutor, start, end time.Time) ([]domain.TransactionRecord, error) {
	records := []domain.TransactionRecord{}
	query := `SELECT ` + transactionColumns + `
              FROM transactions
              WHERE purchase_time >= $1 AND purchase_time <= $2
              ORDER BY purchase_time DESC`
	err := q.SelectContext(ctx, &records, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transactions between %s and %s: %w", start, end, err)
	}
	return records, nil
}

// GetTotalSalesBySellerID sums total_price over a seller's sales.
func (r *TransactionRepository) GetTotalSalesBySellerID(ctx context.Context, q repository.DBExecutor, sellerID int64) (decimal.Decimal, error) {
	var total decimal.Decimal
	query := `SELECT COALESCE(SUM(total_price), 0) FROM transactions WHERE seller_id = $1`
	err := q.GetContext(ctx, &total, query, sellerID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum sales for seller %d: %w", sellerID, err)
	}
	return total, nil
}

// GetTotalSpendingByBuyerID sums total_price over a buyer's purchases.
func (r *TransactionRepository) GetTotalSpendingByBuyerID(ctx context.Context, q repository.DBExecutor, buyerID int64) (decimal.Decimal, error) {
	var total decimal.Decimal
	query := `SELECT COALESCE(SUM(total_price), 0) FROM transactions WHERE buyer_id = $1`
	err := q.GetContext(ctx, &total, query, buyerID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum spending for buyer %d: %w", buyerID, err)
	}
	return total, nil
}

// GetPurchaseCountByBuyerID counts a buyer's purchases.
func (r *TransactionRepository) GetPurchaseCountByBuyerID(ctx context.Context, q repository.DBExecutor, buyerID int64) (int64, error) {
	var count int64
	query := `SELECT COUNT(*) FROM transactions WHERE buyer_id = $1`
	err := q.GetContext(ctx, &count, query, buyerID)
	if err != nil {
		return 0, fmt.Errorf("failed to count purchases for buyer %d: %w", buyerID, err)
	}
	return count, nil
}

// GetSaleCountBySellerID counts a seller's sales.
func (r *TransactionRepository) GetSaleCountBySellerID(ctx context.Context, q repository.DBExecutor, sellerID int64) (int64, error) {
	var count int64
	query := `SELECT COUNT(*) FROM transactions WHERE seller_id = $1`
	err := q.GetContext(ctx, &count, query, sellerID)
	if err != nil {
		return 0, fmt.Errorf("failed to count sales for seller %d: %w", sellerID, err)
	}
	return count, nil
}
