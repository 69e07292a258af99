// internal/repository/transaction_repo.go
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"southmoney-ledger/internal/domain"
)

// TransactionRepository stores and projects the immutable settlement
// records. Writes go through the purchase transaction; reads run on the
// plain executor and only ever see committed data.
type TransactionRepository interface {
	// CreateTransaction inserts a settlement record. A duplicate
	// idempotency key surfaces as util.ErrDuplicateEntry.
	CreateTransaction(ctx context.Context, q DBExecutor, record *domain.TransactionRecord) error
	// GetTransactionByID retrieves one record, util.ErrNotFound if absent.
	GetTransactionByID(ctx context.Context, q DBExecutor, id uuid.UUID) (*domain.TransactionRecord, error)
	// GetTransactionByIdempotencyKey retrieves the record settled under a
	// client-supplied key, util.ErrNotFound if none exists.
	GetTransactionByIdempotencyKey(ctx context.Context, q DBExecutor, key string) (*domain.TransactionRecord, error)
	// GetTransactionsByBuyerID retrieves a page of a buyer's purchases,
	// newest first, along with the total count.
	GetTransactionsByBuyerID(ctx context.Context, q DBExecutor, buyerID int64, limit, offset int) ([]domain.TransactionRecord, int64, error)
	// GetTransactionsBySellerID retrieves all of a seller's sales, newest first.
	GetTransactionsBySellerID(ctx context.Context, q DBExecutor, sellerID int64) ([]domain.TransactionRecord, error)
	// GetTransactionsByDateRange retrieves records settled within [start, end].
	GetTransactionsByDateRange(ctx context.Context, q DBExecutor, start, end time.Time) ([]domain.TransactionRecord, error)
	// GetTotalSalesBySellerID sums total_price over a seller's sales.
	GetTotalSalesBySellerID(ctx context.Context, q DBExecutor, sellerID int64) (decimal.Decimal, error)
	// GetTotalSpendingByBuyerID sums total_price over a buyer's purchases.
	GetTotalSpendingByBuyerID(ctx context.Context, q DBExecutor, buyerID int64) (decimal.Decimal, error)
	// GetPurchaseCountByBuyerID counts a buyer's purchases.
	GetPurchaseCountByBuyerID(ctx context.Context, q DBExecutor, buyerID int64) (int64, error)
	// GetSaleCountBySellerID counts a seller's sales.
	GetSaleCountBySellerID(ctx context.Context, q DBExecutor, sellerID int64) (int64, error)
}
