// internal/repository/postgres/transaction_pg_test.go
package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"southmoney-ledger/internal/domain"
	"southmoney-ledger/internal/util"
)

func testRecord(key string) *domain.TransactionRecord {
	product := domain.NewProduct("Vintage Lamp", decimal.NewFromFloat(40.00), 2, 3)
	return domain.NewTransactionRecord(product, 1, 1, key)
}

func recordRows(record *domain.TransactionRecord) *sqlmock.Rows {
	var key interface{}
	if record.IdempotencyKey != nil {
		key = *record.IdempotencyKey
	}
	return sqlmock.NewRows([]string{
		"id", "product_id", "buyer_id", "seller_id", "quantity",
		"unit_price", "total_price", "purchase_time", "idempotency_key", "created_at",
	}).AddRow(
		record.ID.String(), record.ProductID.String(), record.BuyerID, record.SellerID, record.Quantity,
		record.UnitPrice.String(), record.TotalPrice.String(), record.PurchaseTime,
		key, record.CreatedAt,
	)
}

func TestTransactionRepository_CreateTransaction(t *testing.T) {
	ctx := context.Background()
	repo := NewTransactionRepository(nil)

	t.Run("Success", func(t *testing.T) {
		db, mock := newMockDB(t)
		record := testRecord("")

		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO transactions`)).
			WithArgs(record.ID, record.ProductID, record.BuyerID, record.SellerID,
				record.Quantity, record.UnitPrice, record.TotalPrice,
				record.PurchaseTime, record.IdempotencyKey, record.CreatedAt).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.CreateTransaction(ctx, db, record)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("DuplicateIdempotencyKey", func(t *testing.T) {
		db, mock := newMockDB(t)
		record := testRecord("client-key-1")

		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO transactions`)).
			WillReturnError(&pq.Error{Code: "23505"})

		err := repo.CreateTransaction(ctx, db, record)
		assert.ErrorIs(t, err, util.ErrDuplicateEntry)
	})
}

func TestTransactionRepository_GetTransactionByID(t *testing.T) {
	ctx := context.Background()
	repo := NewTransactionRepository(nil)

	t.Run("Found", func(t *testing.T) {
		db, mock := newMockDB(t)
		record := testRecord("")
		mock.ExpectQuery(regexp.QuoteMeta(`FROM transactions WHERE id = $1`)).
			WithArgs(record.ID).
			WillReturnRows(recordRows(record))

		got, err := repo.GetTransactionByID(ctx, db, record.ID)
		require.NoError(t, err)
		assert.Equal(t, record.ID, got.ID)
		assert.True(t, record.TotalPrice.Equal(got.TotalPrice))
	})

	t.Run("Missing", func(t *testing.T) {
		db, mock := newMockDB(t)
		id := uuid.New()
		mock.ExpectQuery(regexp.QuoteMeta(`FROM transactions WHERE id = $1`)).
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		got, err := repo.GetTransactionByID(ctx, db, id)
		assert.ErrorIs(t, err, util.ErrNotFound)
		assert.Nil(t, got)
	})
}

func TestTransactionRepository_GetTransactionByIdempotencyKey(t *testing.T) {
	ctx := context.Background()
	repo := NewTransactionRepository(nil)

	t.Run("Found", func(t *testing.T) {
		db, mock := newMockDB(t)
		record := testRecord("client-key-2")
		mock.ExpectQuery(regexp.QuoteMeta(`WHERE idempotency_key = $1`)).
			WithArgs("client-key-2").
			WillReturnRows(recordRows(record))

		got, err := repo.GetTransactionByIdempotencyKey(ctx, db, "client-key-2")
		require.NoError(t, err)
		require.NotNil(t, got.IdempotencyKey)
		assert.Equal(t, "client-key-2", *got.IdempotencyKey)
	})

	t.Run("Missing", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery(regexp.QuoteMeta(`WHERE idempotency_key = $1`)).
			WithArgs("unknown").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		got, err := repo.GetTransactionByIdempotencyKey(ctx, db, "unknown")
		assert.ErrorIs(t, err, util.ErrNotFound)
		assert.Nil(t, got)
	})
}

func TestTransactionRepository_GetTransactionsByBuyerID(t *testing.T) {
	ctx := context.Background()
	repo := NewTransactionRepository(nil)
	db, mock := newMockDB(t)
	record := testRecord("")

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE buyer_id = $1
              ORDER BY purchase_time DESC
              LIMIT $2 OFFSET $3`)).
		WithArgs(int64(1), 10, 0).
		WillReturnRows(recordRows(record))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM transactions WHERE buyer_id = $1`)).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(23))

	records, total, err := repo.GetTransactionsByBuyerID(ctx, db, 1, 10, 0)
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, int64(23), total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepository_GetTransactionsBySellerID(t *testing.T) {
	ctx := context.Background()
	repo := NewTransactionRepository(nil)
	db, mock := newMockDB(t)
	record := testRecord("")

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE seller_id = $1
              ORDER BY purchase_time DESC`)).
		WithArgs(int64(2)).
		WillReturnRows(recordRows(record))

	records, err := repo.GetTransactionsBySellerID(ctx, db, 2)
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, int64(2), records[0].SellerID)
}

func TestTransactionRepository_GetTransactionsByDateRange(t *testing.T) {
	ctx := context.Background()
	repo := NewTransactionRepository(nil)
	db, mock := newMockDB(t)
	record := testRecord("")

	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 8, 31, 23, 59, 59, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE purchase_time >= $1 AND purchase_time <= $2`)).
		WithArgs(start, end).
		WillReturnRows(recordRows(record))

	records, err := repo.GetTransactionsByDateRange(ctx, db, start, end)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestTransactionRepository_Totals(t *testing.T) {
	ctx := context.Background()
	repo := NewTransactionRepository(nil)

	t.Run("TotalSales", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT COALESCE(SUM(total_price), 0) FROM transactions WHERE seller_id = $1`)).
			WithArgs(int64(2)).
			WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow("120.0000"))

		total, err := repo.GetTotalSalesBySellerID(ctx, db, 2)
		require.NoError(t, err)
		assert.True(t, decimal.RequireFromString("120.0000").Equal(total))
	})

	t.Run("TotalSalesEmptyLedger", func(t *testing.T) {
		// COALESCE keeps the sum at zero when no sales exist.
		db, mock := newMockDB(t)
		mock.ExpectQuery(regexp.QuoteMeta(`WHERE seller_id = $1`)).
			WithArgs(int64(9)).
			WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow("0"))

		total, err := repo.GetTotalSalesBySellerID(ctx, db, 9)
		require.NoError(t, err)
		assert.True(t, total.IsZero())
	})

	t.Run("TotalSpending", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT COALESCE(SUM(total_price), 0) FROM transactions WHERE buyer_id = $1`)).
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow("80.0000"))

		total, err := repo.GetTotalSpendingByBuyerID(ctx, db, 1)
		require.NoError(t, err)
		assert.True(t, decimal.RequireFromString("80.0000").Equal(total))
	})
}

func TestTransactionRepository_Counts(t *testing.T) {
	ctx := context.Background()
	repo := NewTransactionRepository(nil)
	db, mock := newMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM transactions WHERE buyer_id = $1`)).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM transactions WHERE seller_id = $1`)).
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	purchases, err := repo.GetPurchaseCountByBuyerID(ctx, db, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(4), purchases)

	sales, err := repo.GetSaleCountBySellerID(ctx, db, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(7), sales)
}
