// internal/repository/postgres/product_pg.go
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

// ProductRepository implements repository.ProductRepository for PostgreSQL.
type ProductRepository struct {
	// Methods receive a DBExecutor directly, so no connection is held here.
}

// NewProductRepository creates a new ProductRepository.
func NewProductRepository(db *sqlx.DB) repository.ProductRepository {
	return &ProductRepository{}
}

// CreateProduct inserts a new listing. A listing must carry a positive
// price, matching the CHECK constraint on the products table.
func (r *ProductRepository) CreateProduct(ctx context.Context, q repository.DBExecutor, product *domain.Product) error {
	if product.Price.LessThanOrEqual(decimal.Zero) {
		return util.ErrInvalidAmount
	}
	query := `INSERT INTO products (id, name, price, seller_id, category_id, consumed, created_at, updated_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := q.ExecContext(ctx, query,
		product.ID, product.Name, product.Price, product.SellerID,
		product.CategoryID, product.Consumed, product.CreatedAt, product.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create product %s: %w", product.ID, err)
	}
	return nil
}

// GetProductByID retrieves a listing by its ID.
func (r *ProductRepository) GetProductByID(ctx context.Context, q repository.DBExecutor, id uuid.UUID) (*domain.Product, error) {
	var product domain.Product
	query := `SELECT id, name, price, seller_id, category_id, consumed, created_at, updated_at FROM products WHERE id = $1`
	err := q.GetContext(ctx, &product, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, util.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to get product %s: %w", id, err)
	}
	return &product, nil
}

// Reserve flips the consumed flag. The `AND consumed = FALSE` predicate is
// the one-shot guard: of two racing purchases, only one UPDATE matches a
// row, the loser sees zero rows affected and aborts its transaction.
func (r *ProductRepository) Reserve(ctx context.Context, q repository.DBExecutor, id uuid.UUID) error {
	query := `UPDATE products SET consumed = TRUE, updated_at = $1 WHERE id = $2 AND consumed = FALSE`
	result, err := q.ExecContext(ctx, query, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to reserve product %s: %w", id, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected reserving product %s: %w", id, err)
	}
	if rowsAffected == 0 {
		return util.ErrProductConsumed
	}
	return nil
}
