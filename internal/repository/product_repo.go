// internal/repository/product_repo.go
package repository

import (
	"context"

	"github.com/google/uuid"

	"southmoney-ledger/internal/domain"
)

// ProductRepository is the catalog gate's view of product listings.
type ProductRepository interface {
	// CreateProduct inserts a new listing.
	CreateProduct(ctx context.Context, q DBExecutor, product *domain.Product) error
	// GetProductByID retrieves a listing, util.ErrProductNotFound if absent.
	GetProductByID(ctx context.Context, q DBExecutor, id uuid.UUID) (*domain.Product, error)
	// Reserve flips the product's consumed flag, one-shot. When the flag is
	// already set (the product was sold, possibly by a concurrent purchase
	// that won the race) it fails with util.ErrProductConsumed and changes
	// nothing. Must run inside the same transaction as the funds transfer.
	Reserve(ctx context.Context, q DBExecutor, id uuid.UUID) error
}
