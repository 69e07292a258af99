// internal/domain/product.go
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is a marketplace listing. Consumed is a one-shot flag: it flips
// to true exactly once, inside the same transaction as the funds transfer,
// which is what prevents a double sale under concurrent purchases.
type Product struct {
	ID         uuid.UUID       `db:"id" json:"id"`
	Name       string          `db:"name" json:"name"`
	Price      decimal.Decimal `db:"price" json:"price"` // positive, NUMERIC(20, 4) in DB
	SellerID   int64           `db:"seller_id" json:"seller_id"`
	CategoryID int64           `db:"category_id" json:"category_id"`
	Consumed   bool            `db:"consumed" json:"consumed"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time       `db:"updated_at" json:"updated_at"`
}

// NewProduct creates an unsold product listing.
func NewProduct(name string, price decimal.Decimal, sellerID, categoryID int64) *Product {
	now := time.Now().UTC()
	return &Product{
		ID:         uuid.New(),
		Name:       name,
		Price:      price,
		SellerID:   sellerID,
		CategoryID: categoryID,
		Consumed:   false,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}
