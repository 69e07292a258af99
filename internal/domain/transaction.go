// internal/domain/transaction.go
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal" // For precise monetary calculations
)

// TransactionRecord is the immutable record of one settled purchase.
// SellerID is denormalized at creation time because the product row may
// change after settlement. TotalPrice always equals UnitPrice * Quantity,
// and each record corresponds to exactly one debit and one credit of the
// same magnitude.
type TransactionRecord struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	ProductID      uuid.UUID       `db:"product_id" json:"product_id"`
	BuyerID        int64           `db:"buyer_id" json:"buyer_id"`
	SellerID       int64           `db:"seller_id" json:"seller_id"`
	Quantity       int64           `db:"quantity" json:"quantity"`
	UnitPrice      decimal.Decimal `db:"unit_price" json:"unit_price"`
	TotalPrice     decimal.Decimal `db:"total_price" json:"total_price"`
	PurchaseTime   time.Time       `db:"purchase_time" json:"purchase_time"`
	IdempotencyKey *string         `db:"idempotency_key" json:"idempotency_key,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

// NewTransactionRecord creates a settlement record for a purchase.
// An empty idempotencyKey is stored as NULL so the unique index only
// applies to client-supplied keys.
func NewTransactionRecord(product *Product, buyerID, quantity int64, idempotencyKey string) *TransactionRecord {
	now := time.Now().UTC()
	var key *string
	if idempotencyKey != "" {
		key = &idempotencyKey
	}
	return &TransactionRecord{
		ID:             uuid.New(),
		ProductID:      product.ID,
		BuyerID:        buyerID,
		SellerID:       product.SellerID,
		Quantity:       quantity,
		UnitPrice:      product.Price,
		TotalPrice:     product.Price.Mul(decimal.NewFromInt(quantity)),
		PurchaseTime:   now,
		IdempotencyKey: key,
		CreatedAt:      now,
	}
}
