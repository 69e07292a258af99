// internal/domain/balance.go
package domain

import (
	"time"

	"github.com/shopspring/decimal" // For precise monetary calculations
)

// AccountBalance is the durable balance record of one user, one row per
// user. Balance never goes below zero; only the ledger service and top-up
// operations mutate it.
type AccountBalance struct {
	UserID             int64           `db:"user_id" json:"user_id"`
	Balance            decimal.Decimal `db:"balance" json:"balance"`                         // NUMERIC(20, 4) in DB
	CumulativeEarnings decimal.Decimal `db:"cumulative_earnings" json:"cumulative_earnings"` // lifetime sales income
	TodayEarnings      decimal.Decimal `db:"today_earnings" json:"today_earnings"`           // reset daily
	UpdatedAt          time.Time       `db:"updated_at" json:"updated_at"`
}

// NewAccountBalance creates a balance record for a freshly opened account.
func NewAccountBalance(userID int64, initial decimal.Decimal) *AccountBalance {
	return &AccountBalance{
		UserID:             userID,
		Balance:            initial,
		CumulativeEarnings: decimal.Zero,
		TodayEarnings:      decimal.Zero,
		UpdatedAt:          time.Now().UTC(),
	}
}
