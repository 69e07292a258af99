// internal/util/errors.go
package util

import "errors"

// Typed errors surfaced by the ledger core. The HTTP layer maps each of
// these to a status code; none of them are retried internally.
var (
	ErrNotFound          = errors.New("resource not found")
	ErrInvalidInput      = errors.New("invalid input provided")
	ErrInvalidAmount     = errors.New("amount must be a positive value")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrProductNotFound   = errors.New("product not found")
	ErrProductConsumed   = errors.New("product has already been sold")
	ErrSelfPurchase      = errors.New("cannot purchase your own product")
	ErrAccountNotFound   = errors.New("account not found")
	ErrDuplicateEntry    = errors.New("duplicate entry")
	// ErrTransactionFailed covers store-level failures (begin/commit errors,
	// deadlocks, outages). It is the only class a caller may retry.
	ErrTransactionFailed = errors.New("transaction failed")
)

// IsError reports whether err matches the target sentinel error.
func IsError(err, target error) bool {
	return errors.Is(err, target)
}
