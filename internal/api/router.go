// internal/api/router.go
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"southmoney-ledger/internal/api/handler"
	authmw "southmoney-ledger/internal/api/middleware"
)

// NewRouter sets up and returns a new HTTP router.
func NewRouter(ledgerHandler *handler.LedgerHandler, jwtSecret string, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middlewares
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(handler.DefaultTimeout))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// The purchase endpoint settles money between two parties, so the buyer
	// identity comes from the verified token and never from the payload.
	r.Group(func(r chi.Router) {
		r.Use(authmw.Authenticator(jwtSecret))
		r.Post("/purchases", ledgerHandler.CreatePurchase)
	})

	// Account API routes
	r.Route("/accounts", func(r chi.Router) {
		r.Post("/", ledgerHandler.OpenAccount)
		r.Post("/{userID}/topup", ledgerHandler.TopUp)
		r.Get("/{userID}/balance", ledgerHandler.GetBalance)
		r.Get("/{userID}/purchases", ledgerHandler.GetPurchases)
		r.Get("/{userID}/purchases/count", ledgerHandler.GetPurchaseCount)
		r.Get("/{userID}/sales", ledgerHandler.GetSales)
		r.Get("/{userID}/sales/total", ledgerHandler.GetSalesTotal)
		r.Get("/{userID}/sales/count", ledgerHandler.GetSaleCount)
		r.Get("/{userID}/spending", ledgerHandler.GetSpending)
	})

	r.Get("/transactions", ledgerHandler.ListTransactions)
	r.Get("/transactions/{transactionID}", ledgerHandler.GetTransaction)

	return r
}
