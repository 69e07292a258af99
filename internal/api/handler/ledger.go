// internal/api/handler/ledger.go
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"southmoney-ledger/internal/api/middleware"
	"southmoney-ledger/internal/api/types"
	"southmoney-ledger/internal/domain"
	"southmoney-ledger/internal/service"
	"southmoney-ledger/internal/util"
)

// DefaultTimeout bounds request handling at the router level.
const DefaultTimeout = 60 * time.Second

// LedgerHandler handles HTTP requests for the settlement ledger.
type LedgerHandler struct {
	service  service.LedgerService
	logger   *slog.Logger
	validate *validator.Validate
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(svc service.LedgerService, logger *slog.Logger) *LedgerHandler {
	return &LedgerHandler{
		service:  svc,
		logger:   logger,
		validate: validator.New(),
	}
}

// Helper function to send JSON responses.
func (h *LedgerHandler) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("Failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}

// Helper function to send error responses.
func (h *LedgerHandler) respondWithError(w http.ResponseWriter, err error) {
	statusCode := http.StatusInternalServerError
	message := "Internal server error"

	switch {
	case util.IsError(err, util.ErrInvalidAmount), util.IsError(err, util.ErrInvalidInput):
		statusCode = http.StatusBadRequest
		message = "Invalid input"
	case util.IsError(err, util.ErrProductNotFound):
		statusCode = http.StatusNotFound
		message = "Product not found"
	case util.IsError(err, util.ErrAccountNotFound), util.IsError(err, util.ErrNotFound):
		statusCode = http.StatusNotFound
		message = "Resource not found"
	case util.IsError(err, util.ErrInsufficientFunds):
		statusCode = http.StatusPaymentRequired // 402 Payment Required
		message = "Insufficient funds"
	case util.IsError(err, util.ErrProductConsumed):
		statusCode = http.StatusConflict
		message = "Product already sold"
	case util.IsError(err, util.ErrSelfPurchase):
		statusCode = http.StatusForbidden
		message = "Cannot purchase your own product"
	case util.IsError(err, util.ErrDuplicateEntry):
		statusCode = http.StatusConflict
		message = "Duplicate entry"
	default:
		h.logger.Error("Unhandled service error", "error", err)
	}

	h.respondWithJSON(w, statusCode, map[string]string{"error": message})
}

// PurchaseRequest represents the request body for a purchase.
type PurchaseRequest struct {
	ProductID      string `json:"product_id" validate:"required,uuid"`
	Quantity       int64  `json:"quantity" validate:"omitempty,gt=0"`
	IdempotencyKey string `json:"idempotency_key" validate:"omitempty,max=128"`
}

// CreatePurchase handles the purchase settlement request. The buyer is the
// authenticated caller, never a field of the request body.
// POST /purchases
func (h *LedgerHandler) CreatePurchase(w http.ResponseWriter, r *http.Request) {
	buyerID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		h.respondWithJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	var req PurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, util.ErrInvalidInput)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.respondWithError(w, util.ErrInvalidInput)
		return
	}

	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		h.respondWithError(w, util.ErrInvalidInput)
		return
	}
	quantity := req.Quantity
	if quantity == 0 {
		quantity = 1
	}
	idempotencyKey := req.IdempotencyKey
	if idempotencyKey == "" {
		idempotencyKey = r.Header.Get("Idempotency-Key")
	}

	record, err := h.service.Purchase(r.Context(), productID, buyerID, quantity, idempotencyKey)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusCreated, map[string]interface{}{
		"message":        "Purchase successful",
		"transaction_id": record.ID,
		"product_id":     record.ProductID,
		"total_price":    record.TotalPrice,
		"purchase_time":  record.PurchaseTime,
	})
}

// OpenAccountRequest represents the request body for opening an account.
type OpenAccountRequest struct {
	UserID         int64           `json:"user_id" validate:"required,gt=0"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
}

// OpenAccount handles the account creation request.
// POST /accounts
func (h *LedgerHandler) OpenAccount(w http.ResponseWriter, r *http.Request) {
	var req OpenAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, util.ErrInvalidInput)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.respondWithError(w, util.ErrInvalidInput)
		return
	}

	balance, err := h.service.OpenAccount(r.Context(), req.UserID, req.InitialBalance)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Account opened",
		"user_id": balance.UserID,
		"balance": balance.Balance,
	})
}

// TopUpRequest represents the request body for a top-up.
type TopUpRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// TopUp handles the balance top-up request.
// POST /accounts/{userID}/topup
func (h *LedgerHandler) TopUp(w http.ResponseWriter, r *http.Request) {
	userID, err := parseUserID(r)
	if err != nil {
		h.respondWithError(w, util.ErrInvalidInput)
		return
	}

	var req TopUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, util.ErrInvalidInput)
		return
	}
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		h.respondWithError(w, util.ErrInvalidAmount)
		return
	}

	balance, err := h.service.TopUp(r.Context(), userID, req.Amount)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"message":     "Top-up successful",
		"user_id":     balance.UserID,
		"new_balance": balance.Balance,
	})
}

// GetBalance handles the balance query.
// GET /accounts/{userID}/balance
func (h *LedgerHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, err := parseUserID(r)
	if err != nil {
		h.respondWithError(w, util.ErrInvalidInput)
		return
	}

	balance, err := h.service.GetBalance(r.Context(), userID)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":             balance.UserID,
		"balance":             balance.Balance,
		"cumulative_earnings": balance.CumulativeEarnings,
		"today_earnings":      balance.TodayEarnings,
	})
}

// GetPurchases handles the paginated purchase history query.
// GET /accounts/{userID}/purchases?page=1&page_size=10
func (h *LedgerHandler) GetPurchases(w http.ResponseWriter, r *http.Request) {
	userID, err := parseUserID(r)
	if err != nil {
		h.respondWithError(w, util.ErrInvalidInput)
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 10
	}

	records, total, err := h.service.GetPurchaseHistory(r.Context(), userID, page, pageSize)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, types.PaginatedResponse[domain.TransactionRecord]{
		Data:       records,
		Page:       page,
		PageSize:   pageSize,
		TotalCount: total,
	})
}

// GetSales handles the sales history query.
// GET /accounts/{userID}/sales
func (h *LedgerHandler) GetSales(w http.ResponseWriter, r *http.Request) {
	userID, err := parseUserID(r)
	if err != nil {
		h.respondWithError(w, util.ErrInvalidInput)
		return
	}

	records, err := h.service.GetSalesHistory(r.Context(), userID)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"data": records,
	})
}

// GetSalesTotal handles the total sales query.
// GET /accounts/{userID}/sales/total
func (h *LedgerHandler) GetSalesTotal(w http.ResponseWriter, r *http.Request) {
	userID, err := parseUserID(r)
	if err != nil {
		h.respondWithError(w, util.ErrInvalidInput)
		return
	}

	total, err := h.service.GetTotalSales(r.Context(), userID)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":     userID,
		"total_sales": total,
	})
}

// GetSpending handles the total spending query.
// GET /accounts/{userID}/spending
func (h *LedgerHandler) GetSpending(w http.ResponseWriter, r *http.Request) {
	userID, err := parseUserID(r)
	if err != nil {
		h.respondWithError(w, util.ErrInvalidInput)
		return
	}

	total, err := h.service.GetTotalSpending(r.Context(), userID)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":        userID,
		"total_spending": total,
	})
}

// GetPurchaseCount handles the purchase count query.
// GET /accounts/{userID}/purchases/count
func (h *LedgerHandler) GetPurchaseCount(w http.ResponseWriter, r *http.Request) {
	userID, err := parseUserID(r)
	if err != nil {
		h.respondWithError(w, util.ErrInvalidInput)
		return
	}

	count, err := h.service.GetPurchaseCount(r.Context(), userID)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":        userID,
		"purchase_count": count,
	})
}

// GetSaleCount handles the sale count query.
// GET /accounts/{userID}/sales/count
func (h *LedgerHandler) GetSaleCount(w http.ResponseWriter, r *http.Request) {
	userID, err := parseUserID(r)
	if err != nil {
		h.respondWithError(w, util.ErrInvalidInput)
		return
	}

	count, err := h.service.GetSaleCount(r.Context(), userID)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":    userID,
		"sale_count": count,
	})
}

// ListTransactions handles the settlement listing for a time window.
// GET /transactions?start=RFC3339&end=RFC3339
func (h *LedgerHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	start, err := time.Parse(time.RFC3339, r.URL.Query().Get("start"))
	if err != nil {
		h.respondWithError(w, util.ErrInvalidInput)
		return
	}
	end, err := time.Parse(time.RFC3339, r.URL.Query().Get("end"))
	if err != nil {
		h.respondWithError(w, util.ErrInvalidInput)
		return
	}

	records, err := h.service.GetTransactionsByDateRange(r.Context(), start, end)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"data": records,
	})
}

// GetTransaction handles the single transaction lookup.
// GET /transactions/{transactionID}
func (h *LedgerHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "transactionID"))
	if err != nil {
		h.respondWithError(w, util.ErrInvalidInput)
		return
	}

	record, err := h.service.GetTransaction(r.Context(), id)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, record)
}

func parseUserID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
}
