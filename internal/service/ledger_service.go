// internal/service/ledger_service.go
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"southmoney-ledger/internal/domain"
	"southmoney-ledger/internal/notify"
	"southmoney-ledger/internal/repository"
	"southmoney-ledger/internal/util"
	"southmoney-ledger/pkg/db"
)

// notifyTimeout bounds the post-commit notification push so a slow queue
// cannot pin goroutines.
const notifyTimeout = 5 * time.Second

// LedgerService is the transaction engine plus its read-only projections.
// Purchase and TopUp own the only code paths that mutate balances.
type LedgerService interface {
	// Purchase atomically settles the sale of productID to buyerID:
	// validates the product, checks funds, reserves the product, moves
	// totalPrice from buyer to seller and records the transaction. Either
	// everything commits or nothing does. A non-empty idempotencyKey makes
	// retries safe: replaying a settled key returns the original record.
	Purchase(ctx context.Context, productID uuid.UUID, buyerID, quantity int64, idempotencyKey string) (*domain.TransactionRecord, error)
	// TopUp credits amount onto the user's balance. Credits only; the only
	// debit path in the system is Purchase.
	TopUp(ctx context.Context, userID int64, amount decimal.Decimal) (*domain.AccountBalance, error)
	// OpenAccount creates the balance row for a new user.
	OpenAccount(ctx context.Context, userID int64, initialBalance decimal.Decimal) (*domain.AccountBalance, error)
	// GetBalance returns the user's current balance record.
	GetBalance(ctx context.Context, userID int64) (*domain.AccountBalance, error)

	// Read-only projections over settled transactions.
	GetPurchaseHistory(ctx context.Context, userID int64, page, pageSize int) ([]domain.TransactionRecord, int64, error)
	GetSalesHistory(ctx context.Context, userID int64) ([]domain.TransactionRecord, error)
	GetTotalSales(ctx context.Context, userID int64) (decimal.Decimal, error)
	GetTotalSpending(ctx context.Context, userID int64) (decimal.Decimal, error)
	GetPurchaseCount(ctx context.Context, userID int64) (int64, error)
	GetSaleCount(ctx context.Context, userID int64) (int64, error)
	GetTransaction(ctx context.Context, id uuid.UUID) (*domain.TransactionRecord, error)
	GetTransactionsByDateRange(ctx context.Context, start, end time.Time) ([]domain.TransactionRecord, error)

	// ResetTodayEarnings zeroes every account's today_earnings counter and
	// returns the number of accounts touched. Run once per day by the
	// rollover command.
	ResetTodayEarnings(ctx context.Context) (int64, error)
}

// ledgerService implements the LedgerService interface.
type ledgerService struct {
	dbBeginner      db.DBTxBeginner       // For starting transactions (e.g., *sqlx.DB)
	dbExecutor      repository.DBExecutor // For non-transactional reads (e.g., *sqlx.DB)
	balanceRepo     repository.BalanceRepository
	productRepo     repository.ProductRepository
	transactionRepo repository.TransactionRepository
	notifier        notify.Notifier
	logger          *slog.Logger
	beginTx         db.BeginTxFunc
	commitTx        db.CommitTxFunc
	rollbackTx      db.RollbackTxFunc
}

// NewLedgerService creates a new instance of LedgerService.
func NewLedgerService(
	dbBeginner db.DBTxBeginner,
	dbExecutor repository.DBExecutor,
	balanceRepo repository.BalanceRepository,
	productRepo repository.ProductRepository,
	transactionRepo repository.TransactionRepository,
	notifier notify.Notifier,
	logger *slog.Logger,
	beginTx db.BeginTxFunc,
	commitTx db.CommitTxFunc,
	rollbackTx db.RollbackTxFunc,
) LedgerService {
	return &ledgerService{
		dbBeginner:      dbBeginner,
		dbExecutor:      dbExecutor,
		balanceRepo:     balanceRepo,
		productRepo:     productRepo,
		transactionRepo: transactionRepo,
		notifier:        notifier,
		logger:          logger,
		beginTx:         beginTx,
		commitTx:        commitTx,
		rollbackTx:      rollbackTx,
	}
}

// Purchase settles one sale inside one database transaction. Any failure
// before commit rolls back every mutation: no partial balance change, no
// consumed product, no record. Notifications go out only after commit.
func (s *ledgerService) Purchase(ctx context.Context, productID uuid.UUID, buyerID, quantity int64, idempotencyKey string) (*domain.TransactionRecord, error) {
	if quantity <= 0 {
		return nil, util.ErrInvalidAmount
	}

	txController, err := s.beginTx(ctx, s.dbBeginner)
	if err != nil {
		return nil, fmt.Errorf("purchase: failed to begin transaction (%v): %w", err, util.ErrTransactionFailed)
	}
	defer s.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return nil, fmt.Errorf("purchase: transaction controller does not implement DBExecutor")
	}

	// A replayed idempotency key returns the already-settled record
	// without touching funds again. This must run before any product
	// check: after the original commit the product row is consumed, and
	// a retry of that same request has to see its settlement, not a
	// conflict.
	if idempotencyKey != "" {
		existing, err := s.transactionRepo.GetTransactionByIdempotencyKey(ctx, txExecutor, idempotencyKey)
		if err == nil {
			return existing, nil
		}
		if !util.IsError(err, util.ErrNotFound) {
			return nil, fmt.Errorf("purchase: failed to check idempotency key: %w", err)
		}
	}

	// Input-level validation before any ledger access. A missing product
	// must fail without the balance rows ever being read.
	product, err := s.productRepo.GetProductByID(ctx, txExecutor, productID)
	if err != nil {
		return nil, fmt.Errorf("purchase: failed to get product %s: %w", productID, err)
	}
	if product.Consumed {
		return nil, util.ErrProductConsumed
	}
	if product.SellerID == buyerID {
		return nil, util.ErrSelfPurchase
	}

	totalPrice := product.Price.Mul(decimal.NewFromInt(quantity))

	// Lock the two balance rows in ascending user id order so concurrent
	// purchases between the same pair of accounts cannot deadlock.
	buyerBalance, err := s.lockBalancePair(ctx, txExecutor, buyerID, product.SellerID)
	if err != nil {
		return nil, err
	}
	if buyerBalance.Balance.LessThan(totalPrice) {
		return nil, util.ErrInsufficientFunds
	}

	// One-shot reservation: of N racing purchases of this product exactly
	// one passes, the rest abort here with ErrProductConsumed.
	if err := s.productRepo.Reserve(ctx, txExecutor, productID); err != nil {
		return nil, fmt.Errorf("purchase: failed to reserve product %s: %w", productID, err)
	}

	if err := s.balanceRepo.Debit(ctx, txExecutor, buyerID, totalPrice); err != nil {
		return nil, fmt.Errorf("purchase: failed to debit buyer %d: %w", buyerID, err)
	}
	if err := s.balanceRepo.Credit(ctx, txExecutor, product.SellerID, totalPrice); err != nil {
		return nil, fmt.Errorf("purchase: failed to credit seller %d: %w", product.SellerID, err)
	}
	if err := s.balanceRepo.AddEarnings(ctx, txExecutor, product.SellerID, totalPrice); err != nil {
		return nil, fmt.Errorf("purchase: failed to update seller earnings: %w", err)
	}

	record := domain.NewTransactionRecord(product, buyerID, quantity, idempotencyKey)
	if err := s.transactionRepo.CreateTransaction(ctx, txExecutor, record); err != nil {
		if util.IsError(err, util.ErrDuplicateEntry) && idempotencyKey != "" {
			// Lost an idempotency race: another request with the same key
			// committed between our check and insert. The transaction is
			// aborted; return the committed record from the plain executor.
			s.rollbackTx(txController)
			existing, lookupErr := s.transactionRepo.GetTransactionByIdempotencyKey(ctx, s.dbExecutor, idempotencyKey)
			if lookupErr != nil {
				return nil, fmt.Errorf("purchase: failed to resolve idempotency conflict: %w", util.ErrTransactionFailed)
			}
			return existing, nil
		}
		return nil, fmt.Errorf("purchase: failed to create transaction record: %w", err)
	}

	if err := s.commitTx(txController); err != nil {
		return nil, fmt.Errorf("purchase: failed to commit transaction (%v): %w", err, util.ErrTransactionFailed)
	}

	// Settled. Notification failures must not propagate into the caller's
	// view of a committed purchase.
	s.notifyPurchase(record, product.Name)

	return record, nil
}

// lockBalancePair locks the buyer's and seller's balance rows in ascending
// user id order and returns the buyer's record.
func (s *ledgerService) lockBalancePair(ctx context.Context, q repository.DBExecutor, buyerID, sellerID int64) (*domain.AccountBalance, error) {
	firstID, secondID := buyerID, sellerID
	if firstID > secondID {
		firstID, secondID = secondID, firstID
	}

	first, err := s.balanceRepo.GetBalanceForUpdate(ctx, q, firstID)
	if err != nil {
		return nil, fmt.Errorf("purchase: failed to lock balance for user %d: %w", firstID, err)
	}
	second, err := s.balanceRepo.GetBalanceForUpdate(ctx, q, secondID)
	if err != nil {
		return nil, fmt.Errorf("purchase: failed to lock balance for user %d: %w", secondID, err)
	}

	if first.UserID == buyerID {
		return first, nil
	}
	return second, nil
}

// notifyPurchase pushes buyer and seller events off the settlement path.
func (s *ledgerService) notifyPurchase(record *domain.TransactionRecord, productName string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()

		buyerMsg := fmt.Sprintf("You purchased %s for %s", productName, record.TotalPrice.StringFixed(2))
		if err := s.notifier.Notify(ctx, record.BuyerID, buyerMsg, notify.KindPurchaseCompleted); err != nil {
			s.logger.Error("Failed to notify buyer", "buyer_id", record.BuyerID, "error", err)
		}

		sellerMsg := fmt.Sprintf("Your product %s was sold for %s", productName, record.TotalPrice.StringFixed(2))
		if err := s.notifier.Notify(ctx, record.SellerID, sellerMsg, notify.KindProductSold); err != nil {
			s.logger.Error("Failed to notify seller", "seller_id", record.SellerID, "error", err)
		}
	}()
}

// TopUp credits amount onto the user's balance inside its own transaction.
func (s *ledgerService) TopUp(ctx context.Context, userID int64, amount decimal.Decimal) (*domain.AccountBalance, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, util.ErrInvalidAmount
	}

	txController, err := s.beginTx(ctx, s.dbBeginner)
	if err != nil {
		return nil, fmt.Errorf("topup: failed to begin transaction (%v): %w", err, util.ErrTransactionFailed)
	}
	defer s.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return nil, fmt.Errorf("topup: transaction controller does not implement DBExecutor")
	}

	if err := s.balanceRepo.Credit(ctx, txExecutor, userID, amount); err != nil {
		return nil, fmt.Errorf("topup: failed to credit user %d: %w", userID, err)
	}

	updated, err := s.balanceRepo.GetBalance(ctx, txExecutor, userID)
	if err != nil {
		return nil, fmt.Errorf("topup: failed to re-fetch balance for user %d: %w", userID, err)
	}

	if err := s.commitTx(txController); err != nil {
		return nil, fmt.Errorf("topup: failed to commit transaction (%v): %w", err, util.ErrTransactionFailed)
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()

		msg := fmt.Sprintf("Your balance was topped up by %s", amount.StringFixed(2))
		if err := s.notifier.Notify(ctx, userID, msg, notify.KindTopUp); err != nil {
			s.logger.Error("Failed to notify top-up", "user_id", userID, "error", err)
		}
	}()

	return updated, nil
}

// OpenAccount creates the balance row for a new user.
func (s *ledgerService) OpenAccount(ctx context.Context, userID int64, initialBalance decimal.Decimal) (*domain.AccountBalance, error) {
	if initialBalance.IsNegative() {
		return nil, util.ErrInvalidAmount
	}

	balance := domain.NewAccountBalance(userID, initialBalance)
	if err := s.balanceRepo.CreateBalance(ctx, s.dbExecutor, balance); err != nil {
		return nil, fmt.Errorf("open account: failed to create balance for user %d: %w", userID, err)
	}
	return balance, nil
}

// GetBalance returns the user's current balance record. Reads committed
// data only; calling it twice with no intervening mutation returns
// identical values.
func (s *ledgerService) GetBalance(ctx context.Context, userID int64) (*domain.AccountBalance, error) {
	balance, err := s.balanceRepo.GetBalance(ctx, s.dbExecutor, userID)
	if err != nil {
		return nil, fmt.Errorf("get balance: failed to get balance for user %d: %w", userID, err)
	}
	return balance, nil
}

// GetPurchaseHistory returns a page of the user's purchases with the total count.
func (s *ledgerService) GetPurchaseHistory(ctx context.Context, userID int64, page, pageSize int) ([]domain.TransactionRecord, int64, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 10
	}
	offset := (page - 1) * pageSize

	records, totalCount, err := s.transactionRepo.GetTransactionsByBuyerID(ctx, s.dbExecutor, userID, pageSize, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to retrieve purchase history: %w", err)
	}
	return records, totalCount, nil
}

// GetSalesHistory returns all of the user's sales, newest first.
func (s *ledgerService) GetSalesHistory(ctx context.Context, userID int64) ([]domain.TransactionRecord, error) {
	records, err := s.transactionRepo.GetTransactionsBySellerID(ctx, s.dbExecutor, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve sales history: %w", err)
	}
	return records, nil
}

// GetTotalSales returns the sum of the user's sales.
func (s *ledgerService) GetTotalSales(ctx context.Context, userID int64) (decimal.Decimal, error) {
	total, err := s.transactionRepo.GetTotalSalesBySellerID(ctx, s.dbExecutor, userID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to retrieve total sales: %w", err)
	}
	return total, nil
}

// GetTotalSpending returns the sum of the user's purchases.
func (s *ledgerService) GetTotalSpending(ctx context.Context, userID int64) (decimal.Decimal, error) {
	total, err := s.transactionRepo.GetTotalSpendingByBuyerID(ctx, s.dbExecutor, userID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to retrieve total spending: %w", err)
	}
	return total, nil
}

// GetPurchaseCount returns how many purchases the user has made.
func (s *ledgerService) GetPurchaseCount(ctx context.Context, userID int64) (int64, error) {
	count, err := s.transactionRepo.GetPurchaseCountByBuyerID(ctx, s.dbExecutor, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to count purchases: %w", err)
	}
	return count, nil
}

// GetSaleCount returns how many sales the user has made.
func (s *ledgerService) GetSaleCount(ctx context.Context, userID int64) (int64, error) {
	count, err := s.transactionRepo.GetSaleCountBySellerID(ctx, s.dbExecutor, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to count sales: %w", err)
	}
	return count, nil
}

// GetTransaction returns one settlement record by id.
func (s *ledgerService) GetTransaction(ctx context.Context, id uuid.UUID) (*domain.TransactionRecord, error) {
	record, err := s.transactionRepo.GetTransactionByID(ctx, s.dbExecutor, id)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve transaction %s: %w", id, err)
	}
	return record, nil
}

// GetTransactionsByDateRange returns the records settled within [start, end].
func (s *ledgerService) GetTransactionsByDateRange(ctx context.Context, start, end time.Time) ([]domain.TransactionRecord, error) {
	if end.Before(start) {
		return nil, util.ErrInvalidInput
	}
	records, err := s.transactionRepo.GetTransactionsByDateRange(ctx, s.dbExecutor, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve transactions by date range: %w", err)
	}
	return records, nil
}

// ResetTodayEarnings zeroes the daily earnings counters. A single guarded
// UPDATE, so no explicit transaction is needed.
func (s *ledgerService) ResetTodayEarnings(ctx context.Context) (int64, error) {
	count, err := s.balanceRepo.ResetTodayEarnings(ctx, s.dbExecutor)
	if err != nil {
		return 0, fmt.Errorf("failed to reset today earnings: %w", err)
	}
	s.logger.Info("Daily earnings counters reset", "accounts", count)
	return count, nil
}
