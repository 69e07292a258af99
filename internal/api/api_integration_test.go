// internal/api/api_integration_test.go
package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	app "southmoney-ledger/internal"
	"southmoney-ledger/internal/domain"
)

const testJWTSecret = "integration-test-secret"

// testApp is the global application instance for testing.
var testApp *app.Application

// testServer is the httptest server.
var testServer *httptest.Server

// TestMain is the special entry point for Go tests, executed once before all tests.
func TestMain(m *testing.M) {
	// 1. Set up environment variables (ensure DB_NAME points to the test database).
	// In a real CI/CD environment, these variables would be provided by the CI system.
	setupEnvVars()

	// 2. Initialize the application.
	testApp = app.NewApplication()
	if err := testApp.Initialize(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize test application: %v\n", err)
		os.Exit(1)
	}

	// 3. Start an httptest server to test the HTTP handling layer.
	testServer = httptest.NewServer(testApp.HTTPHandler)
	defer testServer.Close()

	// 4. Run all tests.
	code := m.Run()

	// 5. Shut down application resources after tests (e.g., database connections).
	if err := testApp.Shutdown(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to shutdown test application: %v\n", err)
		os.Exit(1)
	}

	os.Exit(code)
}

// setupEnvVars helper function: sets or checks database environment variables required for testing.
func setupEnvVars() {
	if os.Getenv("SERVER_PORT") == "" {
		os.Setenv("SERVER_PORT", "8080")
	}
	if os.Getenv("DB_HOST") == "" {
		os.Setenv("DB_HOST", "localhost")
	}
	if os.Getenv("DB_PORT") == "" {
		os.Setenv("DB_PORT", "5432")
	}
	if os.Getenv("DB_USER") == "" {
		os.Setenv("DB_USER", "user")
	}
	if os.Getenv("DB_PASSWORD") == "" {
		os.Setenv("DB_PASSWORD", "password")
	}
	if os.Getenv("DB_NAME") == "" {
		os.Setenv("DB_NAME", "ledgerdb_test")
	}
	if os.Getenv("DB_SSLMODE") == "" {
		os.Setenv("DB_SSLMODE", "disable")
	}
	os.Setenv("JWT_SECRET", testJWTSecret)
}

// clearDatabase helper function: truncates all relevant tables to ensure a clean database state.
func clearDatabase(t *testing.T) {
	// Order is important due to foreign key dependencies.
	tables := []string{"transactions", "products", "balances"}
	for _, table := range tables {
		_, err := testApp.DB.Exec(fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE;", table))
		require.NoError(t, err, "Failed to truncate table %s", table)
	}
}

// openTestAccount seeds a balance row directly through the repository.
func openTestAccount(t *testing.T, userID int64, balance decimal.Decimal) {
	t.Helper()
	account := domain.NewAccountBalance(userID, balance)
	err := testApp.BalanceRepository.CreateBalance(context.Background(), testApp.DB, account)
	require.NoError(t, err)
}

// listTestProduct seeds an unsold listing for the given seller.
func listTestProduct(t *testing.T, name string, price decimal.Decimal, sellerID int64) *domain.Product {
	t.Helper()
	product := domain.NewProduct(name, price, sellerID, 1)
	err := testApp.ProductRepository.CreateProduct(context.Background(), testApp.DB, product)
	require.NoError(t, err)
	return product
}

// bearerToken signs a token the way the external identity provider would.
func bearerToken(t *testing.T, userID int64) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return signed
}

// makeRequest helper function: sends an HTTP request to the test server.
func makeRequest(t *testing.T, method, path, authToken string, body io.Reader) (*http.Response, string) {
	req, err := http.NewRequest(method, testServer.URL+path, body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(respBody)
}

func getBalance(t *testing.T, userID int64) decimal.Decimal {
	t.Helper()
	resp, body := makeRequest(t, "GET", fmt.Sprintf("/accounts/%d/balance", userID), "", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var balanceMap map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(body), &balanceMap))
	balance, err := decimal.NewFromString(balanceMap["balance"].(string))
	require.NoError(t, err)
	return balance
}

// TestPurchaseIntegration tests the full settlement path end to end.
func TestPurchaseIntegration(t *testing.T) {
	clearDatabase(t)

	buyerID := int64(1)
	sellerID := int64(2)
	openTestAccount(t, buyerID, decimal.NewFromFloat(100.00))
	openTestAccount(t, sellerID, decimal.NewFromFloat(10.00))
	product := listTestProduct(t, "Vintage Lamp", decimal.NewFromFloat(40.00), sellerID)

	t.Run("SuccessfulPurchaseConservesMoney", func(t *testing.T) {
		requestBody := fmt.Sprintf(`{"product_id": "%s"}`, product.ID)
		resp, body := makeRequest(t, "POST", "/purchases", bearerToken(t, buyerID), strings.NewReader(requestBody))
		defer resp.Body.Close()

		assert.Equal(t, http.StatusCreated, resp.StatusCode)

		var responseMap map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(body), &responseMap))
		assert.Equal(t, "Purchase successful", responseMap["message"])

		// 100 - 40 and 10 + 40: the total across both accounts is unchanged.
		buyerBalance := getBalance(t, buyerID)
		sellerBalance := getBalance(t, sellerID)
		assert.True(t, decimal.NewFromFloat(60.00).Equal(buyerBalance), "buyer balance should be 60.00, got %s", buyerBalance)
		assert.True(t, decimal.NewFromFloat(50.00).Equal(sellerBalance), "seller balance should be 50.00, got %s", sellerBalance)
		assert.True(t, decimal.NewFromFloat(110.00).Equal(buyerBalance.Add(sellerBalance)))
	})

	t.Run("SecondPurchaseOfSameProductConflicts", func(t *testing.T) {
		requestBody := fmt.Sprintf(`{"product_id": "%s"}`, product.ID)
		resp, body := makeRequest(t, "POST", "/purchases", bearerToken(t, buyerID), strings.NewReader(requestBody))
		defer resp.Body.Close()

		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		assert.Contains(t, body, "Product already sold")

		// Balances unchanged by the failed attempt.
		assert.True(t, decimal.NewFromFloat(60.00).Equal(getBalance(t, buyerID)))
	})

	t.Run("InsufficientFunds", func(t *testing.T) {
		expensive := listTestProduct(t, "Antique Desk", decimal.NewFromFloat(500.00), sellerID)
		requestBody := fmt.Sprintf(`{"product_id": "%s"}`, expensive.ID)
		resp, body := makeRequest(t, "POST", "/purchases", bearerToken(t, buyerID), strings.NewReader(requestBody))
		defer resp.Body.Close()

		assert.Equal(t, http.StatusPaymentRequired, resp.StatusCode)
		assert.Contains(t, body, "Insufficient funds")
		assert.True(t, decimal.NewFromFloat(60.00).Equal(getBalance(t, buyerID)))
	})

	t.Run("SelfPurchaseForbidden", func(t *testing.T) {
		own := listTestProduct(t, "Own Listing", decimal.NewFromFloat(5.00), buyerID)
		requestBody := fmt.Sprintf(`{"product_id": "%s"}`, own.ID)
		resp, body := makeRequest(t, "POST", "/purchases", bearerToken(t, buyerID), strings.NewReader(requestBody))
		defer resp.Body.Close()

		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.Contains(t, body, "Cannot purchase your own product")
	})

	t.Run("UnauthenticatedPurchaseRejected", func(t *testing.T) {
		requestBody := fmt.Sprintf(`{"product_id": "%s"}`, product.ID)
		resp, _ := makeRequest(t, "POST", "/purchases", "", strings.NewReader(requestBody))
		defer resp.Body.Close()

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

// TestIdempotentPurchaseIntegration verifies that a replayed key settles once.
func TestIdempotentPurchaseIntegration(t *testing.T) {
	clearDatabase(t)

	buyerID := int64(1)
	sellerID := int64(2)
	openTestAccount(t, buyerID, decimal.NewFromFloat(100.00))
	openTestAccount(t, sellerID, decimal.Zero)
	product := listTestProduct(t, "Vintage Lamp", decimal.NewFromFloat(40.00), sellerID)

	requestBody := fmt.Sprintf(`{"product_id": "%s", "idempotency_key": "retry-abc"}`, product.ID)

	resp1, body1 := makeRequest(t, "POST", "/purchases", bearerToken(t, buyerID), strings.NewReader(requestBody))
	defer resp1.Body.Close()
	require.Equal(t, http.StatusCreated, resp1.StatusCode)

	resp2, body2 := makeRequest(t, "POST", "/purchases", bearerToken(t, buyerID), strings.NewReader(requestBody))
	defer resp2.Body.Close()
	require.Equal(t, http.StatusCreated, resp2.StatusCode)

	var first, second map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(body1), &first))
	require.NoError(t, json.Unmarshal([]byte(body2), &second))
	assert.Equal(t, first["transaction_id"], second["transaction_id"], "replay must return the original settlement")

	// Money moved exactly once.
	assert.True(t, decimal.NewFromFloat(60.00).Equal(getBalance(t, buyerID)))
	assert.True(t, decimal.NewFromFloat(40.00).Equal(getBalance(t, sellerID)))
}

// TestTopUpIntegration tests the TopUp API endpoint.
func TestTopUpIntegration(t *testing.T) {
	clearDatabase(t)
	userID := int64(7)
	openTestAccount(t, userID, decimal.NewFromFloat(10.00))

	t.Run("SuccessfulTopUp", func(t *testing.T) {
		resp, body := makeRequest(t, "POST", fmt.Sprintf("/accounts/%d/topup", userID), "", strings.NewReader(`{"amount": "25.00"}`))
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var responseMap map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(body), &responseMap))
		newBalance, err := decimal.NewFromString(responseMap["new_balance"].(string))
		require.NoError(t, err)
		assert.True(t, decimal.NewFromFloat(35.00).Equal(newBalance))
	})

	t.Run("InvalidAmount", func(t *testing.T) {
		resp, body := makeRequest(t, "POST", fmt.Sprintf("/accounts/%d/topup", userID), "", strings.NewReader(`{"amount": "-5.00"}`))
		defer resp.Body.Close()

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Contains(t, body, "Invalid input")
	})

	t.Run("UnknownAccount", func(t *testing.T) {
		resp, body := makeRequest(t, "POST", "/accounts/9999/topup", "", strings.NewReader(`{"amount": "5.00"}`))
		defer resp.Body.Close()

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Contains(t, body, "Resource not found")
	})
}

// TestHistoryAndTotalsConsistency settles several purchases and checks that
// histories and totals line up with the balances.
func TestHistoryAndTotalsConsistency(t *testing.T) {
	clearDatabase(t)

	buyerID := int64(1)
	sellerID := int64(2)
	openTestAccount(t, buyerID, decimal.NewFromFloat(200.00))
	openTestAccount(t, sellerID, decimal.Zero)

	prices := []float64{40.00, 25.50, 10.00}
	for i, price := range prices {
		product := listTestProduct(t, fmt.Sprintf("Item %d", i+1), decimal.NewFromFloat(price), sellerID)
		requestBody := fmt.Sprintf(`{"product_id": "%s"}`, product.ID)
		resp, _ := makeRequest(t, "POST", "/purchases", bearerToken(t, buyerID), strings.NewReader(requestBody))
		resp.Body.Close()
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		time.Sleep(10 * time.Millisecond)
	}
	totalSpent := decimal.NewFromFloat(75.50)

	// 1. Purchase history has all three records, newest first.
	respHistory, bodyHistory := makeRequest(t, "GET", fmt.Sprintf("/accounts/%d/purchases?page=1&page_size=10", buyerID), "", nil)
	defer respHistory.Body.Close()
	assert.Equal(t, http.StatusOK, respHistory.StatusCode)

	var historyMap map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(bodyHistory), &historyMap))
	records := historyMap["data"].([]interface{})
	assert.Len(t, records, 3)
	assert.Equal(t, float64(3), historyMap["total_count"])

	sum := decimal.Zero
	var lastTime time.Time
	for i, recInterface := range records {
		recMap := recInterface.(map[string]interface{})
		price, err := decimal.NewFromString(recMap["total_price"].(string))
		require.NoError(t, err)
		sum = sum.Add(price)

		purchaseTime, err := time.Parse(time.RFC3339Nano, recMap["purchase_time"].(string))
		require.NoError(t, err)
		if i > 0 {
			assert.False(t, purchaseTime.After(lastTime), "history should be newest first")
		}
		lastTime = purchaseTime
	}
	assert.True(t, totalSpent.Equal(sum))

	// 2. Spending and sales totals agree with the history.
	respSpending, bodySpending := makeRequest(t, "GET", fmt.Sprintf("/accounts/%d/spending", buyerID), "", nil)
	defer respSpending.Body.Close()
	var spendingMap map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(bodySpending), &spendingMap))
	spending, err := decimal.NewFromString(spendingMap["total_spending"].(string))
	require.NoError(t, err)
	assert.True(t, totalSpent.Equal(spending))

	respSales, bodySales := makeRequest(t, "GET", fmt.Sprintf("/accounts/%d/sales/total", sellerID), "", nil)
	defer respSales.Body.Close()
	var salesMap map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(bodySales), &salesMap))
	sales, err := decimal.NewFromString(salesMap["total_sales"].(string))
	require.NoError(t, err)
	assert.True(t, totalSpent.Equal(sales))

	// 3. Balances reflect the same totals.
	assert.True(t, decimal.NewFromFloat(124.50).Equal(getBalance(t, buyerID)))
	assert.True(t, totalSpent.Equal(getBalance(t, sellerID)))

	// 4. Seller's sales history matches.
	respSellerSales, bodySellerSales := makeRequest(t, "GET", fmt.Sprintf("/accounts/%d/sales", sellerID), "", nil)
	defer respSellerSales.Body.Close()
	var sellerSalesMap map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(bodySellerSales), &sellerSalesMap))
	assert.Len(t, sellerSalesMap["data"].([]interface{}), 3)
}
