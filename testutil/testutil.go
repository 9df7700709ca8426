// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/danielhkuo/dayvault/auth"
	"github.com/danielhkuo/dayvault/cliparse"
	"github.com/danielhkuo/dayvault/db"
)

// TestAddressSalt is the config address salt used by InitTestConfig,
// so tests can derive the same addresses the handlers derive.
const TestAddressSalt = "test-address-salt"

var dbCounter atomic.Int64

// SetupTestDB creates a fresh in-memory database with the full schema.
// Each call gets its own database, so tests never see each other's rows.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	n := dbCounter.Add(1)
	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", n)
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	// A shared-cache memory database disappears when its last connection
	// closes; a single pooled connection keeps it alive for the test.
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { conn.Close() })

	if err := db.CreateSchema(conn); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	return conn
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:           3320,
		DatabaseURL:    "file::memory:",
		DatabaseType:   "sqlite",
		AdminKeySalt:   "test-admin-salt",
		AccountKeySalt: "test-account-salt",
	}
}

// InitTestConfig inserts the singleton auction config with a known
// address salt and returns the operator admin key.
func InitTestConfig(t *testing.T, conn *sql.DB, cfg cliparse.Config, recipient string, loserFee, minIncrement int64) string {
	t.Helper()

	address := auth.DeriveAddress(TestAddressSalt, auth.TagConfig)
	_, err := conn.Exec(`
		INSERT INTO auction_config (id, address, recipient, loser_fee_lamports, min_increment_lamports, address_salt, created_at)
		VALUES (1, $1, $2, $3, $4, $5, $6)
	`, address, recipient, loserFee, minIncrement, TestAddressSalt, time.Now())
	if err != nil {
		t.Fatalf("Failed to insert test config: %v", err)
	}

	return auth.GenerateAdminKey(cfg.AdminKeySalt)
}

// CreateTestAccount inserts an external account with the given balance
// and returns its spending key.
func CreateTestAccount(t *testing.T, conn *sql.DB, cfg cliparse.Config, address string, balance int64) string {
	t.Helper()

	_, err := conn.Exec(`
		INSERT INTO account (address, owner, balance_lamports, created_at)
		VALUES ($1, 'external', $2, $3)
	`, address, balance, time.Now())
	if err != nil {
		t.Fatalf("Failed to create test account: %v", err)
	}

	return auth.GenerateAccountKey(address, cfg.AccountKeySalt)
}

// CreateTestDay inserts an auction day row plus its custody escrow
// account, with addresses derived the same way the handlers derive them.
// status should be "open" or "finalized".
func CreateTestDay(t *testing.T, conn *sql.DB, dayIndex int64, status string) (dayAddress, escrowAddress string) {
	t.Helper()

	dayAddress = auth.DeriveAddress(TestAddressSalt, auth.TagAuctionDay, fmt.Sprintf("%d", dayIndex))
	escrowAddress = auth.DeriveAddress(TestAddressSalt, auth.TagVault, dayAddress)

	_, err := conn.Exec(`
		INSERT INTO auction_day (address, day_index, status, winner, escrow_address, created_at)
		VALUES ($1, $2, $3, '', $4, $5)
	`, dayAddress, dayIndex, status, escrowAddress, time.Now())
	if err != nil {
		t.Fatalf("Failed to create test day: %v", err)
	}

	_, err = conn.Exec(`
		INSERT INTO account (address, owner, balance_lamports, created_at)
		VALUES ($1, 'custody', 0, $2)
	`, escrowAddress, time.Now())
	if err != nil {
		t.Fatalf("Failed to create test escrow account: %v", err)
	}

	return dayAddress, escrowAddress
}

// CreateTestReceipt inserts a bid receipt for a bidder on a day and
// returns the derived receipt address.
func CreateTestReceipt(t *testing.T, conn *sql.DB, dayAddress, bidder string, amount int64, refunded bool) string {
	t.Helper()

	address := auth.DeriveAddress(TestAddressSalt, auth.TagBidReceipt, dayAddress, bidder)
	_, err := conn.Exec(`
		INSERT INTO bid_receipt (address, day_address, bidder, amount_lamports, refunded, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, address, dayAddress, bidder, amount, refunded, time.Now())
	if err != nil {
		t.Fatalf("Failed to create test receipt: %v", err)
	}

	return address
}

// SetDaySettled marks a day finalized with the given settlement figures
func SetDaySettled(t *testing.T, conn *sql.DB, dayAddress, winner string, highestBid, refundPool, feePool, refundTotal int64) {
	t.Helper()

	_, err := conn.Exec(`
		UPDATE auction_day
		SET status = 'finalized', winner = $1, highest_bid = $2,
		    refund_pool_remaining = $3, fee_pool_remaining = $4,
		    refund_count_total = $5, refund_count_completed = 0
		WHERE address = $6
	`, winner, highestBid, refundPool, feePool, refundTotal, dayAddress)
	if err != nil {
		t.Fatalf("Failed to settle test day: %v", err)
	}
}

// FundAccount sets an account's balance directly
func FundAccount(t *testing.T, conn *sql.DB, address string, balance int64) {
	t.Helper()

	_, err := conn.Exec(`
		UPDATE account SET balance_lamports = $1 WHERE address = $2
	`, balance, address)
	if err != nil {
		t.Fatalf("Failed to fund test account: %v", err)
	}
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body interface{}, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}

// AssertErrorCode checks that the response body carries the expected
// machine-readable failure code.
func AssertErrorCode(t *testing.T, w *httptest.ResponseRecorder, expected string) {
	t.Helper()
	var body struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode error response: %v. Body: %s", err, w.Body.String())
	}
	if body.Code != expected {
		t.Errorf("Expected error code %q, got %q. Body: %s", expected, body.Code, w.Body.String())
	}
}
