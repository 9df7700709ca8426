// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/danielhkuo/dayvault/models"
	"github.com/danielhkuo/dayvault/testutil"
)

// fixedClock pins handler time so day-bucket checks are reproducible
func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

var testNow = time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC) // day 20332

func TestInitDay(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	handler := NewDayHandler(conn, cfg)
	handler.now = fixedClock(testNow)

	currentDay := models.DayIndexAt(testNow)

	// Without config the day cannot be created
	req := testutil.MakeRequest("POST", "/days", models.InitDayRequest{DayIndex: currentDay}, nil)
	w := httptest.NewRecorder()
	handler.InitDay(w, req)
	testutil.AssertStatus(t, w, http.StatusConflict)
	testutil.AssertErrorCode(t, w, models.CodeConfigMissing)

	testutil.InitTestConfig(t, conn, cfg, "treasury", 50, 100)

	tests := []struct {
		name           string
		dayIndex       int64
		expectedStatus int
		expectedCode   string
	}{
		{"current day", currentDay, http.StatusCreated, ""},
		{"idempotent repeat", currentDay, http.StatusOK, ""},
		{"max ahead", currentDay + models.InitDayMaxAheadDays, http.StatusCreated, ""},
		{"too far ahead", currentDay + models.InitDayMaxAheadDays + 1, http.StatusBadRequest, models.CodeDayTooFarAhead},
		{"past day", currentDay - 30, http.StatusCreated, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testutil.MakeRequest("POST", "/days", models.InitDayRequest{DayIndex: tt.dayIndex}, nil)
			w := httptest.NewRecorder()

			handler.InitDay(w, req)

			testutil.AssertStatus(t, w, tt.expectedStatus)
			if tt.expectedCode != "" {
				testutil.AssertErrorCode(t, w, tt.expectedCode)
				return
			}

			var day models.AuctionDay
			testutil.AssertJSON(t, w, &day)
			if day.DayIndex != tt.dayIndex {
				t.Errorf("Expected day_index %d, got %d", tt.dayIndex, day.DayIndex)
			}
			if day.Status != models.DayStatusOpen {
				t.Errorf("Expected status 'open', got %q", day.Status)
			}
			if day.EscrowAddress == "" {
				t.Error("Expected a derived escrow address")
			}

			// The custody escrow account exists with a zero balance
			var owner string
			var balance int64
			err := conn.QueryRow(`
				SELECT owner, balance_lamports FROM account WHERE address = $1
			`, day.EscrowAddress).Scan(&owner, &balance)
			if err != nil {
				t.Fatalf("Failed to query escrow account: %v", err)
			}
			if owner != models.OwnerCustody {
				t.Errorf("Expected custody escrow, got owner %q", owner)
			}
			if balance != 0 {
				t.Errorf("Expected zero escrow balance, got %d", balance)
			}
		})
	}
}

func TestGetDay(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	handler := NewDayHandler(conn, cfg)

	testutil.InitTestConfig(t, conn, cfg, "treasury", 50, 100)
	testutil.CreateTestDay(t, conn, 20330, models.DayStatusOpen)

	tests := []struct {
		name           string
		path           string
		dayIndex       string
		expectedStatus int
		expectedCode   string
	}{
		{"existing day", "/days/20330", "20330", http.StatusOK, ""},
		{"missing day", "/days/20331", "20331", http.StatusNotFound, models.CodeDayNotFound},
		{"non-numeric index", "/days/abc", "abc", http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testutil.MakeRequest("GET", tt.path, nil, nil)
			req.SetPathValue("dayIndex", tt.dayIndex)
			w := httptest.NewRecorder()

			handler.GetDay(w, req)

			testutil.AssertStatus(t, w, tt.expectedStatus)
			if tt.expectedCode != "" {
				testutil.AssertErrorCode(t, w, tt.expectedCode)
			}
			if tt.expectedStatus == http.StatusOK {
				var day models.AuctionDay
				testutil.AssertJSON(t, w, &day)
				if day.DayIndex != 20330 {
					t.Errorf("Expected day_index 20330, got %d", day.DayIndex)
				}
			}
		})
	}
}

func TestListReceipts(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	handler := NewDayHandler(conn, cfg)

	testutil.InitTestConfig(t, conn, cfg, "treasury", 50, 100)
	dayAddress, _ := testutil.CreateTestDay(t, conn, 20330, models.DayStatusOpen)
	testutil.CreateTestReceipt(t, conn, dayAddress, "alice", 500, false)
	testutil.CreateTestReceipt(t, conn, dayAddress, "bob", 300, false)

	req := testutil.MakeRequest("GET", "/days/20330/receipts", nil, nil)
	req.SetPathValue("dayIndex", "20330")
	w := httptest.NewRecorder()
	handler.ListReceipts(w, req)
	testutil.AssertStatus(t, w, http.StatusOK)

	var listing models.DayReceipts
	testutil.AssertJSON(t, w, &listing)
	if len(listing.Receipts) != 2 {
		t.Fatalf("Expected 2 receipts, got %d", len(listing.Receipts))
	}
	bidders := map[string]int64{}
	for _, rec := range listing.Receipts {
		bidders[rec.Bidder] = rec.AmountLamports
		if rec.DayAddress != dayAddress {
			t.Errorf("Receipt points at wrong day: %q", rec.DayAddress)
		}
	}
	if bidders["alice"] != 500 || bidders["bob"] != 300 {
		t.Errorf("Unexpected receipt amounts: %v", bidders)
	}

	// Unknown day
	req = testutil.MakeRequest("GET", "/days/9999/receipts", nil, nil)
	req.SetPathValue("dayIndex", "9999")
	w = httptest.NewRecorder()
	handler.ListReceipts(w, req)
	testutil.AssertStatus(t, w, http.StatusNotFound)
	testutil.AssertErrorCode(t, w, models.CodeDayNotFound)
}

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"sqlite duplicate", errors.New("constraint failed: UNIQUE constraint failed: auction_day.day_index (1555)"), true},
		{"postgres duplicate", errors.New(`pq: duplicate key value violates unique constraint "auction_day_day_index_key"`), true},
		{"unrelated", errors.New("driver: bad connection"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isUniqueViolation(tt.err); got != tt.want {
				t.Errorf("isUniqueViolation(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
