// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/danielhkuo/dayvault/models"
	"github.com/danielhkuo/dayvault/testutil"
)

func settleDay(handler *SettleHandler, dayIndex int64, recipient string) *httptest.ResponseRecorder {
	path := fmt.Sprintf("/days/%d/settle", dayIndex)
	req := testutil.MakeRequest("POST", path, models.SettleDayRequest{Recipient: recipient}, nil)
	req.SetPathValue("dayIndex", fmt.Sprintf("%d", dayIndex))
	w := httptest.NewRecorder()
	handler.SettleDay(w, req)
	return w
}

func TestSettleDay(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()

	bidHandler := NewBidHandler(conn, cfg)
	settleHandler := NewSettleHandler(conn, cfg)

	testutil.InitTestConfig(t, conn, cfg, "treasury", 50, 100)
	aliceKey := testutil.CreateTestAccount(t, conn, cfg, "alice", 1_000)
	bobKey := testutil.CreateTestAccount(t, conn, cfg, "bob", 1_000)
	carolKey := testutil.CreateTestAccount(t, conn, cfg, "carol", 1_000)

	// Bid during the day, settle the morning after
	bidHandler.now = fixedClock(testNow)
	settleHandler.now = fixedClock(testNow.AddDate(0, 0, 1))
	bidDay := models.DayIndexAt(testNow)

	for _, bid := range []struct {
		bidder string
		key    string
		amount int64
	}{
		{"carol", carolKey, 200},
		{"bob", bobKey, 300},
		{"alice", aliceKey, 500},
	} {
		w := placeBid(bidHandler, bidDay, bid.bidder, bid.key, bid.amount)
		testutil.AssertStatus(t, w, http.StatusCreated)
	}

	// Settling while the day is still running is too early
	settleHandler.now = fixedClock(testNow)
	w := settleDay(settleHandler, bidDay, "treasury")
	testutil.AssertStatus(t, w, http.StatusConflict)
	testutil.AssertErrorCode(t, w, models.CodeTooEarly)
	settleHandler.now = fixedClock(testNow.AddDate(0, 0, 1))

	// Wrong recipient is rejected
	w = settleDay(settleHandler, bidDay, "attacker")
	testutil.AssertStatus(t, w, http.StatusConflict)
	testutil.AssertErrorCode(t, w, models.CodeRecipientMismatch)

	// Unknown day
	w = settleDay(settleHandler, bidDay-5, "treasury")
	testutil.AssertStatus(t, w, http.StatusNotFound)
	testutil.AssertErrorCode(t, w, models.CodeDayNotFound)

	// The real settlement
	w = settleDay(settleHandler, bidDay, "treasury")
	testutil.AssertStatus(t, w, http.StatusOK)

	var resp models.SettleDayResponse
	testutil.AssertJSON(t, w, &resp)
	if resp.Winner != "alice" || resp.HighestBid != 500 {
		t.Errorf("Expected alice winning at 500, got %+v", resp)
	}
	// losers escrowed 500; fees 2*50=100, refunds 400
	if resp.RefundPoolRemaining != 400 || resp.FeePoolRemaining != 100 {
		t.Errorf("Expected pools 400/100, got %d/%d", resp.RefundPoolRemaining, resp.FeePoolRemaining)
	}
	if resp.RefundCountTotal != 2 {
		t.Errorf("Expected refund_count_total 2, got %d", resp.RefundCountTotal)
	}

	// The winning bid reached the recipient
	var treasury int64
	if err := conn.QueryRow(`SELECT balance_lamports FROM account WHERE address = 'treasury'`).Scan(&treasury); err != nil {
		t.Fatalf("Failed to read treasury balance: %v", err)
	}
	if treasury != 500 {
		t.Errorf("Expected treasury balance 500, got %d", treasury)
	}

	// Settling twice reports finalized
	w = settleDay(settleHandler, bidDay, "treasury")
	testutil.AssertStatus(t, w, http.StatusConflict)
	testutil.AssertErrorCode(t, w, models.CodeAlreadyFinalized)
}

func TestSettleDayWithoutBids(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	handler := NewSettleHandler(conn, cfg)
	handler.now = fixedClock(testNow)

	testutil.InitTestConfig(t, conn, cfg, "treasury", 50, 100)
	pastDay := models.DayIndexAt(testNow) - 1
	testutil.CreateTestDay(t, conn, pastDay, models.DayStatusOpen)

	w := settleDay(handler, pastDay, "treasury")
	testutil.AssertStatus(t, w, http.StatusOK)

	var resp models.SettleDayResponse
	testutil.AssertJSON(t, w, &resp)
	if resp.Winner != "" || resp.HighestBid != 0 {
		t.Errorf("Expected no winner for an empty day, got %+v", resp)
	}

	// Finalized with empty pools; no retroactive bidding possible
	var status string
	if err := conn.QueryRow(`SELECT status FROM auction_day WHERE day_index = $1`, pastDay).Scan(&status); err != nil {
		t.Fatalf("Failed to query day: %v", err)
	}
	if status != models.DayStatusFinalized {
		t.Errorf("Expected finalized, got %q", status)
	}
}

func TestSettleDayFeeExceedsLoserSum(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()

	bidHandler := NewBidHandler(conn, cfg)
	settleHandler := NewSettleHandler(conn, cfg)
	bidHandler.now = fixedClock(testNow)
	settleHandler.now = fixedClock(testNow.AddDate(0, 0, 1))

	// Fee of 500 per loser, but the loser only escrowed 100
	testutil.InitTestConfig(t, conn, cfg, "treasury", 500, 100)
	aliceKey := testutil.CreateTestAccount(t, conn, cfg, "alice", 1_000)
	bobKey := testutil.CreateTestAccount(t, conn, cfg, "bob", 1_000)

	bidDay := models.DayIndexAt(testNow)
	w := placeBid(bidHandler, bidDay, "alice", aliceKey, 100)
	testutil.AssertStatus(t, w, http.StatusCreated)
	w = placeBid(bidHandler, bidDay, "bob", bobKey, 200)
	testutil.AssertStatus(t, w, http.StatusCreated)

	w = settleDay(settleHandler, bidDay, "treasury")
	testutil.AssertStatus(t, w, http.StatusUnprocessableEntity)
	testutil.AssertErrorCode(t, w, models.CodeFeePoolTooLarge)

	// Nothing moved and the day stayed open
	var status string
	if err := conn.QueryRow(`SELECT status FROM auction_day WHERE day_index = $1`, bidDay).Scan(&status); err != nil {
		t.Fatalf("Failed to query day: %v", err)
	}
	if status != models.DayStatusOpen {
		t.Errorf("Expected day to stay open, got %q", status)
	}
}
