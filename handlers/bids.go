// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielhkuo/dayvault/auth"
	"github.com/danielhkuo/dayvault/cliparse"
	"github.com/danielhkuo/dayvault/ledger"
	"github.com/danielhkuo/dayvault/middleware"
	"github.com/danielhkuo/dayvault/models"
)

type BidHandler struct {
	db  *sql.DB
	cfg cliparse.Config
	now func() time.Time
}

func NewBidHandler(db *sql.DB, cfg cliparse.Config) *BidHandler {
	return &BidHandler{db: db, cfg: cfg, now: time.Now}
}

// PlaceBid handles POST /days/{dayIndex}/bids
//
// A bid states the bidder's new total escrowed amount, not a delta. Only
// the increment over their previous amount moves into escrow, and a
// bidder may only ever raise their own bid. The whole operation is one
// transaction: any violated precondition rolls back every mutation.
func (h *BidHandler) PlaceBid(w http.ResponseWriter, r *http.Request) {
	dayIndex, ok := parseDayIndex(w, r)
	if !ok {
		return
	}

	var req models.PlaceBidRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Bidder == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "bidder is required")
		return
	}
	if req.AmountLamports <= 0 {
		middleware.FailResponse(w, http.StatusBadRequest, models.CodeInvalidBidAmount,
			"amount_lamports must be positive")
		return
	}

	accountKey := r.Header.Get("X-Account-Key")
	if err := auth.ValidateAccountKey(req.Bidder, accountKey, h.cfg.AccountKeySalt); err != nil {
		middleware.FailResponse(w, http.StatusUnauthorized, models.CodeInvalidAccountKey,
			"account key does not authorize this bidder")
		return
	}

	now := h.now()
	if dayIndex != models.DayIndexAt(now) {
		middleware.FailResponse(w, http.StatusConflict, models.CodeWrongDay,
			"bids are only accepted for the current day")
		return
	}

	tx, err := h.db.Begin()
	if err != nil {
		slog.Error("failed to begin transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer tx.Rollback()

	config, err := loadConfig(tx)
	if err == errConfigMissing {
		middleware.FailResponse(w, http.StatusConflict, models.CodeConfigMissing,
			"auction config must be initialized first")
		return
	}
	if err != nil {
		slog.Error("failed to load config", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	day, _, err := ensureDay(tx, config.AddressSalt, dayIndex, now)
	if err == errDayRace {
		middleware.FailResponse(w, http.StatusConflict, models.CodeDayInitRace,
			"a concurrent request is creating this day, retry")
		return
	}
	if err != nil {
		slog.Error("failed to ensure auction day", "error", err, "day_index", dayIndex)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	if err := checkEscrowCustody(tx, day.EscrowAddress); err != nil {
		middleware.FailResponse(w, http.StatusConflict, models.CodeEscrowNotCustodial,
			"escrow account is not held by the custody authority")
		return
	}

	if day.Status == models.DayStatusFinalized {
		middleware.FailResponse(w, http.StatusConflict, models.CodeAlreadyFinalized,
			"auction day is already finalized")
		return
	}

	// Minimum-bid rule: first bid clears the configured increment on its
	// own; later bids must clear the standing highest plus the increment.
	if day.HighestBid == 0 {
		if req.AmountLamports < config.MinIncrementLamports {
			middleware.FailResponse(w, http.StatusBadRequest, models.CodeBidTooLow,
				"bid is below the minimum increment")
			return
		}
	} else {
		required, err := ledger.CheckedAdd(day.HighestBid, config.MinIncrementLamports)
		if err != nil {
			middleware.FailResponse(w, http.StatusUnprocessableEntity, models.CodeMathOverflow,
				"minimum bid computation overflowed")
			return
		}
		if req.AmountLamports < required {
			middleware.FailResponse(w, http.StatusBadRequest, models.CodeBidTooLow,
				"bid does not meet the minimum increment over the highest bid")
			return
		}
	}

	receiptAddress := auth.DeriveAddress(config.AddressSalt, auth.TagBidReceipt, day.Address, req.Bidder)
	var receipt models.BidReceipt
	err = tx.QueryRow(`
		SELECT address, day_address, bidder, amount_lamports, refunded
		FROM bid_receipt
		WHERE address = $1
	`, receiptAddress).Scan(&receipt.Address, &receipt.DayAddress, &receipt.Bidder,
		&receipt.AmountLamports, &receipt.Refunded)

	switch {
	case err == sql.ErrNoRows:
		// First bid from this bidder today; the new receipt is what
		// increments bidder_count, exactly once per distinct bidder.
		receipt = models.BidReceipt{
			Address:    receiptAddress,
			DayAddress: day.Address,
			Bidder:     req.Bidder,
		}
		_, err = tx.Exec(`
			INSERT INTO bid_receipt (address, day_address, bidder, amount_lamports, refunded, created_at)
			VALUES ($1, $2, $3, 0, FALSE, $4)
		`, receipt.Address, receipt.DayAddress, receipt.Bidder, now)
		if err != nil {
			slog.Error("failed to insert receipt", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		day.BidderCount, err = ledger.CheckedAdd(day.BidderCount, 1)
		if err != nil {
			middleware.FailResponse(w, http.StatusUnprocessableEntity, models.CodeMathOverflow,
				"bidder count overflowed")
			return
		}
	case err != nil:
		slog.Error("failed to query receipt", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	// A reused receipt must still belong to the presented identity.
	if receipt.Bidder != req.Bidder {
		middleware.FailResponse(w, http.StatusConflict, models.CodeBidderMismatch,
			"receipt belongs to a different bidder")
		return
	}

	if req.AmountLamports <= receipt.AmountLamports {
		middleware.FailResponse(w, http.StatusBadRequest, models.CodeBidNotIncreased,
			"bid must be greater than your previous amount")
		return
	}
	delta, err := ledger.CheckedSub(req.AmountLamports, receipt.AmountLamports)
	if err != nil {
		middleware.FailResponse(w, http.StatusUnprocessableEntity, models.CodeMathOverflow,
			"bid delta computation overflowed")
		return
	}

	// Only the increment moves; the receipt records the running total.
	err = ledger.Transfer(tx, req.Bidder, day.EscrowAddress, delta, "bid escrow", now)
	if err == ledger.ErrAccountNotFound {
		middleware.FailResponse(w, http.StatusNotFound, models.CodeAccountNotFound,
			"bidder account not found")
		return
	}
	if err == ledger.ErrInsufficientFunds {
		middleware.FailResponse(w, http.StatusConflict, models.CodeInsufficientFunds,
			"bidder balance cannot cover the bid increase")
		return
	}
	if err != nil {
		slog.Error("failed to transfer bid to escrow", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to place bid")
		return
	}

	_, err = tx.Exec(`
		UPDATE bid_receipt SET amount_lamports = $1 WHERE address = $2
	`, req.AmountLamports, receipt.Address)
	if err != nil {
		slog.Error("failed to update receipt", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	day.TotalBidLamports, err = ledger.CheckedAdd(day.TotalBidLamports, delta)
	if err != nil {
		middleware.FailResponse(w, http.StatusUnprocessableEntity, models.CodeMathOverflow,
			"day total overflowed")
		return
	}

	winning := false
	if req.AmountLamports > day.HighestBid {
		day.HighestBid = req.AmountLamports
		day.Winner = req.Bidder
		winning = true
	}

	_, err = tx.Exec(`
		UPDATE auction_day
		SET winner = $1, highest_bid = $2, bidder_count = $3, total_bid_lamports = $4
		WHERE address = $5
	`, day.Winner, day.HighestBid, day.BidderCount, day.TotalBidLamports, day.Address)
	if err != nil {
		slog.Error("failed to update auction day", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	if err := tx.Commit(); err != nil {
		slog.Error("failed to commit transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to place bid")
		return
	}

	slog.Info("bid placed",
		"day_index", dayIndex,
		"bidder", req.Bidder,
		"amount_lamports", req.AmountLamports,
		"winning", winning,
	)

	middleware.JSONResponse(w, http.StatusCreated, models.PlaceBidResponse{
		ReceiptAddress: receipt.Address,
		AmountLamports: req.AmountLamports,
		HighestBid:     day.HighestBid,
		Winning:        winning,
	})
}
