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

type SettleHandler struct {
	db  *sql.DB
	cfg cliparse.Config
	now func() time.Time
}

func NewSettleHandler(db *sql.DB, cfg cliparse.Config) *SettleHandler {
	return &SettleHandler{db: db, cfg: cfg, now: time.Now}
}

// SettleDay handles POST /days/{dayIndex}/settle
//
// Callable by anyone once the day's bucket has fully elapsed. Finalizing
// is one-way: the winning amount goes to the configured recipient and the
// losers' total splits exactly into the refund and fee pools. Either the
// whole settlement commits or nothing persists.
func (h *SettleHandler) SettleDay(w http.ResponseWriter, r *http.Request) {
	dayIndex, ok := parseDayIndex(w, r)
	if !ok {
		return
	}

	var req models.SettleDayRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
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

	dayAddress := auth.DeriveAddress(config.AddressSalt, auth.TagAuctionDay, formatDayIndex(dayIndex))
	day, err := loadDay(tx, dayAddress)
	if err == sql.ErrNoRows {
		middleware.FailResponse(w, http.StatusNotFound, models.CodeDayNotFound, "Auction day not found")
		return
	}
	if err != nil {
		slog.Error("failed to load auction day", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	if day.Status == models.DayStatusFinalized {
		middleware.FailResponse(w, http.StatusConflict, models.CodeAlreadyFinalized,
			"auction day is already finalized")
		return
	}
	// The stored index must agree with the one the address was derived
	// from; disagreement means a corrupted or tampered record.
	if day.DayIndex != dayIndex {
		middleware.FailResponse(w, http.StatusUnprocessableEntity, models.CodeDayMismatch,
			"stored day index does not match the requested day")
		return
	}
	if dayIndex >= models.DayIndexAt(h.now()) {
		middleware.FailResponse(w, http.StatusConflict, models.CodeTooEarly,
			"the day's bucket has not ended yet")
		return
	}
	if err := checkEscrowCustody(tx, day.EscrowAddress); err != nil {
		middleware.FailResponse(w, http.StatusConflict, models.CodeEscrowNotCustodial,
			"escrow account is not held by the custody authority")
		return
	}

	// Degenerate case: nobody bid. Finalize with empty pools and no fund
	// movement so the day can never be bid on retroactively.
	if day.HighestBid == 0 {
		err = finalizeDay(tx, day.Address, day.Winner, 0, 0, 0)
		if err != nil {
			slog.Error("failed to finalize empty day", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to settle day")
			return
		}
		if err := tx.Commit(); err != nil {
			slog.Error("failed to commit transaction", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to settle day")
			return
		}

		slog.Info("auction day settled with no bids", "day_index", dayIndex)

		middleware.JSONResponse(w, http.StatusOK, models.SettleDayResponse{
			DayIndex: dayIndex,
		})
		return
	}

	refundPool, feePool, err := SettlementSplit(day.BidderCount, day.TotalBidLamports, day.HighestBid, config.LoserFeeLamports)
	if err == ErrNoBidders {
		middleware.FailResponse(w, http.StatusUnprocessableEntity, models.CodeBidderCountMismatch,
			"nonzero highest bid with zero bidders")
		return
	}
	if err == ErrFeePoolTooLarge {
		middleware.FailResponse(w, http.StatusUnprocessableEntity, models.CodeFeePoolTooLarge,
			"configured loser fee exceeds the losers' escrowed total")
		return
	}
	if err != nil {
		middleware.FailResponse(w, http.StatusUnprocessableEntity, models.CodeMathOverflow,
			"settlement split computation overflowed")
		return
	}

	// Solvency: escrow must still hold at least everything that was bid.
	escrowBalance, err := ledger.Balance(tx, day.EscrowAddress)
	if err != nil {
		slog.Error("failed to read escrow balance", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if escrowBalance < day.TotalBidLamports {
		middleware.FailResponse(w, http.StatusConflict, models.CodeInsufficientEscrow,
			"escrow balance is below the day's escrowed total")
		return
	}

	if req.Recipient != config.Recipient {
		middleware.FailResponse(w, http.StatusConflict, models.CodeRecipientMismatch,
			"recipient does not match the configured recipient")
		return
	}

	// The recipient account is created on first settlement if needed.
	if _, err := ledger.GetAccount(tx, config.Recipient); err == ledger.ErrAccountNotFound {
		if err := ledger.CreateAccount(tx, config.Recipient, models.OwnerExternal, h.now()); err != nil {
			slog.Error("failed to create recipient account", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to settle day")
			return
		}
	} else if err != nil {
		slog.Error("failed to load recipient account", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	authority := auth.EscrowAuthority(config.AddressSalt, day.EscrowAddress)
	err = ledger.EscrowTransfer(tx, day.EscrowAddress, config.Recipient, day.HighestBid,
		authority, config.AddressSalt, "winning bid payout", h.now())
	if err != nil {
		slog.Error("failed to pay winning bid to recipient", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to settle day")
		return
	}

	refundTotal := day.BidderCount - 1
	if err := finalizeDay(tx, day.Address, day.Winner, refundPool, feePool, refundTotal); err != nil {
		slog.Error("failed to finalize auction day", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to settle day")
		return
	}

	if err := tx.Commit(); err != nil {
		slog.Error("failed to commit transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to settle day")
		return
	}

	slog.Info("auction day settled",
		"day_index", dayIndex,
		"winner", day.Winner,
		"highest_bid", day.HighestBid,
		"refund_pool", refundPool,
		"fee_pool", feePool,
	)

	middleware.JSONResponse(w, http.StatusOK, models.SettleDayResponse{
		DayIndex:            dayIndex,
		Winner:              day.Winner,
		HighestBid:          day.HighestBid,
		RefundPoolRemaining: refundPool,
		FeePoolRemaining:    feePool,
		RefundCountTotal:    refundTotal,
	})
}

func finalizeDay(tx *sql.Tx, address, winner string, refundPool, feePool, refundTotal int64) error {
	_, err := tx.Exec(`
		UPDATE auction_day
		SET status = $1, winner = $2, refund_pool_remaining = $3, fee_pool_remaining = $4,
		    refund_count_total = $5, refund_count_completed = 0
		WHERE address = $6
	`, models.DayStatusFinalized, winner, refundPool, feePool, refundTotal, address)
	return err
}
