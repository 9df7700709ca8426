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

type RefundHandler struct {
	db  *sql.DB
	cfg cliparse.Config
	now func() time.Time
}

func NewRefundHandler(db *sql.DB, cfg cliparse.Config) *RefundHandler {
	return &RefundHandler{db: db, cfg: cfg, now: time.Now}
}

// RefundBatch handles POST /days/{dayIndex}/refunds
//
// Processes a caller-chosen subset of the day's bidders: losers get their
// escrowed amount back minus the flat fee, which goes to the cranker; the
// winner's receipt is retired with no fund movement. Already-refunded
// receipts are skipped, so overlapping batches across calls are safe.
// Any reference or validation mismatch aborts the whole call; skips do
// not. Progress is durable, and the batch is resumable indefinitely.
func (h *RefundHandler) RefundBatch(w http.ResponseWriter, r *http.Request) {
	dayIndex, ok := parseDayIndex(w, r)
	if !ok {
		return
	}

	var req models.RefundBatchRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Cranker == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "cranker is required")
		return
	}
	if len(req.Bidders) == 0 {
		middleware.ErrorResponse(w, http.StatusBadRequest, "bidders cannot be empty")
		return
	}

	accountKey := r.Header.Get("X-Account-Key")
	if err := auth.ValidateAccountKey(req.Cranker, accountKey, h.cfg.AccountKeySalt); err != nil {
		middleware.FailResponse(w, http.StatusUnauthorized, models.CodeInvalidAccountKey,
			"account key does not authorize this cranker")
		return
	}

	// Exactly two auxiliary references per listed bidder, positionally:
	// refs[2i] is the receipt address, refs[2i+1] the bidder identity.
	if len(req.Refs) != 2*len(req.Bidders) {
		middleware.FailResponse(w, http.StatusBadRequest, models.CodeInvalidRefundRefs,
			"refs must hold exactly two entries per bidder")
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

	if day.Status != models.DayStatusFinalized {
		middleware.FailResponse(w, http.StatusConflict, models.CodeNotFinalized,
			"auction day is not finalized yet")
		return
	}
	if day.DayIndex != dayIndex {
		middleware.FailResponse(w, http.StatusUnprocessableEntity, models.CodeDayMismatch,
			"stored day index does not match the requested day")
		return
	}
	if err := checkEscrowCustody(tx, day.EscrowAddress); err != nil {
		middleware.FailResponse(w, http.StatusConflict, models.CodeEscrowNotCustodial,
			"escrow account is not held by the custody authority")
		return
	}

	// The cranker must be able to receive fees before any receipt moves.
	if _, err := ledger.GetAccount(tx, req.Cranker); err != nil {
		middleware.FailResponse(w, http.StatusNotFound, models.CodeAccountNotFound,
			"cranker account not found")
		return
	}

	authority := auth.EscrowAuthority(config.AddressSalt, day.EscrowAddress)
	now := h.now()
	processed, skipped := 0, 0

	for i, bidder := range req.Bidders {
		receiptRef, identityRef := req.Refs[2*i], req.Refs[2*i+1]

		if identityRef != bidder {
			middleware.FailResponse(w, http.StatusBadRequest, models.CodeBidderMismatch,
				"paired identity reference does not match the listed bidder")
			return
		}
		expectedReceipt := auth.DeriveAddress(config.AddressSalt, auth.TagBidReceipt, day.Address, bidder)
		if receiptRef != expectedReceipt {
			middleware.FailResponse(w, http.StatusBadRequest, models.CodeReceiptMismatch,
				"receipt reference does not match the derived receipt address")
			return
		}

		var receipt models.BidReceipt
		err := tx.QueryRow(`
			SELECT address, day_address, bidder, amount_lamports, refunded
			FROM bid_receipt
			WHERE address = $1
		`, receiptRef).Scan(&receipt.Address, &receipt.DayAddress, &receipt.Bidder,
			&receipt.AmountLamports, &receipt.Refunded)
		if err == sql.ErrNoRows {
			middleware.FailResponse(w, http.StatusBadRequest, models.CodeReceiptMismatch,
				"no receipt exists at the referenced address")
			return
		}
		if err != nil {
			slog.Error("failed to load receipt", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}

		if receipt.DayAddress != day.Address {
			middleware.FailResponse(w, http.StatusBadRequest, models.CodeReceiptOwnerMismatch,
				"receipt does not belong to this auction day")
			return
		}
		if receipt.Bidder != bidder {
			middleware.FailResponse(w, http.StatusBadRequest, models.CodeBidderMismatch,
				"receipt records a different bidder")
			return
		}

		// Idempotence: listing an already-refunded bidder is a no-op.
		if receipt.Refunded {
			skipped++
			continue
		}

		// The winner's principal already went to the recipient at
		// settlement; only retire the receipt so it is never reprocessed.
		if bidder == day.Winner {
			if err := markRefunded(tx, receipt.Address); err != nil {
				slog.Error("failed to retire winner receipt", "error", err)
				middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
				return
			}
			processed++
			continue
		}

		// Loser path. A bid at or below the flat fee can never be
		// refunded without going negative; that state is unpayable.
		if receipt.AmountLamports <= config.LoserFeeLamports {
			middleware.FailResponse(w, http.StatusUnprocessableEntity, models.CodeInvalidBidAmount,
				"escrowed amount does not exceed the loser fee")
			return
		}
		refundAmount, err := ledger.CheckedSub(receipt.AmountLamports, config.LoserFeeLamports)
		if err != nil {
			middleware.FailResponse(w, http.StatusUnprocessableEntity, models.CodeMathOverflow,
				"refund computation overflowed")
			return
		}

		if day.RefundPoolRemaining < refundAmount {
			middleware.FailResponse(w, http.StatusConflict, models.CodeInsufficientRefund,
				"refund pool cannot cover this refund")
			return
		}
		if day.FeePoolRemaining < config.LoserFeeLamports {
			middleware.FailResponse(w, http.StatusConflict, models.CodeInsufficientFeePool,
				"fee pool cannot cover the cranker fee")
			return
		}

		needed, err := ledger.CheckedAdd(refundAmount, config.LoserFeeLamports)
		if err != nil {
			middleware.FailResponse(w, http.StatusUnprocessableEntity, models.CodeMathOverflow,
				"escrow requirement computation overflowed")
			return
		}
		escrowBalance, err := ledger.Balance(tx, day.EscrowAddress)
		if err != nil {
			slog.Error("failed to read escrow balance", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		if escrowBalance < needed {
			middleware.FailResponse(w, http.StatusConflict, models.CodeInsufficientEscrow,
				"escrow balance cannot cover refund plus fee")
			return
		}

		err = ledger.EscrowTransfer(tx, day.EscrowAddress, bidder, refundAmount,
			authority, config.AddressSalt, "loser refund", now)
		if err != nil {
			slog.Error("failed to refund bidder", "error", err, "bidder", bidder)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to process refunds")
			return
		}
		err = ledger.EscrowTransfer(tx, day.EscrowAddress, req.Cranker, config.LoserFeeLamports,
			authority, config.AddressSalt, "cranker fee", now)
		if err != nil {
			slog.Error("failed to pay cranker fee", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to process refunds")
			return
		}

		if err := markRefunded(tx, receipt.Address); err != nil {
			slog.Error("failed to mark receipt refunded", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}

		day.RefundPoolRemaining, err = ledger.CheckedSub(day.RefundPoolRemaining, refundAmount)
		if err != nil {
			middleware.FailResponse(w, http.StatusUnprocessableEntity, models.CodeMathOverflow,
				"refund pool underflowed")
			return
		}
		day.FeePoolRemaining, err = ledger.CheckedSub(day.FeePoolRemaining, config.LoserFeeLamports)
		if err != nil {
			middleware.FailResponse(w, http.StatusUnprocessableEntity, models.CodeMathOverflow,
				"fee pool underflowed")
			return
		}
		day.RefundCountCompleted, err = ledger.CheckedAdd(day.RefundCountCompleted, 1)
		if err != nil {
			middleware.FailResponse(w, http.StatusUnprocessableEntity, models.CodeMathOverflow,
				"refund counter overflowed")
			return
		}
		processed++
	}

	_, err = tx.Exec(`
		UPDATE auction_day
		SET refund_pool_remaining = $1, fee_pool_remaining = $2, refund_count_completed = $3
		WHERE address = $4
	`, day.RefundPoolRemaining, day.FeePoolRemaining, day.RefundCountCompleted, day.Address)
	if err != nil {
		slog.Error("failed to update auction day", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	if err := tx.Commit(); err != nil {
		slog.Error("failed to commit transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to process refunds")
		return
	}

	slog.Info("refund batch processed",
		"day_index", dayIndex,
		"processed", processed,
		"skipped", skipped,
		"refund_count_completed", day.RefundCountCompleted,
		"refund_count_total", day.RefundCountTotal,
	)

	middleware.JSONResponse(w, http.StatusOK, models.RefundBatchResponse{
		Processed:            processed,
		Skipped:              skipped,
		RefundCountCompleted: day.RefundCountCompleted,
		RefundCountTotal:     day.RefundCountTotal,
		RefundPoolRemaining:  day.RefundPoolRemaining,
		FeePoolRemaining:     day.FeePoolRemaining,
	})
}

func markRefunded(tx *sql.Tx, address string) error {
	_, err := tx.Exec(`
		UPDATE bid_receipt SET refunded = TRUE WHERE address = $1
	`, address)
	return err
}
