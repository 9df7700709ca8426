// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/danielhkuo/dayvault/auth"
	"github.com/danielhkuo/dayvault/cliparse"
	"github.com/danielhkuo/dayvault/ledger"
	"github.com/danielhkuo/dayvault/middleware"
	"github.com/danielhkuo/dayvault/models"
)

var (
	errConfigMissing = errors.New("auction config not initialized")
	errDayRace       = errors.New("lost race creating auction day")
)

type DayHandler struct {
	db  *sql.DB
	cfg cliparse.Config
	now func() time.Time
}

func NewDayHandler(db *sql.DB, cfg cliparse.Config) *DayHandler {
	return &DayHandler{db: db, cfg: cfg, now: time.Now}
}

// InitDay handles POST /days
// Idempotent: creating a day that already exists is a successful no-op.
func (h *DayHandler) InitDay(w http.ResponseWriter, r *http.Request) {
	var req models.InitDayRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	now := h.now()
	currentDay := models.DayIndexAt(now)
	if req.DayIndex > currentDay+models.InitDayMaxAheadDays {
		middleware.FailResponse(w, http.StatusBadRequest, models.CodeDayTooFarAhead,
			"day index is too far ahead of the current day")
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

	day, created, err := ensureDay(tx, config.AddressSalt, req.DayIndex, now)
	if err == errDayRace {
		middleware.FailResponse(w, http.StatusConflict, models.CodeDayInitRace,
			"a concurrent request is creating this day, retry")
		return
	}
	if err != nil {
		slog.Error("failed to ensure auction day", "error", err, "day_index", req.DayIndex)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	if err := checkEscrowCustody(tx, day.EscrowAddress); err != nil {
		middleware.FailResponse(w, http.StatusConflict, models.CodeEscrowNotCustodial,
			"escrow account is not held by the custody authority")
		return
	}

	if err := tx.Commit(); err != nil {
		slog.Error("failed to commit transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
		slog.Info("auction day created", "day_index", day.DayIndex, "address", day.Address)
	}

	middleware.JSONResponse(w, status, day)
}

// GetDay handles GET /days/{dayIndex}
func (h *DayHandler) GetDay(w http.ResponseWriter, r *http.Request) {
	dayIndex, ok := parseDayIndex(w, r)
	if !ok {
		return
	}

	var day models.AuctionDay
	err := h.db.QueryRow(`
		SELECT address, day_index, status, winner, highest_bid, bidder_count,
		       total_bid_lamports, refund_pool_remaining, fee_pool_remaining,
		       refund_count_total, refund_count_completed, escrow_address
		FROM auction_day
		WHERE day_index = $1
	`, dayIndex).Scan(
		&day.Address, &day.DayIndex, &day.Status, &day.Winner, &day.HighestBid,
		&day.BidderCount, &day.TotalBidLamports, &day.RefundPoolRemaining,
		&day.FeePoolRemaining, &day.RefundCountTotal, &day.RefundCountCompleted,
		&day.EscrowAddress,
	)
	if err == sql.ErrNoRows {
		middleware.FailResponse(w, http.StatusNotFound, models.CodeDayNotFound, "Auction day not found")
		return
	}
	if err != nil {
		slog.Error("failed to query auction day", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, day)
}

// ListReceipts handles GET /days/{dayIndex}/receipts
// Crankers use this to enumerate the day's bidders when building batches.
func (h *DayHandler) ListReceipts(w http.ResponseWriter, r *http.Request) {
	dayIndex, ok := parseDayIndex(w, r)
	if !ok {
		return
	}

	var dayAddress string
	err := h.db.QueryRow(`
		SELECT address FROM auction_day WHERE day_index = $1
	`, dayIndex).Scan(&dayAddress)
	if err == sql.ErrNoRows {
		middleware.FailResponse(w, http.StatusNotFound, models.CodeDayNotFound, "Auction day not found")
		return
	}
	if err != nil {
		slog.Error("failed to query auction day", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	rows, err := h.db.Query(`
		SELECT address, day_address, bidder, amount_lamports, refunded
		FROM bid_receipt
		WHERE day_address = $1
		ORDER BY address
	`, dayAddress)
	if err != nil {
		slog.Error("failed to query receipts", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer rows.Close()

	receipts := []models.BidReceipt{}
	for rows.Next() {
		var rec models.BidReceipt
		if err := rows.Scan(&rec.Address, &rec.DayAddress, &rec.Bidder, &rec.AmountLamports, &rec.Refunded); err != nil {
			slog.Error("failed to scan receipt", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		receipts = append(receipts, rec)
	}

	middleware.JSONResponse(w, http.StatusOK, models.DayReceipts{
		DayIndex: dayIndex,
		Receipts: receipts,
	})
}

// Shared helpers used by the bid, settlement, and refund handlers.

func parseDayIndex(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.PathValue("dayIndex")
	dayIndex, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "dayIndex must be an integer")
		return 0, false
	}
	return dayIndex, true
}

func formatDayIndex(dayIndex int64) string {
	return strconv.FormatInt(dayIndex, 10)
}

func loadConfig(tx *sql.Tx) (models.Config, error) {
	var config models.Config
	err := tx.QueryRow(`
		SELECT address, recipient, loser_fee_lamports, min_increment_lamports, address_salt
		FROM auction_config
		WHERE id = 1
	`).Scan(&config.Address, &config.Recipient, &config.LoserFeeLamports,
		&config.MinIncrementLamports, &config.AddressSalt)
	if err == sql.ErrNoRows {
		return models.Config{}, errConfigMissing
	}
	if err != nil {
		return models.Config{}, err
	}
	return config, nil
}

// ensureDay loads the auction day for dayIndex, creating it (and its
// custody escrow account) when the row does not exist yet. Row absence is
// the uninitialized state; a freshly inserted row is Open with all
// counters zero.
func ensureDay(tx *sql.Tx, salt string, dayIndex int64, now time.Time) (models.AuctionDay, bool, error) {
	address := auth.DeriveAddress(salt, auth.TagAuctionDay, formatDayIndex(dayIndex))

	day, err := loadDay(tx, address)
	if err == nil {
		return day, false, nil
	}
	if err != sql.ErrNoRows {
		return models.AuctionDay{}, false, err
	}

	escrow := auth.DeriveAddress(salt, auth.TagVault, address)
	day = models.AuctionDay{
		Address:       address,
		DayIndex:      dayIndex,
		Status:        models.DayStatusOpen,
		Winner:        models.NoWinner,
		EscrowAddress: escrow,
	}

	_, err = tx.Exec(`
		INSERT INTO auction_day (address, day_index, status, winner, escrow_address, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, day.Address, day.DayIndex, day.Status, day.Winner, day.EscrowAddress, now)
	if isUniqueViolation(err) {
		// A concurrent caller inserted the row between our load and
		// insert. Postgres aborts the transaction on the failed
		// statement, so the row cannot be re-read here; surface a
		// retryable conflict instead.
		return models.AuctionDay{}, false, errDayRace
	}
	if err != nil {
		return models.AuctionDay{}, false, err
	}

	if err := ledger.CreateAccount(tx, escrow, models.OwnerCustody, now); err != nil {
		return models.AuctionDay{}, false, err
	}

	return day, true, nil
}

func loadDay(tx *sql.Tx, address string) (models.AuctionDay, error) {
	var day models.AuctionDay
	err := tx.QueryRow(`
		SELECT address, day_index, status, winner, highest_bid, bidder_count,
		       total_bid_lamports, refund_pool_remaining, fee_pool_remaining,
		       refund_count_total, refund_count_completed, escrow_address
		FROM auction_day
		WHERE address = $1
	`, address).Scan(
		&day.Address, &day.DayIndex, &day.Status, &day.Winner, &day.HighestBid,
		&day.BidderCount, &day.TotalBidLamports, &day.RefundPoolRemaining,
		&day.FeePoolRemaining, &day.RefundCountTotal, &day.RefundCountCompleted,
		&day.EscrowAddress,
	)
	if err != nil {
		return models.AuctionDay{}, err
	}
	return day, nil
}

// isUniqueViolation matches the duplicate-key error text of both drivers
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint")
}

// checkEscrowCustody re-validates that a day's escrow account is still
// held by the neutral custody authority. A record repointed to
// attacker-controlled custody must not be touched further.
func checkEscrowCustody(tx *sql.Tx, escrow string) error {
	acct, err := ledger.GetAccount(tx, escrow)
	if err != nil {
		return err
	}
	if acct.Owner != models.OwnerCustody {
		return ledger.ErrNotCustodial
	}
	return nil
}
