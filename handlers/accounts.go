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

type AccountHandler struct {
	db  *sql.DB
	cfg cliparse.Config
	now func() time.Time
}

func NewAccountHandler(db *sql.DB, cfg cliparse.Config) *AccountHandler {
	return &AccountHandler{db: db, cfg: cfg, now: time.Now}
}

// Create handles POST /accounts
// Creates an externally owned account and returns its spending key. The
// key is deterministic from the address, so it is never stored.
func (h *AccountHandler) Create(w http.ResponseWriter, r *http.Request) {
	address, err := auth.GenerateID(16)
	if err != nil {
		slog.Error("failed to generate account address", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create account")
		return
	}
	accountKey := auth.GenerateAccountKey(address, h.cfg.AccountKeySalt)

	tx, err := h.db.Begin()
	if err != nil {
		slog.Error("failed to begin transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer tx.Rollback()

	if err := ledger.CreateAccount(tx, address, models.OwnerExternal, h.now()); err != nil {
		slog.Error("failed to create account", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create account")
		return
	}

	if err := tx.Commit(); err != nil {
		slog.Error("failed to commit transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	slog.Info("account created", "address", address)

	middleware.JSONResponse(w, http.StatusCreated, models.CreateAccountResponse{
		Address:    address,
		AccountKey: accountKey,
	})
}

// Deposit handles POST /accounts/{address}/deposit
// Operator-only funding path for externally owned accounts.
func (h *AccountHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("address")
	if address == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "address is required")
		return
	}

	adminKey := r.Header.Get("X-Admin-Key")
	if err := auth.ValidateAdminKey(adminKey, h.cfg.AdminKeySalt); err != nil {
		middleware.FailResponse(w, http.StatusUnauthorized, models.CodeInvalidAdminKey, "Invalid admin key")
		return
	}

	var req models.DepositRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.AmountLamports <= 0 {
		middleware.ErrorResponse(w, http.StatusBadRequest, "amount_lamports must be positive")
		return
	}

	tx, err := h.db.Begin()
	if err != nil {
		slog.Error("failed to begin transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer tx.Rollback()

	acct, err := ledger.GetAccount(tx, address)
	if err == ledger.ErrAccountNotFound {
		middleware.FailResponse(w, http.StatusNotFound, models.CodeAccountNotFound, "Account not found")
		return
	}
	if err != nil {
		slog.Error("failed to load account", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if acct.Owner != models.OwnerExternal {
		middleware.FailResponse(w, http.StatusConflict, models.CodeAccountNotFound,
			"only externally owned accounts can be funded")
		return
	}

	if err := ledger.Credit(tx, address, req.AmountLamports, "operator deposit", h.now()); err != nil {
		if err == ledger.ErrOverflow {
			middleware.FailResponse(w, http.StatusUnprocessableEntity, models.CodeMathOverflow, "balance overflow")
			return
		}
		slog.Error("failed to credit account", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to deposit")
		return
	}

	balance, err := ledger.Balance(tx, address)
	if err != nil {
		slog.Error("failed to read balance", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	if err := tx.Commit(); err != nil {
		slog.Error("failed to commit transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	slog.Info("account funded", "address", address, "amount_lamports", req.AmountLamports)

	middleware.JSONResponse(w, http.StatusOK, models.DepositResponse{
		Address:         address,
		BalanceLamports: balance,
	})
}

// Get handles GET /accounts/{address}
func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("address")
	if address == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "address is required")
		return
	}

	var acct models.Account
	err := h.db.QueryRow(`
		SELECT address, owner, balance_lamports FROM account WHERE address = $1
	`, address).Scan(&acct.Address, &acct.Owner, &acct.BalanceLamports)
	if err == sql.ErrNoRows {
		middleware.FailResponse(w, http.StatusNotFound, models.CodeAccountNotFound, "Account not found")
		return
	}
	if err != nil {
		slog.Error("failed to query account", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, acct)
}
