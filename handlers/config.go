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
	"github.com/danielhkuo/dayvault/middleware"
	"github.com/danielhkuo/dayvault/models"
)

type ConfigHandler struct {
	db  *sql.DB
	cfg cliparse.Config
	now func() time.Time
}

func NewConfigHandler(db *sql.DB, cfg cliparse.Config) *ConfigHandler {
	return &ConfigHandler{db: db, cfg: cfg, now: time.Now}
}

// InitConfig handles POST /config
// One-time creation of the auction parameters. There is no mutation path:
// re-initialization is rejected once the singleton row exists.
func (h *ConfigHandler) InitConfig(w http.ResponseWriter, r *http.Request) {
	adminKey := r.Header.Get("X-Admin-Key")
	if err := auth.ValidateAdminKey(adminKey, h.cfg.AdminKeySalt); err != nil {
		middleware.FailResponse(w, http.StatusUnauthorized, models.CodeInvalidAdminKey, "Invalid admin key")
		return
	}

	var req models.InitConfigRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Recipient == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "recipient is required")
		return
	}
	if req.LoserFeeLamports < 0 {
		middleware.ErrorResponse(w, http.StatusBadRequest, "loser_fee_lamports must be non-negative")
		return
	}
	if req.MinIncrementLamports <= 0 {
		middleware.ErrorResponse(w, http.StatusBadRequest, "min_increment_lamports must be positive")
		return
	}

	// The address salt anchors every derived address for the lifetime of
	// the deployment.
	salt, err := auth.GenerateID(16)
	if err != nil {
		slog.Error("failed to generate address salt", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to initialize config")
		return
	}
	address := auth.DeriveAddress(salt, auth.TagConfig)

	_, err = h.db.Exec(`
		INSERT INTO auction_config (id, address, recipient, loser_fee_lamports, min_increment_lamports, address_salt, created_at)
		VALUES (1, $1, $2, $3, $4, $5, $6)
	`, address, req.Recipient, req.LoserFeeLamports, req.MinIncrementLamports, salt, h.now())
	if err != nil {
		if isUniqueViolation(err) {
			middleware.FailResponse(w, http.StatusConflict, models.CodeConfigExists,
				"auction config is already initialized")
			return
		}
		slog.Error("failed to insert config", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to initialize config")
		return
	}

	slog.Info("auction config initialized",
		"recipient", req.Recipient,
		"loser_fee_lamports", req.LoserFeeLamports,
		"min_increment_lamports", req.MinIncrementLamports,
	)

	middleware.JSONResponse(w, http.StatusCreated, models.InitConfigResponse{
		Address:              address,
		Recipient:            req.Recipient,
		LoserFeeLamports:     req.LoserFeeLamports,
		MinIncrementLamports: req.MinIncrementLamports,
	})
}

// GetConfig handles GET /config
func (h *ConfigHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	var resp models.InitConfigResponse
	err := h.db.QueryRow(`
		SELECT address, recipient, loser_fee_lamports, min_increment_lamports
		FROM auction_config
		WHERE id = 1
	`).Scan(&resp.Address, &resp.Recipient, &resp.LoserFeeLamports, &resp.MinIncrementLamports)
	if err == sql.ErrNoRows {
		middleware.FailResponse(w, http.StatusNotFound, models.CodeConfigMissing, "Config not initialized")
		return
	}
	if err != nil {
		slog.Error("failed to query config", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, resp)
}
