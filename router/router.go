// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"database/sql"
	"net/http"

	"github.com/danielhkuo/dayvault/cliparse"
	"github.com/danielhkuo/dayvault/handlers"
	"github.com/danielhkuo/dayvault/middleware"
)

func NewRouter(db *sql.DB, cfg cliparse.Config) *http.ServeMux {
	mux := http.NewServeMux()

	// Initialize handlers
	configHandler := handlers.NewConfigHandler(db, cfg)
	dayHandler := handlers.NewDayHandler(db, cfg)
	bidHandler := handlers.NewBidHandler(db, cfg)
	settleHandler := handlers.NewSettleHandler(db, cfg)
	refundHandler := handlers.NewRefundHandler(db, cfg)
	accountHandler := handlers.NewAccountHandler(db, cfg)

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Auction config (admin operations)
	mux.HandleFunc("POST /config", middleware.WithLogging(configHandler.InitConfig))
	mux.HandleFunc("GET /config", middleware.WithLogging(configHandler.GetConfig))

	// Auction days
	mux.HandleFunc("POST /days", middleware.WithLogging(dayHandler.InitDay))
	mux.HandleFunc("GET /days/{dayIndex}", middleware.WithLogging(dayHandler.GetDay))
	mux.HandleFunc("GET /days/{dayIndex}/receipts", middleware.WithLogging(dayHandler.ListReceipts))

	// Bidding and settlement
	mux.HandleFunc("POST /days/{dayIndex}/bids", middleware.WithLogging(bidHandler.PlaceBid))
	mux.HandleFunc("POST /days/{dayIndex}/settle", middleware.WithLogging(settleHandler.SettleDay))
	mux.HandleFunc("POST /days/{dayIndex}/refunds", middleware.WithLogging(refundHandler.RefundBatch))

	// Funding accounts
	mux.HandleFunc("POST /accounts", middleware.WithLogging(accountHandler.Create))
	mux.HandleFunc("POST /accounts/{address}/deposit", middleware.WithLogging(accountHandler.Deposit))
	mux.HandleFunc("GET /accounts/{address}", middleware.WithLogging(accountHandler.Get))

	// Root endpoint
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("dayvault API v1"))
	})

	return mux
}
