// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the Dayvault auction API server.

Dayvault runs one sealed-outcome auction per calendar day: bidders escrow
funds against the current day, the highest escrowed total wins, and after
the day closes the winning amount is forwarded to a configured recipient
while every loser is refunded minus a flat fee paid to whoever cranks
the refund queue.

# Starting the Server

The server requires environment variables or CLI flags for configuration:

	DATABASE_URL=dayvault.db go run .

Or with flags:

	go run . -p 3320 -d "postgres://..." -t postgres

# Configuration

Required settings:

  - DATABASE_URL (-d): SQLite path or PostgreSQL connection string
  - ADMIN_KEY_SALT (-admin-salt): Secret for the operator key HMAC
  - ACCOUNT_KEY_SALT (-account-salt): Secret for account spending keys

Optional settings:

  - PORT (-p): Server port (default: 3320)
  - DATABASE_TYPE (-t): "sqlite" (default) or "postgres"

A .env file in the working directory is loaded if present.

# Architecture

The server uses a handler-based architecture with dependency injection:

  - handlers: HTTP request handlers (config, days, bids, settlement, refunds, accounts)
  - ledger: Account balances, escrow custody, and the transfer journal
  - router: Route definitions using Go 1.22+ routing
  - middleware: Logging, JSON helpers, failure codes
  - models: Request/response types and day-index math
  - auth: Key generation and deterministic address derivation
  - db: Schema creation and driver selection
  - cliparse: Configuration parsing

The cmd/crank binary is the scheduled settlement job. See package
documentation for each component.
*/
package main
