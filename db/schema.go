// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"database/sql"
	"fmt"

	"github.com/danielhkuo/dayvault/cliparse"
)

// Open connects to the configured database. The caller owns the handle.
func Open(cfg cliparse.Config) (*sql.DB, error) {
	driver := "sqlite"
	if cfg.DatabaseType == "postgres" {
		driver = "postgres"
	}
	conn, err := sql.Open(driver, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.DatabaseType, err)
	}
	return conn, nil
}

// CreateSchema creates all tables needed for the application.
// Safe to call multiple times - uses IF NOT EXISTS.
// Portable across SQLite and PostgreSQL: no server-side time defaults,
// timestamps are always written by the application.
func CreateSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

const schema = `
-- Auction config (singleton)
CREATE TABLE IF NOT EXISTS auction_config (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    address TEXT NOT NULL,
    recipient TEXT NOT NULL,
    loser_fee_lamports BIGINT NOT NULL CHECK (loser_fee_lamports >= 0),
    min_increment_lamports BIGINT NOT NULL CHECK (min_increment_lamports > 0),
    address_salt TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

-- Auction days. A row is created lazily on first touch; absence of a row
-- is the uninitialized state, so a live day is never all-zeros ambiguous.
CREATE TABLE IF NOT EXISTS auction_day (
    address TEXT PRIMARY KEY,
    day_index BIGINT NOT NULL UNIQUE,
    status TEXT NOT NULL CHECK (status IN ('open', 'finalized')),
    winner TEXT NOT NULL DEFAULT '',
    highest_bid BIGINT NOT NULL DEFAULT 0 CHECK (highest_bid >= 0),
    bidder_count BIGINT NOT NULL DEFAULT 0 CHECK (bidder_count >= 0),
    total_bid_lamports BIGINT NOT NULL DEFAULT 0 CHECK (total_bid_lamports >= 0),
    refund_pool_remaining BIGINT NOT NULL DEFAULT 0 CHECK (refund_pool_remaining >= 0),
    fee_pool_remaining BIGINT NOT NULL DEFAULT 0 CHECK (fee_pool_remaining >= 0),
    refund_count_total BIGINT NOT NULL DEFAULT 0 CHECK (refund_count_total >= 0),
    refund_count_completed BIGINT NOT NULL DEFAULT 0 CHECK (refund_count_completed >= 0),
    escrow_address TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_auction_day_index ON auction_day(day_index);
CREATE INDEX IF NOT EXISTS idx_auction_day_status ON auction_day(status);

-- Bid receipts, one per (day, bidder)
CREATE TABLE IF NOT EXISTS bid_receipt (
    address TEXT PRIMARY KEY,
    day_address TEXT NOT NULL REFERENCES auction_day(address),
    bidder TEXT NOT NULL,
    amount_lamports BIGINT NOT NULL DEFAULT 0 CHECK (amount_lamports >= 0),
    refunded BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP NOT NULL,
    UNIQUE (day_address, bidder)
);

CREATE INDEX IF NOT EXISTS idx_bid_receipt_day ON bid_receipt(day_address);

-- Ledger accounts. Custody-owned accounts can only be debited through
-- the escrow authority capability.
CREATE TABLE IF NOT EXISTS account (
    address TEXT PRIMARY KEY,
    owner TEXT NOT NULL CHECK (owner IN ('external', 'custody')),
    balance_lamports BIGINT NOT NULL DEFAULT 0 CHECK (balance_lamports >= 0),
    created_at TIMESTAMP NOT NULL
);

-- Transfer journal
CREATE TABLE IF NOT EXISTS transfer (
    id TEXT PRIMARY KEY,
    from_address TEXT NOT NULL,
    to_address TEXT NOT NULL,
    amount_lamports BIGINT NOT NULL CHECK (amount_lamports >= 0),
    reason TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transfer_from ON transfer(from_address);
CREATE INDEX IF NOT EXISTS idx_transfer_to ON transfer(to_address);
`
