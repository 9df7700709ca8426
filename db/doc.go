// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db handles database connection and schema creation.

# Opening a Connection

Open selects the driver from the configured database type:

	conn, err := db.Open(cfg)  // "sqlite" or "postgres"

The caller imports the driver packages (modernc.org/sqlite, lib/pq)
with blank imports.

# Schema Creation

CreateSchema initializes all required tables:

	if err := db.CreateSchema(conn); err != nil {
		log.Fatal(err)
	}

Safe to call multiple times - uses IF NOT EXISTS for all tables and
indexes. The SQL avoids server-side time defaults so the same schema
runs on both engines; timestamps are always written by the application.

# Tables

The schema includes:

  - auction_config: Singleton auction settings (id = 1 enforced)
  - auction_day: One row per day, created lazily on first touch
  - bid_receipt: One row per (day, bidder), cumulative escrowed amount
  - account: Ledger accounts with owner and balance
  - transfer: Append-only journal of every fund movement

# Relationships

	auction_day 1──* bid_receipt
	auction_day 1──1 account (escrow, via escrow_address)

Absence of an auction_day row is the uninitialized state for that day;
status then moves 'open' → 'finalized' and never back.

# Constraints

CHECK constraints keep counters and balances non-negative and restrict
status and owner to their closed value sets, so a logic bug that would
corrupt an invariant fails the statement instead of persisting.
*/
package db
