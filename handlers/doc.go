// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the Dayvault API.

# Handler Types

Each handler is a struct with database and config dependencies:

  - ConfigHandler: Singleton auction config (create, read)
  - DayHandler: Day initialization and day/receipt reads
  - BidHandler: Bid placement with escrow
  - SettleHandler: Day settlement and payout to the recipient
  - RefundHandler: Batched loser refunds with cranker fees
  - AccountHandler: Funding accounts (create, deposit, read)

Handlers are created via constructor functions that accept *sql.DB and
Config:

	bidHandler := handlers.NewBidHandler(db, cfg)

Handlers also carry a now() clock so tests can pin time.

# Day Lifecycle

A day moves through two states once its row exists: open → finalized

	POST /days                      → InitDay (idempotent, lazy)
	POST /days/{dayIndex}/bids      → PlaceBid (current day only)
	POST /days/{dayIndex}/settle    → SettleDay (past days only)
	POST /days/{dayIndex}/refunds   → RefundBatch (finalized days only)

PlaceBid creates the day row itself if nobody called InitDay, so the
first bid of a day never fails on a missing row.

# Bidding Rules

Bids are cumulative per (day, bidder): a re-bid escrows only the delta
between the new total and the previous one. The first bid must be at
least the configured minimum increment; any bid that takes the lead
must exceed the current highest by at least that increment.

# Settlement Math

SettlementSplit divides a day's escrowed total exactly:

	refundPool, feePool, err := SettlementSplit(bidderCount, totalBid, highestBid, loserFee)

feePool = loserFee * (bidderCount - 1); refundPool = totalBid -
highestBid - feePool. The highest bid goes to the recipient at
settlement, and the two pools drain to exactly zero when every loser
has been refunded.

# Authorization

  - X-Admin-Key: operator actions (config creation, deposits)
  - X-Account-Key: spending actions for the named account (bids, cranking)

# Failure Codes

Every rule violation maps to one code from models/codes.go; 4xx status
classes follow the cause (400 validation, 401 key, 404 missing record,
409 state or funds, 422 arithmetic or stored-state inconsistency).
*/
package handlers
