// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines request, response, and domain types for the API.

# Request Types

Types for parsing incoming JSON:

  - InitConfigRequest: recipient, loser_fee_lamports, min_increment_lamports
  - InitDayRequest: day_index
  - PlaceBidRequest: bidder, amount_lamports
  - SettleDayRequest: recipient
  - RefundBatchRequest: cranker, bidders, refs
  - DepositRequest: amount_lamports

# Response Types

Types for JSON responses:

  - InitConfigResponse: address, recipient, fee and increment settings
  - PlaceBidResponse: receipt_address, amount_lamports, highest_bid, winning
  - SettleDayResponse: winner, highest_bid, pool and counter figures
  - RefundBatchResponse: processed, skipped, refund progress, pool figures
  - CreateAccountResponse: address, account_key
  - ErrorResponse: error, code, message

Failure codes carried in ErrorResponse.Code form a closed set; see
codes.go. Clients branch on the code, never on the human-readable text.

# Domain Types

Internal data structures:

  - Config: singleton auction settings plus the private address salt
  - AuctionDay: one day's auction state, counters, and pools
  - BidReceipt: one bidder's cumulative escrowed position for a day
  - Account: a ledger account with owner and balance
  - DayReceipts: a day's receipt listing

# Day Indexing

Days are numbered by Unix-epoch bucket:

	dayIndex := models.DayIndexAt(time.Now())  // unix seconds / 86400

A day may be created at most InitDayMaxAheadDays (2) buckets ahead of
the current one.

# Constants

Day status values:

	DayStatusOpen      = "open"
	DayStatusFinalized = "finalized"

Account owners:

	OwnerExternal = "external"
	OwnerCustody  = "custody"

NoWinner ("") marks a finalized day that received no bids.
*/
package models
