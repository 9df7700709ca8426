// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the Dayvault API.

# Route Registration

NewRouter creates a configured http.ServeMux with all endpoints:

	mux := router.NewRouter(db, cfg)

# Endpoints

Health:

	GET /health

Auction config (admin, requires X-Admin-Key to create):

	POST /config - Create the singleton config
	GET  /config - Read config (address salt never exposed)

Auction days:

	POST /days                        - Ensure a day row exists
	GET  /days/{dayIndex}             - Day state and counters
	GET  /days/{dayIndex}/receipts    - All bid receipts for the day

Bidding and settlement:

	POST /days/{dayIndex}/bids     - Place or raise a bid (X-Account-Key)
	POST /days/{dayIndex}/settle   - Finalize a past day
	POST /days/{dayIndex}/refunds  - Process a refund batch (X-Account-Key)

Funding accounts:

	POST /accounts                     - Create an external account
	POST /accounts/{address}/deposit   - Credit funds (X-Admin-Key)
	GET  /accounts/{address}           - Balance and owner

# Handler Initialization

The router creates handler instances with dependency injection; all
handlers receive the database connection and configuration.
*/
package router
