// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth provides key generation and deterministic address derivation.

# Operator Key

The operator key uses HMAC-SHA256 over a fixed subject:

	adminKey := auth.GenerateAdminKey(salt)
	err := auth.ValidateAdminKey(adminKey, salt)

Since it's deterministic from the salt, validation needs no database
storage. The key authorizes config creation and account deposits.

# Account Keys

Each external account has a spending key derived from its address:

	accountKey := auth.GenerateAccountKey(address, salt)
	err := auth.ValidateAccountKey(address, accountKey, salt)

Possession of the key is what authorizes bids and refund cranking on
behalf of the account.

# Address Derivation

Program-owned records live at deterministic addresses computed from a
tag plus entity keys:

	dayAddr := auth.DeriveAddress(salt, auth.TagAuctionDay, "20674")
	receiptAddr := auth.DeriveAddress(salt, auth.TagBidReceipt, dayAddr, bidder)

The same inputs always yield the same address, so any party that knows
the public identifiers can locate (and reference) a record without a
lookup. Addresses are the first 16 bytes of an HMAC-SHA256, hex encoded.

Tags: TagConfig, TagAuctionDay, TagVault, TagBidReceipt.

# Escrow Authority

Debits from a day's custody escrow require a capability token:

	authority := auth.EscrowAuthority(salt, escrowAddress)
	err := auth.ValidateEscrowAuthority(escrowAddress, authority, salt)

Only code holding the config address salt can mint the token, so
external callers can pay into escrow but never move funds out of it.

# ID Generation

Random hex IDs for account addresses:

	id, err := auth.GenerateID(16)  // 32 hex characters
*/
package auth
