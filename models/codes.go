package models

// Failure reason codes. Every precondition violation aborts its call with
// exactly one of these; the set is closed and machine-matchable by callers
// such as the crank job.
const (
	CodeInvalidBidAmount     = "invalid_bid_amount"
	CodeWrongDay             = "wrong_day"
	CodeDayTooFarAhead       = "day_too_far_ahead"
	CodeDayInitRace          = "day_init_race"
	CodeAlreadyFinalized     = "already_finalized"
	CodeBidTooLow            = "bid_too_low"
	CodeBidNotIncreased      = "bid_not_increased"
	CodeMathOverflow         = "math_overflow"
	CodeDayMismatch          = "day_mismatch"
	CodeTooEarly             = "too_early"
	CodeBidderCountMismatch  = "bidder_count_mismatch"
	CodeFeePoolTooLarge      = "fee_pool_too_large"
	CodeInsufficientEscrow   = "insufficient_escrow"
	CodeRecipientMismatch    = "recipient_mismatch"
	CodeBidderMismatch       = "bidder_mismatch"
	CodeReceiptMismatch      = "receipt_mismatch"
	CodeReceiptOwnerMismatch = "receipt_owner_mismatch"
	CodeNotFinalized         = "not_finalized"
	CodeInvalidRefundRefs    = "invalid_refund_refs"
	CodeInsufficientRefund   = "insufficient_refund_pool"
	CodeInsufficientFeePool  = "insufficient_fee_pool"
	CodeEscrowNotCustodial   = "escrow_not_custodial"
	CodeConfigMissing        = "config_missing"
	CodeConfigExists         = "config_exists"
	CodeDayNotFound          = "day_not_found"
	CodeAccountNotFound      = "account_not_found"
	CodeInvalidAccountKey    = "invalid_account_key"
	CodeInvalidAdminKey      = "invalid_admin_key"
	CodeInsufficientFunds    = "insufficient_funds"
)
