// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"

	"github.com/danielhkuo/dayvault/ledger"
)

var (
	// ErrFeePoolTooLarge means the configured flat fee per loser exceeds
	// what the losers collectively escrowed. The day cannot be settled
	// with this configuration; truncating silently is not an option.
	ErrFeePoolTooLarge = errors.New("fee pool exceeds loser sum")

	// ErrNoBidders means a nonzero highest bid with a zero bidder count,
	// which is an internal consistency violation.
	ErrNoBidders = errors.New("bidder count is zero for a day with bids")
)

// SettlementSplit computes the refund and fee pools for a settled day.
//
// The winner's bid goes to the recipient; everything the losers escrowed
// splits exactly into two pools:
//
//	loserSum   = totalBid - highestBid
//	feePool    = (bidderCount - 1) * loserFee
//	refundPool = loserSum - feePool
//
// The split is exact: refundPool + feePool == totalBid - highestBid with
// no remainder. All arithmetic is overflow-checked; a fee pool larger
// than the loser sum is rejected rather than clamped.
func SettlementSplit(bidderCount, totalBid, highestBid, loserFee int64) (refundPool, feePool int64, err error) {
	if bidderCount <= 0 {
		return 0, 0, ErrNoBidders
	}
	loserCount := bidderCount - 1

	loserSum, err := ledger.CheckedSub(totalBid, highestBid)
	if err != nil {
		return 0, 0, err
	}
	feePool, err = ledger.CheckedMul(loserCount, loserFee)
	if err != nil {
		return 0, 0, err
	}
	if feePool > loserSum {
		return 0, 0, ErrFeePoolTooLarge
	}
	refundPool, err = ledger.CheckedSub(loserSum, feePool)
	if err != nil {
		return 0, 0, err
	}
	return refundPool, feePool, nil
}
