package models

import "time"

// Auction day status constants
const (
	DayStatusOpen      = "open"
	DayStatusFinalized = "finalized"
)

// Account owner constants
const (
	OwnerExternal = "external"
	OwnerCustody  = "custody"
)

// NoWinner is the winner value for a day with no bids.
const NoWinner = ""

// Day bucket parameters
const (
	SecondsPerDay       = 86_400
	InitDayMaxAheadDays = 2
)

// DayIndexAt returns the day bucket containing t.
func DayIndexAt(t time.Time) int64 {
	return t.Unix() / SecondsPerDay
}

// Request types

type InitConfigRequest struct {
	Recipient            string `json:"recipient"`
	LoserFeeLamports     int64  `json:"loser_fee_lamports"`
	MinIncrementLamports int64  `json:"min_increment_lamports"`
}

type InitDayRequest struct {
	DayIndex int64 `json:"day_index"`
}

type PlaceBidRequest struct {
	Bidder         string `json:"bidder"`
	AmountLamports int64  `json:"amount_lamports"`
}

type SettleDayRequest struct {
	Recipient string `json:"recipient"`
}

// RefundBatchRequest lists the bidders to process plus their auxiliary
// references: for each bidder, two addresses in order (receipt, bidder),
// flattened into Refs. Refs must hold exactly 2*len(Bidders) entries.
type RefundBatchRequest struct {
	Cranker string   `json:"cranker"`
	Bidders []string `json:"bidders"`
	Refs    []string `json:"refs"`
}

type DepositRequest struct {
	AmountLamports int64 `json:"amount_lamports"`
}

// Response types

type InitConfigResponse struct {
	Address              string `json:"address"`
	Recipient            string `json:"recipient"`
	LoserFeeLamports     int64  `json:"loser_fee_lamports"`
	MinIncrementLamports int64  `json:"min_increment_lamports"`
}

type PlaceBidResponse struct {
	ReceiptAddress string `json:"receipt_address"`
	AmountLamports int64  `json:"amount_lamports"`
	HighestBid     int64  `json:"highest_bid"`
	Winning        bool   `json:"winning"`
}

type SettleDayResponse struct {
	DayIndex            int64  `json:"day_index"`
	Winner              string `json:"winner,omitempty"`
	HighestBid          int64  `json:"highest_bid"`
	RefundPoolRemaining int64  `json:"refund_pool_remaining"`
	FeePoolRemaining    int64  `json:"fee_pool_remaining"`
	RefundCountTotal    int64  `json:"refund_count_total"`
}

type RefundBatchResponse struct {
	Processed            int   `json:"processed"`
	Skipped              int   `json:"skipped"`
	RefundCountCompleted int64 `json:"refund_count_completed"`
	RefundCountTotal     int64 `json:"refund_count_total"`
	RefundPoolRemaining  int64 `json:"refund_pool_remaining"`
	FeePoolRemaining     int64 `json:"fee_pool_remaining"`
}

type CreateAccountResponse struct {
	Address    string `json:"address"`
	AccountKey string `json:"account_key"`
}

type DepositResponse struct {
	Address         string `json:"address"`
	BalanceLamports int64  `json:"balance_lamports"`
}

// Domain types

type Config struct {
	Address              string    `json:"address"`
	Recipient            string    `json:"recipient"`
	LoserFeeLamports     int64     `json:"loser_fee_lamports"`
	MinIncrementLamports int64     `json:"min_increment_lamports"`
	AddressSalt          string    `json:"-"` // Never expose in JSON
	CreatedAt            time.Time `json:"created_at,omitempty"`
}

type AuctionDay struct {
	Address              string `json:"address"`
	DayIndex             int64  `json:"day_index"`
	Status               string `json:"status"`
	Winner               string `json:"winner,omitempty"`
	HighestBid           int64  `json:"highest_bid"`
	BidderCount          int64  `json:"bidder_count"`
	TotalBidLamports     int64  `json:"total_bid_lamports"`
	RefundPoolRemaining  int64  `json:"refund_pool_remaining"`
	FeePoolRemaining     int64  `json:"fee_pool_remaining"`
	RefundCountTotal     int64  `json:"refund_count_total"`
	RefundCountCompleted int64  `json:"refund_count_completed"`
	EscrowAddress        string `json:"escrow_address"`
}

type BidReceipt struct {
	Address        string `json:"address"`
	DayAddress     string `json:"day_address"`
	Bidder         string `json:"bidder"`
	AmountLamports int64  `json:"amount_lamports"`
	Refunded       bool   `json:"refunded"`
}

type Account struct {
	Address         string `json:"address"`
	Owner           string `json:"owner"`
	BalanceLamports int64  `json:"balance_lamports"`
}

type DayReceipts struct {
	DayIndex int64        `json:"day_index"`
	Receipts []BidReceipt `json:"receipts"`
}

// Error response

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}
