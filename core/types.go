package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Identity is an opaque caller principal (an address, an account name).
type Identity string

// Product is a catalog entry. A removed product reads back as the zero Product.
type Product struct {
	Code   int64           `json:"code"`
	Price  decimal.Decimal `json:"price"`
	IsLive bool            `json:"isLive"`
}

// AuctionWindow is the [Start, End) interval during which bids are accepted.
type AuctionWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls inside [Start, End).
func (w AuctionWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Phase is the lifecycle stage of an auction.
type Phase int

const (
	PhaseUnconfigured Phase = iota
	PhaseTimingSet
	PhaseOpen
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseUnconfigured:
		return "unconfigured"
	case PhaseTimingSet:
		return "timing_set"
	case PhaseOpen:
		return "open"
	case PhaseClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// BidRecord is the stored bid of one bidder on one product.
type BidRecord struct {
	ProductCode int64           `json:"productCode"`
	Bidder      Identity        `json:"bidder"`
	Amount      decimal.Decimal `json:"amount"`
	// Sequence orders bids across the whole ledger; a replaced bid gets a new one.
	Sequence uint64    `json:"sequence"`
	PlacedAt time.Time `json:"placedAt"`
}

// BidReceipt is returned to a bidder for every accepted bid.
type BidReceipt struct {
	ID          string          `json:"id"`
	ProductCode int64           `json:"productCode"`
	Bidder      Identity        `json:"bidder"`
	Amount      decimal.Decimal `json:"amount"`
	Sequence    uint64          `json:"sequence"`
	PlacedAt    time.Time       `json:"placedAt"`
	Nonce       string          `json:"nonce"`
	Hash        string          `json:"hash"`
}

// WinningBid is one entry of the winners payload.
type WinningBid struct {
	ProductCode int64           `json:"productCode"`
	Amount      decimal.Decimal `json:"amount"`
	Winner      Identity        `json:"winner"`
}

// UnsoldProduct is a live product whose highest bid did not meet its asking price.
type UnsoldProduct struct {
	ProductCode int64           `json:"productCode"`
	Price       decimal.Decimal `json:"price"`
	HighestBid  decimal.Decimal `json:"highestBid"`
}
