package core

import (
	"sort"
)

// RankingResult contains the ranked bidders of one product and their bids.
type RankingResult struct {
	Ranks         map[Identity]int        `json:"ranks"`
	HighestBids   map[Identity]*BidRecord `json:"highest_bids"`
	SortedBidders []Identity              `json:"sorted_bidders"`
}

// Top returns the highest ranked bid, or nil when there are no bids.
func (r *RankingResult) Top() *BidRecord {
	if len(r.SortedBidders) == 0 {
		return nil
	}
	return r.HighestBids[r.SortedBidders[0]]
}

// RankBids ranks the bids placed on a single product.
//
// Bids are ordered by amount descending. Equal amounts are ordered by sequence
// ascending, so the bidder who reached an amount first keeps the better rank.
// If a bidder appears more than once only their highest bid is ranked.
func RankBids(bids []BidRecord) *RankingResult {
	if len(bids) == 0 {
		return &RankingResult{
			Ranks:         make(map[Identity]int),
			HighestBids:   make(map[Identity]*BidRecord),
			SortedBidders: make([]Identity, 0),
		}
	}

	// Find highest bid per bidder while preserving order of first occurrence
	bidderMap := make(map[Identity]*BidRecord)
	bidderOrder := make([]Identity, 0, len(bids))

	for i := range bids {
		bid := &bids[i]

		existing, exists := bidderMap[bid.Bidder]
		if !exists {
			bidderOrder = append(bidderOrder, bid.Bidder)
		}
		if !exists || bid.Amount.GreaterThan(existing.Amount) {
			bidderMap[bid.Bidder] = bid
		}
	}

	entries := make([]*BidRecord, 0, len(bidderOrder))
	for _, bidder := range bidderOrder {
		entries = append(entries, bidderMap[bidder])
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if cmp := entries[i].Amount.Cmp(entries[j].Amount); cmp != 0 {
			return cmp > 0
		}
		return entries[i].Sequence < entries[j].Sequence
	})

	result := &RankingResult{
		Ranks:         make(map[Identity]int, len(entries)),
		HighestBids:   make(map[Identity]*BidRecord, len(entries)),
		SortedBidders: make([]Identity, len(entries)),
	}

	for rank, entry := range entries {
		result.Ranks[entry.Bidder] = rank + 1
		result.HighestBids[entry.Bidder] = entry
		result.SortedBidders[rank] = entry.Bidder
	}

	return result
}
