package core

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// ComputeBidHash computes the receipt hash of an accepted bid.
// This is used by the ledger (to issue receipts) and validation (to verify them).
//
// Formula: SHA256(product_code + "|" + bidder + "|" + amount + "|" + nonce)
//
// The amount is written as its exact decimal string in the smallest currency unit.
func ComputeBidHash(productCode int64, bidder Identity, amount string, nonce string) string {
	data := fmt.Sprintf("%d|%s|%s|%s", productCode, bidder, amount, nonce)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// ComputeWinnersHash computes the hash committed to by a signed settlement.
//
// Formula: SHA256(nonce + "|" + "code:winner:amount" entries joined by "|")
//
// Entries keep the order of the winners slice, which is catalog key order.
func ComputeWinnersHash(winners []WinningBid, nonce string) string {
	var sb strings.Builder
	sb.WriteString(nonce)
	for _, winner := range winners {
		fmt.Fprintf(&sb, "|%d:%s:%s", winner.ProductCode, winner.Winner, winner.Amount.String())
	}
	hash := sha256.Sum256([]byte(sb.String()))
	return fmt.Sprintf("%x", hash)
}
