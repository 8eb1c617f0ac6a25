package core

import (
	"github.com/shopspring/decimal"
)

// BidMeetsReserve returns true if the bid amount meets or exceeds the asking price.
func BidMeetsReserve(amount, price decimal.Decimal) bool {
	return amount.GreaterThanOrEqual(price)
}

// EnforceReserve splits winners into those whose amount meets the asking price
// of their product and those that do not. Winners whose product is missing from
// the catalog pass without enforcement.
func EnforceReserve(winners []WinningBid, catalog map[int64]Product) (sold []WinningBid, unsold []UnsoldProduct) {
	sold = make([]WinningBid, 0, len(winners))
	unsold = make([]UnsoldProduct, 0)

	for _, winner := range winners {
		product, ok := catalog[winner.ProductCode]
		if !ok {
			sold = append(sold, winner)
			continue
		}

		if BidMeetsReserve(winner.Amount, product.Price) {
			sold = append(sold, winner)
		} else {
			unsold = append(unsold, UnsoldProduct{
				ProductCode: winner.ProductCode,
				Price:       product.Price,
				HighestBid:  winner.Amount,
			})
		}
	}

	return sold, unsold
}
