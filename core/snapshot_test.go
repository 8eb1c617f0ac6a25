package core

import (
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"
)

func populatedLedger(t *testing.T) (*Ledger, *ManualClock) {
	t.Helper()
	ledger, clock := newTestLedger(t)
	assert.NoError(t, ledger.Authorize(owner, bidder1))
	assert.NoError(t, ledger.Authorize(owner, bidder2))
	assert.NoError(t, ledger.Product(owner, 1, decimal.NewFromInt(1000), false))
	assert.NoError(t, ledger.Product(owner, 2, decimal.NewFromInt(5), false))
	assert.NoError(t, ledger.Product(owner, 3, decimal.NewFromInt(7), false))
	assert.NoError(t, ledger.Product(owner, 2, decimal.Zero, true))
	openAuction(t, ledger, clock)

	_, err := ledger.Bid(bidder1, 1, ether(t, "1.0"))
	assert.NoError(t, err)
	_, err = ledger.Bid(bidder2, 1, ether(t, "2.0"))
	assert.NoError(t, err)
	_, err = ledger.Bid(bidder1, 3, ether(t, "0.5"))
	assert.NoError(t, err)
	return ledger, clock
}

func TestSnapshot_RoundTrip(t *testing.T) {
	ledger, clock := populatedLedger(t)

	snap := ledger.Snapshot()
	check.Equal(t, string(owner), snap.Owner)
	check.Equal(t, 2, len(snap.AllowedBuyers))
	check.True(t, sort.StringsAreSorted(snap.AllowedBuyers))
	check.Equal(t, []int64{1, 0, 3}, snap.ProductKeys)
	check.Equal(t, 2, snap.LiveProductsCount)
	check.Equal(t, 3, len(snap.Bids))
	check.Equal(t, uint64(3), snap.Sequence)

	restored, err := Restore(snap, WithClock(clock))
	assert.NoError(t, err)

	check.Equal(t, owner, restored.Owner())
	check.True(t, restored.IsAllowedBuyer(bidder1))
	check.True(t, restored.IsAllowedBuyer(bidder2))
	check.False(t, restored.IsAllowedBuyer(unauthorized))
	check.Equal(t, PhaseOpen, restored.Phase())
	check.Equal(t, 2, restored.LiveProductsCount())
	check.Equal(t, 3, restored.ProductKeysLen())
	check.False(t, restored.LookupProduct(2).IsLive)
	check.Equal(t, "1000", restored.LookupProduct(1).Price.String())

	window, ok := restored.AuctionTiming()
	check.True(t, ok)
	originalWindow, _ := ledger.AuctionTiming()
	check.True(t, window.Start.Equal(originalWindow.Start))
	check.True(t, window.End.Equal(originalWindow.End))

	amount, err := restored.CurrentBid(1, bidder1)
	assert.NoError(t, err)
	check.True(t, amount.Equal(ether(t, "1.0")))

	original, err := ledger.WinnersJSON(owner)
	assert.NoError(t, err)
	replayed, err := restored.WinnersJSON(owner)
	assert.NoError(t, err)
	check.Equal(t, original, replayed)

	// The restored ledger continues the bid sequence
	receipt, err := restored.Bid(bidder2, 3, ether(t, "0.75"))
	assert.NoError(t, err)
	check.Equal(t, uint64(4), receipt.Sequence)
}

func TestSnapshot_Deterministic(t *testing.T) {
	ledger, clock := populatedLedger(t)

	first := ledger.Snapshot()
	restored, err := Restore(first, WithClock(clock))
	assert.NoError(t, err)
	second := restored.Snapshot()

	check.Equal(t, first, second)
}

func TestSnapshot_EmptyLedger(t *testing.T) {
	ledger, clock := newTestLedger(t)

	snap := ledger.Snapshot()
	check.False(t, snap.WindowSet)
	check.Equal(t, 0, len(snap.Products))

	restored, err := Restore(snap, WithClock(clock))
	assert.NoError(t, err)
	check.Equal(t, PhaseUnconfigured, restored.Phase())
	check.Equal(t, 0, restored.LiveProductsCount())
}

func TestSnapshot_OptionsCarried(t *testing.T) {
	ledger, _ := newTestLedger(t, WithReserveEnforcement(true))
	snap := ledger.Snapshot()
	check.True(t, snap.Options.EnforceReserve)

	restored, err := Restore(snap)
	assert.NoError(t, err)
	check.True(t, restored.enforceReserve)

	overridden, err := Restore(snap, WithReserveEnforcement(false))
	assert.NoError(t, err)
	check.False(t, overridden.enforceReserve)
}

func TestRestore_InvalidSnapshots(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Snapshot)
	}{
		{"missing owner", func(s *Snapshot) { s.Owner = "" }},
		{"bad price", func(s *Snapshot) { s.Products[0].Price = "abc" }},
		{"bad amount", func(s *Snapshot) { s.Bids[0].Amount = "one ether" }},
		{"key slot of removed product", func(s *Snapshot) { s.ProductKeys[1] = 2 }},
		{"duplicate key slot", func(s *Snapshot) { s.ProductKeys = append(s.ProductKeys, 1) }},
		{"live count mismatch", func(s *Snapshot) { s.LiveProductsCount = 5 }},
		{"bid beyond sequence", func(s *Snapshot) { s.Sequence = 1 }},
		{"duplicate bid", func(s *Snapshot) { s.Bids = append(s.Bids, s.Bids[0]) }},
		{"live product without key slot", func(s *Snapshot) {
			s.Products = append(s.Products, ProductEntry{Key: 7, Code: 7, Price: "1", IsLive: true})
		}},
		{"live product under another key", func(s *Snapshot) { s.Products[0].Code = 9 }},
		{"removed product with fields", func(s *Snapshot) { s.Products[1].Code = 2 }},
		{"removed product with price", func(s *Snapshot) { s.Products[1].Price = "5" }},
		{"duplicate product entry", func(s *Snapshot) { s.Products = append(s.Products, s.Products[0]) }},
		{"window nanos out of range", func(s *Snapshot) { s.WindowEnd.Nanos = -1 }},
		{"window ends before start", func(s *Snapshot) { s.WindowEnd = s.WindowStart; s.WindowStart.Seconds++ }},
		{"bid nanos out of range", func(s *Snapshot) { s.Bids[0].PlacedAt.Nanos = 1_000_000_000 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger, _ := populatedLedger(t)
			snap := ledger.Snapshot()
			tt.mutate(snap)

			restored, err := Restore(snap)
			check.Error(t, err)
			check.Nil(t, restored)
		})
	}
}

func TestRestore_Nil(t *testing.T) {
	restored, err := Restore(nil)
	check.Error(t, err)
	check.Nil(t, restored)
}

func TestSnapshot_TimesKeepNanoseconds(t *testing.T) {
	ledger, clock := newTestLedger(t)
	start := auctionStart.Add(123 * time.Nanosecond)
	assert.NoError(t, ledger.SetAuctionTiming(owner, start, start.Add(singleDay)))

	snap := ledger.Snapshot()
	check.Equal(t, SnapshotTime{Seconds: start.Unix(), Nanos: 123}, snap.WindowStart)
	check.True(t, snap.WindowStart.Time().Equal(start))
	check.True(t, snap.TakenAt.Time().Equal(clock.Now()))
}

func TestRestore_FarFutureWindow(t *testing.T) {
	ledger, clock := newTestLedger(t)
	start := time.Date(2300, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2300, 1, 2, 0, 0, 0, 0, time.UTC)
	assert.NoError(t, ledger.SetAuctionTiming(owner, start, end))

	restored, err := Restore(ledger.Snapshot(), WithClock(clock))
	assert.NoError(t, err)

	window, ok := restored.AuctionTiming()
	check.True(t, ok)
	check.True(t, window.Start.Equal(start))
	check.True(t, window.End.Equal(end))
	check.Equal(t, ledger.Phase(), restored.Phase())
	check.Equal(t, PhaseTimingSet, restored.Phase())
}

func TestRestore_LiveCountStaysConsistentAfterRemove(t *testing.T) {
	ledger, clock := populatedLedger(t)
	restored, err := Restore(ledger.Snapshot(), WithClock(clock))
	assert.NoError(t, err)

	assert.NoError(t, restored.Product(owner, 3, decimal.Zero, true))
	assert.NoError(t, restored.Product(owner, 1, decimal.Zero, true))
	check.Equal(t, 0, restored.LiveProductsCount())

	winners, err := restored.Winners(owner)
	assert.NoError(t, err)
	check.Equal(t, 0, len(winners))
}

func TestErrorCode_RoundTrip(t *testing.T) {
	for _, sentinel := range []error{
		ErrForbidden, ErrInvalidProductCode, ErrNotAuthorized, ErrAlreadyClosed,
		ErrBidNotFound, ErrNotStarted, ErrProductNotLive, ErrInvalidAmount,
		ErrInvalidPrice, ErrInvalidWindow, ErrIndexOutOfRange,
	} {
		wrapped := errors.Join(errors.New("context"), sentinel)
		code := ErrorCode(wrapped)
		check.Equal(t, sentinel.Error(), code)
		check.True(t, errors.Is(ErrorFromCode(code), sentinel))
	}

	check.Equal(t, "", ErrorCode(errors.New("plain")))
	check.Nil(t, ErrorFromCode("NOPE"))
}
