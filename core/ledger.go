package core

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock sets the source of the ledger timestamp.
func WithClock(clock Clock) Option {
	return func(l *Ledger) {
		if clock != nil {
			l.clock = clock
		}
	}
}

// WithReserveEnforcement leaves products whose highest bid is below the asking
// price out of the winners.
func WithReserveEnforcement(enabled bool) Option {
	return func(l *Ledger) {
		l.enforceReserve = enabled
	}
}

type bidKey struct {
	productCode int64
	bidder      Identity
}

// Ledger is the auction state machine: an allow-list of bidders, a product
// catalog, an auction window and the bids placed on each product.
//
// Every operation is applied under a single lock and checks all of its
// preconditions before writing anything, so a failed call leaves no trace.
type Ledger struct {
	mu sync.Mutex

	owner          Identity
	clock          Clock
	enforceReserve bool

	allowedBuyers map[Identity]struct{}

	window    AuctionWindow
	windowSet bool

	products     map[int64]Product
	productKeys  []int64
	keySlots     map[int64]int // code -> index in productKeys, live products only
	liveProducts int

	bids           map[bidKey]*BidRecord
	productBidders map[int64][]Identity // bidders per product in order of first bid
	sequence       uint64
}

// NewLedger creates an empty ledger owned by owner.
func NewLedger(owner Identity, opts ...Option) (*Ledger, error) {
	if owner == "" {
		return nil, fmt.Errorf("owner identity is required")
	}

	l := newLedger(owner)
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

func newLedger(owner Identity) *Ledger {
	return &Ledger{
		owner:          owner,
		clock:          defaultClock,
		allowedBuyers:  make(map[Identity]struct{}),
		products:       make(map[int64]Product),
		productKeys:    make([]int64, 0),
		keySlots:       make(map[int64]int),
		bids:           make(map[bidKey]*BidRecord),
		productBidders: make(map[int64][]Identity),
	}
}

// Owner returns the identity allowed to call privileged operations.
func (l *Ledger) Owner() Identity {
	return l.owner
}

// Authorize adds identity to the allowed buyers. Re-authorizing is a no-op.
func (l *Ledger) Authorize(caller, identity Identity) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if caller != l.owner {
		return fmt.Errorf("authorize: %w", ErrForbidden)
	}

	l.allowedBuyers[identity] = struct{}{}
	return nil
}

// IsAllowedBuyer reports whether identity may bid.
func (l *Ledger) IsAllowedBuyer(identity Identity) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, ok := l.allowedBuyers[identity]
	return ok
}

// SetAuctionTiming replaces the auction window.
func (l *Ledger) SetAuctionTiming(caller Identity, start, end time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if caller != l.owner {
		return fmt.Errorf("set auction timing: %w", ErrForbidden)
	}
	if end.Before(start) {
		return fmt.Errorf("set auction timing: end %s before start %s: %w",
			end.Format(time.RFC3339), start.Format(time.RFC3339), ErrInvalidWindow)
	}

	l.window = AuctionWindow{Start: start, End: end}
	l.windowSet = true
	return nil
}

// AuctionTiming returns the current window and whether one was ever set.
func (l *Ledger) AuctionTiming() (AuctionWindow, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.window, l.windowSet
}

// Phase evaluates the auction lifecycle at the current ledger time.
func (l *Ledger) Phase() Phase {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.phaseAt(l.clock.Now())
}

func (l *Ledger) phaseAt(now time.Time) Phase {
	switch {
	case !l.windowSet:
		return PhaseUnconfigured
	case l.window.Contains(now):
		return PhaseOpen
	case !now.Before(l.window.End):
		return PhaseClosed
	default:
		return PhaseTimingSet
	}
}

// Product adds, re-prices or removes a catalog entry.
//
// With remove unset the product is stored live at the given price; a product
// that was not live gets a new key slot. With remove set the entry and its key
// slot are zeroed in place, leaving the other slots where they are.
func (l *Ledger) Product(caller Identity, code int64, price decimal.Decimal, remove bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if caller != l.owner {
		return fmt.Errorf("product: %w", ErrForbidden)
	}
	if code <= 0 {
		return fmt.Errorf("product %d: %w", code, ErrInvalidProductCode)
	}

	existing := l.products[code]

	if remove {
		if !existing.IsLive {
			return fmt.Errorf("remove product %d: %w", code, ErrProductNotLive)
		}
		l.products[code] = Product{}
		if slot, ok := l.keySlots[code]; ok {
			l.productKeys[slot] = 0
			delete(l.keySlots, code)
		}
		l.liveProducts--
		return nil
	}

	if !isWholeNonNegative(price) {
		return fmt.Errorf("product %d price %s: %w", code, price.String(), ErrInvalidPrice)
	}

	if !existing.IsLive {
		l.keySlots[code] = len(l.productKeys)
		l.productKeys = append(l.productKeys, code)
		l.liveProducts++
	}
	l.products[code] = Product{Code: code, Price: price, IsLive: true}
	return nil
}

// LookupProduct returns the catalog entry stored for code, or the zero Product.
func (l *Ledger) LookupProduct(code int64) Product {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.products[code]
}

// LiveProductsCount returns the number of live catalog entries.
func (l *Ledger) LiveProductsCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.liveProducts
}

// ProductKey returns the code stored in key slot index. Slots of removed
// products read 0.
func (l *Ledger) ProductKey(index int) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if index < 0 || index >= len(l.productKeys) {
		return 0, fmt.Errorf("product key %d of %d: %w", index, len(l.productKeys), ErrIndexOutOfRange)
	}
	return l.productKeys[index], nil
}

// ProductKeysLen returns the number of key slots, including zeroed ones.
func (l *Ledger) ProductKeysLen() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.productKeys)
}

// Bid records caller's bid of amount on the product, replacing any earlier bid
// by the same caller on that product.
func (l *Ledger) Bid(caller Identity, code int64, amount decimal.Decimal) (*BidReceipt, error) {
	// Nonce generation is the only step that can fail for reasons outside the
	// ledger, so it happens before the lock and before any write.
	nonce, err := generateNonce()
	if err != nil {
		return nil, fmt.Errorf("bid: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.allowedBuyers[caller]; !ok {
		return nil, fmt.Errorf("bid: %w", ErrNotAuthorized)
	}

	now := l.clock.Now()
	switch l.phaseAt(now) {
	case PhaseUnconfigured, PhaseTimingSet:
		return nil, fmt.Errorf("bid: %w", ErrNotStarted)
	case PhaseClosed:
		return nil, fmt.Errorf("bid: %w", ErrAlreadyClosed)
	}

	if code <= 0 {
		return nil, fmt.Errorf("bid on product %d: %w", code, ErrInvalidProductCode)
	}
	if !l.products[code].IsLive {
		return nil, fmt.Errorf("bid on product %d: %w", code, ErrProductNotLive)
	}
	if !isWholeNonNegative(amount) {
		return nil, fmt.Errorf("bid amount %s: %w", amount.String(), ErrInvalidAmount)
	}

	l.sequence++
	key := bidKey{productCode: code, bidder: caller}
	if _, exists := l.bids[key]; !exists {
		l.productBidders[code] = append(l.productBidders[code], caller)
	}
	l.bids[key] = &BidRecord{
		ProductCode: code,
		Bidder:      caller,
		Amount:      amount,
		Sequence:    l.sequence,
		PlacedAt:    now,
	}

	return &BidReceipt{
		ID:          uuid.New().String(),
		ProductCode: code,
		Bidder:      caller,
		Amount:      amount,
		Sequence:    l.sequence,
		PlacedAt:    now,
		Nonce:       nonce,
		Hash:        ComputeBidHash(code, caller, amount.String(), nonce),
	}, nil
}

// CurrentBid returns the latest bid of identity on the product.
func (l *Ledger) CurrentBid(code int64, identity Identity) (decimal.Decimal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	record, ok := l.bids[bidKey{productCode: code, bidder: identity}]
	if !ok {
		return decimal.Zero, fmt.Errorf("current bid of %s on product %d: %w", identity, code, ErrBidNotFound)
	}
	return record.Amount, nil
}

// HighestBid returns the highest amount bid on the product, zero if nobody bid.
func (l *Ledger) HighestBid(code int64) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()

	top := RankBids(l.productBids(code)).Top()
	if top == nil {
		return decimal.Zero
	}
	return top.Amount
}

// Ranking returns the full ranking of bids on the product.
func (l *Ledger) Ranking(code int64) *RankingResult {
	l.mu.Lock()
	defer l.mu.Unlock()
	return RankBids(l.productBids(code))
}

// productBids copies the bids on a product. Callers hold l.mu.
func (l *Ledger) productBids(code int64) []BidRecord {
	bidders := l.productBidders[code]
	bids := make([]BidRecord, 0, len(bidders))
	for _, bidder := range bidders {
		if record, ok := l.bids[bidKey{productCode: code, bidder: bidder}]; ok {
			bids = append(bids, *record)
		}
	}
	return bids
}

// SettlementResult is the outcome of an auction at a point in ledger time.
type SettlementResult struct {
	Winners   []WinningBid
	Unsold    []UnsoldProduct
	Phase     Phase
	SettledAt time.Time
}

// Settle derives the winner of every live product that received bids, in key
// slot order. It is owner-only but not gated on the auction having closed.
func (l *Ledger) Settle(caller Identity) (*SettlementResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if caller != l.owner {
		return nil, fmt.Errorf("winners: %w", ErrForbidden)
	}

	winners := make([]WinningBid, 0, l.liveProducts)
	for _, code := range l.productKeys {
		if code == 0 {
			continue
		}
		top := RankBids(l.productBids(code)).Top()
		if top == nil {
			continue
		}
		winners = append(winners, WinningBid{
			ProductCode: code,
			Amount:      top.Amount,
			Winner:      top.Bidder,
		})
	}

	unsold := make([]UnsoldProduct, 0)
	if l.enforceReserve {
		winners, unsold = EnforceReserve(winners, l.products)
	}

	now := l.clock.Now()
	return &SettlementResult{
		Winners:   winners,
		Unsold:    unsold,
		Phase:     l.phaseAt(now),
		SettledAt: now,
	}, nil
}

// Winners returns the winning bid of every live product that received bids.
func (l *Ledger) Winners(caller Identity) ([]WinningBid, error) {
	result, err := l.Settle(caller)
	if err != nil {
		return nil, err
	}
	return result.Winners, nil
}

// WinnersJSON returns the winners serialized as a JSON array of
// {"productCode", "amount", "winner"} objects. Amounts are decimal strings.
func (l *Ledger) WinnersJSON(caller Identity) (string, error) {
	winners, err := l.Winners(caller)
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(winners)
	if err != nil {
		return "", fmt.Errorf("failed to marshal winners: %w", err)
	}
	return string(data), nil
}

func isWholeNonNegative(d decimal.Decimal) bool {
	return !d.IsNegative() && d.Equal(d.Truncate(0))
}

func generateNonce() (string, error) {
	randomBytes := make([]byte, 16)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return hex.EncodeToString(randomBytes), nil
}
