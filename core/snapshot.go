package core

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Snapshot is a plain-data copy of the whole ledger state. Amounts are decimal
// strings and times are SnapshotTime values so any encoder can carry it.
type Snapshot struct {
	Owner             string          `json:"owner" cbor:"owner"`
	AllowedBuyers     []string        `json:"allowed_buyers" cbor:"allowed_buyers"`
	WindowSet         bool            `json:"window_set" cbor:"window_set"`
	WindowStart       SnapshotTime    `json:"window_start" cbor:"window_start"`
	WindowEnd         SnapshotTime    `json:"window_end" cbor:"window_end"`
	Products          []ProductEntry  `json:"products" cbor:"products"`
	ProductKeys       []int64         `json:"product_keys" cbor:"product_keys"`
	LiveProductsCount int             `json:"live_products_count" cbor:"live_products_count"`
	Bids              []SnapshotBid   `json:"bids" cbor:"bids"`
	Sequence          uint64          `json:"sequence" cbor:"sequence"`
	TakenAt           SnapshotTime    `json:"taken_at" cbor:"taken_at"`
	Options           SnapshotOptions `json:"options" cbor:"options"`
}

// SnapshotOptions records ledger options that change derived results.
type SnapshotOptions struct {
	EnforceReserve bool `json:"enforce_reserve" cbor:"enforce_reserve"`
}

// ProductEntry is one catalog map entry. Key is the map key; a removed product
// keeps its key with zeroed fields.
type ProductEntry struct {
	Key    int64  `json:"key" cbor:"key"`
	Code   int64  `json:"code" cbor:"code"`
	Price  string `json:"price" cbor:"price"`
	IsLive bool   `json:"is_live" cbor:"is_live"`
}

// SnapshotBid is one stored bid.
type SnapshotBid struct {
	ProductCode int64        `json:"product_code" cbor:"product_code"`
	Bidder      string       `json:"bidder" cbor:"bidder"`
	Amount      string       `json:"amount" cbor:"amount"`
	Sequence    uint64       `json:"sequence" cbor:"sequence"`
	PlacedAt    SnapshotTime `json:"placed_at" cbor:"placed_at"`
}

// SnapshotTime is an instant as Unix seconds plus a nanosecond remainder. It
// covers the full time.Time range, unlike a single nanosecond count.
type SnapshotTime struct {
	Seconds int64 `json:"seconds" cbor:"seconds"`
	Nanos   int32 `json:"nanos" cbor:"nanos"`
}

// NewSnapshotTime converts t to a SnapshotTime.
func NewSnapshotTime(t time.Time) SnapshotTime {
	return SnapshotTime{Seconds: t.Unix(), Nanos: int32(t.Nanosecond())}
}

// Time converts s back to a time.Time.
func (s SnapshotTime) Time() time.Time {
	return time.Unix(s.Seconds, int64(s.Nanos))
}

func (s SnapshotTime) valid() bool {
	return s.Nanos >= 0 && s.Nanos < int32(time.Second)
}

// Snapshot copies the ledger state. Slices are sorted so equal ledgers produce
// equal snapshots.
func (l *Ledger) Snapshot() *Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	snap := &Snapshot{
		Owner:             string(l.owner),
		AllowedBuyers:     make([]string, 0, len(l.allowedBuyers)),
		WindowSet:         l.windowSet,
		Products:          make([]ProductEntry, 0, len(l.products)),
		ProductKeys:       append([]int64{}, l.productKeys...),
		LiveProductsCount: l.liveProducts,
		Bids:              make([]SnapshotBid, 0, len(l.bids)),
		Sequence:          l.sequence,
		TakenAt:           NewSnapshotTime(l.clock.Now()),
		Options:           SnapshotOptions{EnforceReserve: l.enforceReserve},
	}

	if l.windowSet {
		snap.WindowStart = NewSnapshotTime(l.window.Start)
		snap.WindowEnd = NewSnapshotTime(l.window.End)
	}

	for buyer := range l.allowedBuyers {
		snap.AllowedBuyers = append(snap.AllowedBuyers, string(buyer))
	}
	sort.Strings(snap.AllowedBuyers)

	for key, product := range l.products {
		snap.Products = append(snap.Products, ProductEntry{
			Key:    key,
			Code:   product.Code,
			Price:  product.Price.String(),
			IsLive: product.IsLive,
		})
	}
	sort.Slice(snap.Products, func(i, j int) bool { return snap.Products[i].Key < snap.Products[j].Key })

	for _, record := range l.bids {
		snap.Bids = append(snap.Bids, SnapshotBid{
			ProductCode: record.ProductCode,
			Bidder:      string(record.Bidder),
			Amount:      record.Amount.String(),
			Sequence:    record.Sequence,
			PlacedAt:    NewSnapshotTime(record.PlacedAt),
		})
	}
	sort.Slice(snap.Bids, func(i, j int) bool { return snap.Bids[i].Sequence < snap.Bids[j].Sequence })

	return snap
}

// Restore rebuilds a ledger from a snapshot. Options given here override the
// options recorded in the snapshot.
func Restore(snap *Snapshot, opts ...Option) (*Ledger, error) {
	if snap == nil {
		return nil, fmt.Errorf("invalid snapshot: nil")
	}
	if snap.Owner == "" {
		return nil, fmt.Errorf("invalid snapshot: owner identity is required")
	}

	l := newLedger(Identity(snap.Owner))
	l.enforceReserve = snap.Options.EnforceReserve
	for _, opt := range opts {
		opt(l)
	}

	for _, buyer := range snap.AllowedBuyers {
		l.allowedBuyers[Identity(buyer)] = struct{}{}
	}

	if snap.WindowSet {
		if !snap.WindowStart.valid() || !snap.WindowEnd.valid() {
			return nil, fmt.Errorf("invalid snapshot: window time out of range")
		}
		l.windowSet = true
		l.window = AuctionWindow{
			Start: snap.WindowStart.Time(),
			End:   snap.WindowEnd.Time(),
		}
		if l.window.End.Before(l.window.Start) {
			return nil, fmt.Errorf("invalid snapshot: window ends before it starts")
		}
	}

	for _, entry := range snap.Products {
		price, err := decimal.NewFromString(entry.Price)
		if err != nil {
			return nil, fmt.Errorf("invalid snapshot: product %d price %q: %w", entry.Key, entry.Price, err)
		}
		if entry.IsLive && entry.Code != entry.Key {
			return nil, fmt.Errorf("invalid snapshot: product %d stored under key %d", entry.Code, entry.Key)
		}
		if !entry.IsLive && (entry.Code != 0 || !price.IsZero()) {
			return nil, fmt.Errorf("invalid snapshot: removed product %d has non-zero fields", entry.Key)
		}
		if _, dup := l.products[entry.Key]; dup {
			return nil, fmt.Errorf("invalid snapshot: duplicate product %d", entry.Key)
		}
		l.products[entry.Key] = Product{Code: entry.Code, Price: price, IsLive: entry.IsLive}
	}

	l.productKeys = append(l.productKeys, snap.ProductKeys...)
	for slot, code := range l.productKeys {
		if code == 0 {
			continue
		}
		if !l.products[code].IsLive {
			return nil, fmt.Errorf("invalid snapshot: key slot %d holds product %d which is not live", slot, code)
		}
		if _, dup := l.keySlots[code]; dup {
			return nil, fmt.Errorf("invalid snapshot: product %d occupies more than one key slot", code)
		}
		l.keySlots[code] = slot
	}
	for key, product := range l.products {
		if _, ok := l.keySlots[key]; product.IsLive && !ok {
			return nil, fmt.Errorf("invalid snapshot: live product %d has no key slot", key)
		}
	}
	l.liveProducts = len(l.keySlots)
	if l.liveProducts != snap.LiveProductsCount {
		return nil, fmt.Errorf("invalid snapshot: live products count %d does not match %d live key slots",
			snap.LiveProductsCount, l.liveProducts)
	}

	bids := append([]SnapshotBid{}, snap.Bids...)
	sort.Slice(bids, func(i, j int) bool { return bids[i].Sequence < bids[j].Sequence })
	for _, bid := range bids {
		amount, err := decimal.NewFromString(bid.Amount)
		if err != nil {
			return nil, fmt.Errorf("invalid snapshot: bid %d amount %q: %w", bid.Sequence, bid.Amount, err)
		}
		if !bid.PlacedAt.valid() {
			return nil, fmt.Errorf("invalid snapshot: bid %d time out of range", bid.Sequence)
		}
		if bid.Sequence > snap.Sequence {
			return nil, fmt.Errorf("invalid snapshot: bid sequence %d beyond ledger sequence %d", bid.Sequence, snap.Sequence)
		}
		bidder := Identity(bid.Bidder)
		key := bidKey{productCode: bid.ProductCode, bidder: bidder}
		if _, exists := l.bids[key]; exists {
			return nil, fmt.Errorf("invalid snapshot: duplicate bid of %s on product %d", bidder, bid.ProductCode)
		}
		l.productBidders[bid.ProductCode] = append(l.productBidders[bid.ProductCode], bidder)
		l.bids[key] = &BidRecord{
			ProductCode: bid.ProductCode,
			Bidder:      bidder,
			Amount:      amount,
			Sequence:    bid.Sequence,
			PlacedAt:    bid.PlacedAt.Time(),
		}
	}
	l.sequence = snap.Sequence

	return l, nil
}
