package ledgerapi

import (
	"time"

	"github.com/cloudx-io/auctionledger/core"
)

// Request types understood by the ledger daemon.
const (
	TypePing              = "ping"
	TypeAuthorize         = "authorize"
	TypeSetAuctionTiming  = "set_auction_timing"
	TypeProduct           = "product"
	TypeBid               = "bid"
	TypeGetCurrentBid     = "get_current_bids"
	TypeGetHighestBid     = "get_highest_bid"
	TypeGetWinners        = "get_winners"
	TypeGetProduct        = "get_product"
	TypeGetProductKey     = "get_product_key"
	TypeLiveProductsCount = "live_products_count"
	TypeIsAllowedBuyer    = "is_allowed_buyer"
	TypeGetSettlement     = "get_settlement"
	TypeGetSnapshot       = "get_snapshot"
	TypeGetPublicKey      = "get_public_key"
)

// Response types. Every request type answers with "<type>_response", except
// ping which answers "pong" and failures which answer "error".
const (
	TypePong  = "pong"
	TypeError = "error"
)

// ResponseType returns the response type paired with a request type.
func ResponseType(requestType string) string {
	if requestType == TypePing {
		return TypePong
	}
	return requestType + "_response"
}

// LedgerRequest is the single request envelope sent to the ledger daemon. Only
// the fields relevant to Type are read.
type LedgerRequest struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`

	// Caller is the identity the request acts as. Owner-only requests are
	// rejected with FORBIDDEN unless Caller is the ledger owner.
	Caller string `json:"caller,omitempty"`

	Identity    string    `json:"identity,omitempty"`     // authorize, get_current_bids, is_allowed_buyer
	ProductCode int64     `json:"product_code,omitempty"` // product, bid, get_* per product
	Price       string    `json:"price,omitempty"`        // product; decimal string in the smallest unit
	Remove      bool      `json:"remove,omitempty"`       // product
	Amount      string    `json:"amount,omitempty"`       // bid; decimal string in the smallest unit
	Start       time.Time `json:"start,omitzero"`         // set_auction_timing
	End         time.Time `json:"end,omitzero"`           // set_auction_timing
	Index       int       `json:"index,omitempty"`        // get_product_key
}

// LedgerResponse is the single response envelope returned by the ledger daemon.
type LedgerResponse struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`
	Success   bool   `json:"success"`

	// Code is the ledger error code (FORBIDDEN, BAD_PCODE, ...) on failure.
	// Empty for transport or decoding failures, which only set Message.
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`

	Receipt     *core.BidReceipt     `json:"receipt,omitempty"`
	Amount      string               `json:"amount,omitempty"`
	Winners     []core.WinningBid    `json:"winners,omitempty"`
	Product     *core.Product        `json:"product,omitempty"`
	ProductCode int64                `json:"product_code,omitempty"`
	Count       int                  `json:"count,omitempty"`
	Allowed     bool                 `json:"allowed,omitempty"`
	Settlement  SettlementCOSEBase64 `json:"settlement_cose_base64,omitempty"`
	Snapshot    SnapshotGzip         `json:"snapshot_gzip,omitempty"`
	PublicKey   string               `json:"public_key,omitempty"` // PEM format

	Phase          string `json:"phase,omitempty"`
	Timestamp      int64  `json:"timestamp,omitempty"`
	ProcessingTime int64  `json:"processing_time_ms"`
}
