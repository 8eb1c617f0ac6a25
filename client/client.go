// Package client talks to a ledger daemon over TCP or vsock. Ledger errors
// returned by the daemon are mapped back onto the core sentinel errors, so
// callers can match them with errors.Is.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/mdlayher/vsock"
	"github.com/shopspring/decimal"

	"github.com/cloudx-io/auctionledger/core"
	"github.com/cloudx-io/auctionledger/ledgerapi"
)

// ErrRequestFailed is returned for unsuccessful responses that carry no
// ledger error code.
var ErrRequestFailed = errors.New("ledger request failed")

// Dialer opens one connection per request.
type Dialer interface {
	DialContext(ctx context.Context) (net.Conn, error)
}

// TCPDialer dials a TCP address.
type TCPDialer struct {
	Addr string
}

func (d TCPDialer) DialContext(ctx context.Context) (net.Conn, error) {
	var dialer net.Dialer
	return dialer.DialContext(ctx, "tcp", d.Addr)
}

// VsockDialer dials a vsock context ID and port.
type VsockDialer struct {
	ContextID uint32
	Port      uint32
}

func (d VsockDialer) DialContext(ctx context.Context) (net.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return vsock.Dial(d.ContextID, d.Port, nil)
}

// Client issues ledger requests as a fixed caller identity.
type Client struct {
	dialer  Dialer
	caller  core.Identity
	timeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout bounds each request round trip. The default is 30 seconds.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// New creates a client that acts as caller.
func New(dialer Dialer, caller core.Identity, opts ...Option) *Client {
	c := &Client{
		dialer:  dialer,
		caller:  caller,
		timeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// As returns a client sharing the same transport that acts as caller.
func (c *Client) As(caller core.Identity) *Client {
	clone := *c
	clone.caller = caller
	return &clone
}

// Caller returns the identity requests are sent as.
func (c *Client) Caller() core.Identity {
	return c.caller
}

func (c *Client) do(ctx context.Context, req ledgerapi.LedgerRequest) (*ledgerapi.LedgerResponse, error) {
	req.Caller = string(c.caller)
	req.RequestID = uuid.New().String()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	conn, err := c.dialer.DialContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ledger: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return nil, fmt.Errorf("failed to send %s request: %w", req.Type, err)
	}

	var resp ledgerapi.LedgerResponse
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", req.Type, err)
	}

	if !resp.Success {
		if ledgerErr := core.ErrorFromCode(resp.Code); ledgerErr != nil {
			return &resp, fmt.Errorf("%s: %w", req.Type, ledgerErr)
		}
		return &resp, fmt.Errorf("%s: %s: %w", req.Type, resp.Message, ErrRequestFailed)
	}
	return &resp, nil
}

// Ping checks that the daemon is up and returns the current auction phase.
func (c *Client) Ping(ctx context.Context) (string, error) {
	resp, err := c.do(ctx, ledgerapi.LedgerRequest{Type: ledgerapi.TypePing})
	if err != nil {
		return "", err
	}
	return resp.Phase, nil
}

// Authorize adds identity to the allowed buyers.
func (c *Client) Authorize(ctx context.Context, identity core.Identity) error {
	_, err := c.do(ctx, ledgerapi.LedgerRequest{Type: ledgerapi.TypeAuthorize, Identity: string(identity)})
	return err
}

// SetAuctionTiming replaces the auction window.
func (c *Client) SetAuctionTiming(ctx context.Context, start, end time.Time) error {
	_, err := c.do(ctx, ledgerapi.LedgerRequest{Type: ledgerapi.TypeSetAuctionTiming, Start: start, End: end})
	return err
}

// Product adds, re-prices or removes a catalog entry.
func (c *Client) Product(ctx context.Context, code int64, price decimal.Decimal, remove bool) error {
	_, err := c.do(ctx, ledgerapi.LedgerRequest{
		Type:        ledgerapi.TypeProduct,
		ProductCode: code,
		Price:       price.String(),
		Remove:      remove,
	})
	return err
}

// Bid places or replaces the caller's bid on a product.
func (c *Client) Bid(ctx context.Context, code int64, amount decimal.Decimal) (*core.BidReceipt, error) {
	resp, err := c.do(ctx, ledgerapi.LedgerRequest{
		Type:        ledgerapi.TypeBid,
		ProductCode: code,
		Amount:      amount.String(),
	})
	if err != nil {
		return nil, err
	}
	if resp.Receipt == nil {
		return nil, fmt.Errorf("bid: response without receipt: %w", ErrRequestFailed)
	}
	return resp.Receipt, nil
}

// CurrentBid returns the latest bid of identity on a product.
func (c *Client) CurrentBid(ctx context.Context, code int64, identity core.Identity) (decimal.Decimal, error) {
	resp, err := c.do(ctx, ledgerapi.LedgerRequest{
		Type:        ledgerapi.TypeGetCurrentBid,
		ProductCode: code,
		Identity:    string(identity),
	})
	if err != nil {
		return decimal.Zero, err
	}
	return parseAmount(resp.Amount)
}

// HighestBid returns the highest bid on a product, zero if nobody bid.
func (c *Client) HighestBid(ctx context.Context, code int64) (decimal.Decimal, error) {
	resp, err := c.do(ctx, ledgerapi.LedgerRequest{Type: ledgerapi.TypeGetHighestBid, ProductCode: code})
	if err != nil {
		return decimal.Zero, err
	}
	return parseAmount(resp.Amount)
}

// Winners returns the winning bid of every live product with bids.
func (c *Client) Winners(ctx context.Context) ([]core.WinningBid, error) {
	resp, err := c.do(ctx, ledgerapi.LedgerRequest{Type: ledgerapi.TypeGetWinners})
	if err != nil {
		return nil, err
	}
	if resp.Winners == nil {
		return []core.WinningBid{}, nil
	}
	return resp.Winners, nil
}

// WinnersJSON returns the winners as the JSON array the ledger exposes.
func (c *Client) WinnersJSON(ctx context.Context) (string, error) {
	winners, err := c.Winners(ctx)
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(winners)
	if err != nil {
		return "", fmt.Errorf("failed to marshal winners: %w", err)
	}
	return string(data), nil
}

// LookupProduct returns the catalog entry for code, the zero Product if absent.
func (c *Client) LookupProduct(ctx context.Context, code int64) (core.Product, error) {
	resp, err := c.do(ctx, ledgerapi.LedgerRequest{Type: ledgerapi.TypeGetProduct, ProductCode: code})
	if err != nil {
		return core.Product{}, err
	}
	if resp.Product == nil {
		return core.Product{}, nil
	}
	return *resp.Product, nil
}

// ProductKey returns the code stored in key slot index.
func (c *Client) ProductKey(ctx context.Context, index int) (int64, error) {
	resp, err := c.do(ctx, ledgerapi.LedgerRequest{Type: ledgerapi.TypeGetProductKey, Index: index})
	if err != nil {
		return 0, err
	}
	return resp.ProductCode, nil
}

// LiveProductsCount returns the number of live products.
func (c *Client) LiveProductsCount(ctx context.Context) (int, error) {
	resp, err := c.do(ctx, ledgerapi.LedgerRequest{Type: ledgerapi.TypeLiveProductsCount})
	if err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// IsAllowedBuyer reports whether identity may bid.
func (c *Client) IsAllowedBuyer(ctx context.Context, identity core.Identity) (bool, error) {
	resp, err := c.do(ctx, ledgerapi.LedgerRequest{Type: ledgerapi.TypeIsAllowedBuyer, Identity: string(identity)})
	if err != nil {
		return false, err
	}
	return resp.Allowed, nil
}

// Settlement fetches a freshly signed settlement.
func (c *Client) Settlement(ctx context.Context) (ledgerapi.SettlementCOSE, error) {
	resp, err := c.do(ctx, ledgerapi.LedgerRequest{Type: ledgerapi.TypeGetSettlement})
	if err != nil {
		return nil, err
	}
	return resp.Settlement.Decode()
}

// Snapshot fetches the full ledger state.
func (c *Client) Snapshot(ctx context.Context) (*core.Snapshot, error) {
	resp, err := c.do(ctx, ledgerapi.LedgerRequest{Type: ledgerapi.TypeGetSnapshot})
	if err != nil {
		return nil, err
	}
	encoded, err := resp.Snapshot.Decompress()
	if err != nil {
		return nil, err
	}
	return encoded.Decode()
}

// PublicKeyPEM returns the PEM public key settlements are signed with.
func (c *Client) PublicKeyPEM(ctx context.Context) (string, error) {
	resp, err := c.do(ctx, ledgerapi.LedgerRequest{Type: ledgerapi.TypeGetPublicKey})
	if err != nil {
		return "", err
	}
	return resp.PublicKey, nil
}

func parseAmount(value string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q in response: %w", value, err)
	}
	return amount, nil
}
