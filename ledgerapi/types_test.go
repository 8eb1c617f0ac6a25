package ledgerapi

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"

	"github.com/cloudx-io/auctionledger/core"
)

func testSnapshot() *core.Snapshot {
	return &core.Snapshot{
		Owner:         "0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266",
		AllowedBuyers: []string{"0x3c44cdddb6a900fa2b585dd299e03d12fa4293bc", "0x90f79bf6eb2c4f870365e785982e1f101e93b906"},
		WindowSet:     true,
		WindowStart:   core.SnapshotTime{Seconds: 1_700_000_000},
		WindowEnd:     core.SnapshotTime{Seconds: 1_700_086_400},
		Products: []core.ProductEntry{
			{Key: 1, Code: 1, Price: "1000", IsLive: true},
			{Key: 2, Code: 0, Price: "0", IsLive: false},
		},
		ProductKeys:       []int64{1, 0},
		LiveProductsCount: 1,
		Bids: []core.SnapshotBid{
			{ProductCode: 1, Bidder: "0x3c44cdddb6a900fa2b585dd299e03d12fa4293bc", Amount: "990000000000000000", Sequence: 2, PlacedAt: core.SnapshotTime{Seconds: 1_700_000_100}},
			{ProductCode: 1, Bidder: "0x90f79bf6eb2c4f870365e785982e1f101e93b906", Amount: "2000000000000000000", Sequence: 3, PlacedAt: core.SnapshotTime{Seconds: 1_700_000_200, Nanos: 5}},
		},
		Sequence: 3,
		TakenAt:  core.SnapshotTime{Seconds: 1_700_000_300},
		Options:  core.SnapshotOptions{EnforceReserve: true},
	}
}

func TestResponseType(t *testing.T) {
	check.Equal(t, TypePong, ResponseType(TypePing))
	check.Equal(t, "bid_response", ResponseType(TypeBid))
	check.Equal(t, "get_winners_response", ResponseType(TypeGetWinners))
}

func TestLedgerRequest_JSON(t *testing.T) {
	start := time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC)
	req := LedgerRequest{
		Type:   TypeSetAuctionTiming,
		Caller: "0xowner",
		Start:  start,
		End:    start.Add(24 * time.Hour),
	}

	data, err := json.Marshal(req)
	assert.NoError(t, err)

	body := string(data)
	check.True(t, strings.Contains(body, `"type":"set_auction_timing"`))
	check.True(t, strings.Contains(body, `"start":"2023-11-14T22:13:20Z"`))
	check.False(t, strings.Contains(body, `"amount"`))
	check.False(t, strings.Contains(body, `"remove"`))

	var decoded LedgerRequest
	assert.NoError(t, json.Unmarshal(data, &decoded))
	check.True(t, decoded.Start.Equal(req.Start))
	check.True(t, decoded.End.Equal(req.End))
}

func TestLedgerRequest_OmitsZeroTimes(t *testing.T) {
	data, err := json.Marshal(LedgerRequest{Type: TypeBid, ProductCode: 1, Amount: "5"})
	assert.NoError(t, err)

	check.False(t, strings.Contains(string(data), `"start"`))
	check.False(t, strings.Contains(string(data), `"end"`))
}

func TestLedgerResponse_WinnersAmountsAreStrings(t *testing.T) {
	resp := LedgerResponse{
		Type:    ResponseType(TypeGetWinners),
		Success: true,
		Winners: []core.WinningBid{
			{ProductCode: 1, Amount: decimal.RequireFromString("2000000000000000000"), Winner: "0xb"},
		},
	}

	data, err := json.Marshal(resp)
	assert.NoError(t, err)
	check.True(t, strings.Contains(string(data),
		`"winners":[{"productCode":1,"amount":"2000000000000000000","winner":"0xb"}]`))

	var decoded LedgerResponse
	assert.NoError(t, json.Unmarshal(data, &decoded))
	check.Equal(t, 1, len(decoded.Winners))
	check.True(t, decoded.Winners[0].Amount.Equal(resp.Winners[0].Amount))
}

func TestLedgerResponse_ErrorShape(t *testing.T) {
	resp := LedgerResponse{
		Type:    TypeError,
		Success: false,
		Code:    core.ErrorCode(core.ErrForbidden),
		Message: "authorize: FORBIDDEN",
	}

	data, err := json.Marshal(resp)
	assert.NoError(t, err)
	body := string(data)
	check.True(t, strings.Contains(body, `"success":false`))
	check.True(t, strings.Contains(body, `"code":"FORBIDDEN"`))
	check.False(t, strings.Contains(body, `"receipt"`))
}
