package ledgerapi

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"strings"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"

	"github.com/cloudx-io/auctionledger/core"
)

func generateTestKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	assert.NoError(t, err)
	return key
}

func testSettlementResult() *core.SettlementResult {
	return &core.SettlementResult{
		Winners: []core.WinningBid{
			{ProductCode: 1, Amount: decimal.RequireFromString("2000000000000000000"), Winner: "0x90f79bf6eb2c4f870365e785982e1f101e93b906"},
			{ProductCode: 3, Amount: decimal.NewFromInt(42), Winner: "0x3c44cdddb6a900fa2b585dd299e03d12fa4293bc"},
		},
		Phase:     core.PhaseClosed,
		SettledAt: time.Unix(1_700_086_400, 0),
	}
}

func TestNewSettlement(t *testing.T) {
	settlement, err := NewSettlement("settlement-1", "0xowner", testSettlementResult())
	assert.NoError(t, err)

	check.Equal(t, "settlement-1", settlement.SettlementID)
	check.Equal(t, "0xowner", settlement.Owner)
	check.Equal(t, "closed", settlement.Phase)
	check.Equal(t, 2, len(settlement.Winners))
	check.NotNil(t, settlement.Unsold)
	check.Equal(t, 0, len(settlement.Unsold))
	check.Equal(t, 32, len(settlement.WinnersNonce))
	check.Equal(t, core.ComputeWinnersHash(settlement.Winners, settlement.WinnersNonce), settlement.WinnersHash)
}

func TestNewSettlement_NilResult(t *testing.T) {
	settlement, err := NewSettlement("id", "0xowner", nil)
	check.Error(t, err)
	check.Nil(t, settlement)
}

func TestSettlement_SignAndVerify(t *testing.T) {
	key := generateTestKey(t)
	settlement, err := NewSettlement("settlement-1", "0xowner", testSettlementResult())
	assert.NoError(t, err)

	coseBytes, err := settlement.Sign(key)
	assert.NoError(t, err)
	check.True(t, len(coseBytes) > 0)

	verified, err := coseBytes.Verify(&key.PublicKey)
	assert.NoError(t, err)

	check.Equal(t, settlement.SettlementID, verified.SettlementID)
	check.Equal(t, settlement.WinnersHash, verified.WinnersHash)
	check.Equal(t, 2, len(verified.Winners))
	check.Equal(t, "2000000000000000000", verified.Winners[0].Amount.String())
	check.Equal(t, settlement.Winners[0].Winner, verified.Winners[0].Winner)
	check.True(t, settlement.SettledAt.Equal(verified.SettledAt))
}

func TestSettlement_VerifyWrongKey(t *testing.T) {
	key := generateTestKey(t)
	other := generateTestKey(t)
	settlement, err := NewSettlement("settlement-1", "0xowner", testSettlementResult())
	assert.NoError(t, err)

	coseBytes, err := settlement.Sign(key)
	assert.NoError(t, err)

	verified, err := coseBytes.Verify(&other.PublicKey)
	check.Error(t, err)
	check.Nil(t, verified)
	check.True(t, strings.Contains(err.Error(), "COSE signature verification failed"))
}

func TestSettlement_VerifyTampered(t *testing.T) {
	key := generateTestKey(t)
	settlement, err := NewSettlement("settlement-1", "0xowner", testSettlementResult())
	assert.NoError(t, err)

	coseBytes, err := settlement.Sign(key)
	assert.NoError(t, err)

	// Flip a byte inside the payload ("2000..." -> "3000...")
	tampered := append(SettlementCOSE{}, coseBytes...)
	idx := strings.Index(string(tampered), "2000000000000000000")
	assert.True(t, idx > 0)
	tampered[idx] = '3'

	verified, err := tampered.Verify(&key.PublicKey)
	check.Error(t, err)
	check.Nil(t, verified)

	// The payload is still readable without verification
	unverified, err := tampered.Payload()
	assert.NoError(t, err)
	check.Equal(t, "3000000000000000000", unverified.Winners[0].Amount.String())
}

func TestSettlementCOSE_Payload(t *testing.T) {
	key := generateTestKey(t)
	settlement, err := NewSettlement("settlement-2", "0xowner", testSettlementResult())
	assert.NoError(t, err)

	coseBytes, err := settlement.Sign(key)
	assert.NoError(t, err)

	payload, err := coseBytes.Payload()
	assert.NoError(t, err)
	check.Equal(t, "settlement-2", payload.SettlementID)
}

func TestSettlementCOSE_PayloadInvalid(t *testing.T) {
	tests := []struct {
		name      string
		input     SettlementCOSE
		errSubstr string
	}{
		{"not CBOR", SettlementCOSE{0xff, 0xff}, "parse COSE array"},
		{"wrong element count", SettlementCOSE{0x82, 0x01, 0x02}, "expected 4 elements"},
		{"not an array", SettlementCOSE{0x01}, "not an array"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := tt.input.Payload()
			check.Error(t, err)
			check.Nil(t, result)
			check.True(t, strings.Contains(err.Error(), tt.errSubstr))
		})
	}
}

func TestSettlementCOSE_Base64RoundTrip(t *testing.T) {
	coseBytes := SettlementCOSE([]byte("mock-cose-settlement-data"))

	encoded := coseBytes.EncodeBase64()
	check.NotEqual(t, "", encoded.String())

	decoded, err := encoded.Decode()
	check.Nil(t, err)
	check.Equal(t, coseBytes, decoded)
}

func TestSettlementCOSEBase64_DecodeInvalid(t *testing.T) {
	decoded, err := SettlementCOSEBase64("not-valid-base64!!!@@@").Decode()
	check.Error(t, err)
	check.Nil(t, decoded)
	check.True(t, strings.Contains(err.Error(), "decode COSE base64"))
}

func TestPublicKeyPEM_RoundTrip(t *testing.T) {
	key := generateTestKey(t)

	publicKeyPEM, err := MarshalPublicKeyPEM(&key.PublicKey)
	assert.NoError(t, err)
	check.True(t, strings.HasPrefix(publicKeyPEM, "-----BEGIN PUBLIC KEY-----"))

	parsed, err := ParsePublicKeyPEM(publicKeyPEM)
	assert.NoError(t, err)
	check.True(t, key.PublicKey.Equal(parsed))
}

func TestParsePublicKeyPEM_Invalid(t *testing.T) {
	p384, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	assert.NoError(t, err)
	p384PEM, err := MarshalPublicKeyPEM(&p384.PublicKey)
	assert.NoError(t, err)

	tests := []struct {
		name      string
		input     string
		errSubstr string
	}{
		{"empty", "", "failed to decode PEM block"},
		{"garbage body", "-----BEGIN PUBLIC KEY-----\nAAAA\n-----END PUBLIC KEY-----\n", "failed to parse public key"},
		{"wrong curve", p384PEM, "is not P-256"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, err := ParsePublicKeyPEM(tt.input)
			check.Error(t, err)
			check.Nil(t, parsed)
			check.True(t, strings.Contains(err.Error(), tt.errSubstr))
		})
	}
}
