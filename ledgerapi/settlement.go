package ledgerapi

import (
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/veraison/go-cose"

	"github.com/cloudx-io/auctionledger/core"
)

// SettlementContentType is the content type recorded in the protected header
// of a signed settlement.
const SettlementContentType = "application/json"

// Settlement is the signed statement of an auction outcome. WinnersHash commits
// to the ordered winners list under WinnersNonce (see core.ComputeWinnersHash).
type Settlement struct {
	SettlementID string               `json:"settlement_id"`
	Owner        string               `json:"owner"`
	Phase        string               `json:"phase"`
	Winners      []core.WinningBid    `json:"winners"`
	Unsold       []core.UnsoldProduct `json:"unsold"`
	WinnersHash  string               `json:"winners_hash"`
	WinnersNonce string               `json:"winners_nonce"`
	SettledAt    time.Time            `json:"settled_at"`
}

// SettlementCOSE holds raw COSE_Sign1 bytes of a signed settlement.
type SettlementCOSE []byte

// SettlementCOSEBase64 is SettlementCOSE in standard base64 for JSON transport.
type SettlementCOSEBase64 string

// NewSettlement builds a settlement document from a ledger settlement result,
// committing to the winners under a fresh random nonce.
func NewSettlement(id string, owner core.Identity, result *core.SettlementResult) (*Settlement, error) {
	if result == nil {
		return nil, fmt.Errorf("new settlement: nil result")
	}

	nonceBytes := make([]byte, 16)
	if _, err := rand.Read(nonceBytes); err != nil {
		return nil, fmt.Errorf("failed to generate winners nonce: %w", err)
	}
	nonce := hex.EncodeToString(nonceBytes)

	winners := result.Winners
	if winners == nil {
		winners = []core.WinningBid{}
	}
	unsold := result.Unsold
	if unsold == nil {
		unsold = []core.UnsoldProduct{}
	}

	return &Settlement{
		SettlementID: id,
		Owner:        string(owner),
		Phase:        result.Phase.String(),
		Winners:      winners,
		Unsold:       unsold,
		WinnersHash:  core.ComputeWinnersHash(winners, nonce),
		WinnersNonce: nonce,
		SettledAt:    result.SettledAt.UTC(),
	}, nil
}

// Sign wraps the JSON encoding of s in a COSE_Sign1 message signed with ES256.
func (s *Settlement) Sign(key *ecdsa.PrivateKey) (SettlementCOSE, error) {
	payload, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal settlement: %w", err)
	}

	signer, err := cose.NewSigner(cose.AlgorithmES256, key)
	if err != nil {
		return nil, fmt.Errorf("create signer: %w", err)
	}

	msg := cose.NewSign1Message()
	msg.Headers.Protected.SetAlgorithm(cose.AlgorithmES256)
	msg.Headers.Protected[cose.HeaderLabelContentType] = SettlementContentType
	msg.Payload = payload

	if err := msg.Sign(rand.Reader, nil, signer); err != nil {
		return nil, fmt.Errorf("sign settlement: %w", err)
	}

	coseBytes, err := msg.MarshalCBOR()
	if err != nil {
		return nil, fmt.Errorf("marshal COSE_Sign1: %w", err)
	}
	return SettlementCOSE(coseBytes), nil
}

// Verify checks the ES256 signature against publicKey and returns the signed
// settlement.
func (c SettlementCOSE) Verify(publicKey *ecdsa.PublicKey) (*Settlement, error) {
	var msg cose.Sign1Message
	if err := msg.UnmarshalCBOR(c); err != nil {
		return nil, fmt.Errorf("parse COSE_Sign1: %w", err)
	}

	verifier, err := cose.NewVerifier(cose.AlgorithmES256, publicKey)
	if err != nil {
		return nil, fmt.Errorf("create verifier: %w", err)
	}
	if err := msg.Verify(nil, verifier); err != nil {
		return nil, fmt.Errorf("COSE signature verification failed: %w", err)
	}

	return parseSettlementPayload(msg.Payload)
}

// Payload extracts the settlement from the COSE_Sign1 structure without
// checking the signature.
// COSE_Sign1 structure: [protected, unprotected, payload, signature]
func (c SettlementCOSE) Payload() (*Settlement, error) {
	var decoded any
	if err := cbor.Unmarshal(c, &decoded); err != nil {
		return nil, fmt.Errorf("parse COSE array: %w", err)
	}
	// go-cose emits the tagged form (tag 18); accept both
	if tag, ok := decoded.(cbor.Tag); ok {
		decoded = tag.Content
	}

	coseArray, ok := decoded.([]any)
	if !ok {
		return nil, fmt.Errorf("invalid COSE_Sign1 structure: not an array")
	}

	if len(coseArray) != 4 {
		return nil, fmt.Errorf("invalid COSE_Sign1 structure: expected 4 elements, got %d", len(coseArray))
	}

	payload, ok := coseArray[2].([]byte)
	if !ok {
		return nil, fmt.Errorf("invalid payload in COSE structure")
	}

	return parseSettlementPayload(payload)
}

func parseSettlementPayload(payload []byte) (*Settlement, error) {
	var settlement Settlement
	if err := json.Unmarshal(payload, &settlement); err != nil {
		return nil, fmt.Errorf("parse settlement payload: %w", err)
	}
	return &settlement, nil
}

// EncodeBase64 encodes raw COSE bytes for JSON transport.
func (c SettlementCOSE) EncodeBase64() SettlementCOSEBase64 {
	return SettlementCOSEBase64(encodeBase64(c))
}

// Decode decodes base64 to raw COSE bytes.
func (b SettlementCOSEBase64) Decode() (SettlementCOSE, error) {
	data, err := decodeBase64(string(b), "COSE")
	if err != nil {
		return nil, err
	}
	return SettlementCOSE(data), nil
}

// String returns the string representation
func (b SettlementCOSEBase64) String() string {
	return string(b)
}
