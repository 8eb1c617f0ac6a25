package validation

import (
	"github.com/shopspring/decimal"

	"github.com/cloudx-io/auctionledger/core"
	"github.com/cloudx-io/auctionledger/ledgerapi"
)

// BaseValidationResult contains results common to every validation
type BaseValidationResult struct {
	SignatureValid    bool
	ValidationDetails []string
}

// SettlementValidationInput contains all inputs needed for settlement validation
type SettlementValidationInput struct {
	SettlementCOSE ledgerapi.SettlementCOSEBase64 // From get_settlement responses
	PublicKeyPEM   string                         // Ledger signing key (get_public_key)

	// Optional expectation for one product. ProductCode 0 skips the check.
	// An empty ExpectedWinner expects the product to have no winner.
	ProductCode    int64
	ExpectedWinner core.Identity
	ExpectedAmount *decimal.Decimal // nil = any amount
}

// SettlementValidationResult contains validation results for a signed settlement
type SettlementValidationResult struct {
	BaseValidationResult
	WinnersHashValid bool
	WinnerValid      bool

	// Settlement is the decoded document. It is set even when the signature
	// does not verify, for inspection only.
	Settlement *ledgerapi.Settlement `json:",omitempty"`
}

// IsValid returns true if all settlement validation checks passed
func (r *SettlementValidationResult) IsValid() bool {
	return r.SignatureValid && r.WinnersHashValid && r.WinnerValid
}

// ReceiptValidationResult contains validation results for a bid receipt
type ReceiptValidationResult struct {
	HashValid         bool
	ValidationDetails []string
}

// IsValid returns true if the receipt hash matches its contents
func (r *ReceiptValidationResult) IsValid() bool {
	return r.HashValid
}
