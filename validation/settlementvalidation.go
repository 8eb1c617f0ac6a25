package validation

import (
	"fmt"

	"github.com/cloudx-io/auctionledger/core"
	"github.com/cloudx-io/auctionledger/ledgerapi"
)

// ValidateSettlement validates a signed ledger settlement and verifies:
// - COSE_Sign1 signature against the ledger public key
// - Winners hash matches the winners list and nonce
// - Optional expected winner and amount for one product
//
// Returns:
//   - SettlementValidationResult with detailed results (call result.IsValid() to check overall status)
//   - error if validation cannot be performed (e.g., malformed input)
func ValidateSettlement(input *SettlementValidationInput) (*SettlementValidationResult, error) {
	if input == nil {
		return nil, fmt.Errorf("validation input is required")
	}

	coseBytes, err := input.SettlementCOSE.Decode()
	if err != nil {
		return nil, fmt.Errorf("decode settlement: %w", err)
	}

	publicKey, err := ledgerapi.ParsePublicKeyPEM(input.PublicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}

	result := &SettlementValidationResult{}

	settlement, err := coseBytes.Verify(publicKey)
	if err != nil {
		result.SignatureValid = false
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Signature validation failed: %v", err))

		// Keep going on the unverified payload so the report shows what was claimed
		settlement, err = coseBytes.Payload()
		if err != nil {
			return nil, fmt.Errorf("parse settlement: %w", err)
		}
	} else {
		result.SignatureValid = true
		result.ValidationDetails = append(result.ValidationDetails, "Signature validation passed (ES256)")
	}
	result.Settlement = settlement

	result.WinnersHashValid = validateWinnersHash(settlement, result)
	result.WinnerValid = validateExpectedWinner(input, settlement, result)

	return result, nil
}

func validateWinnersHash(settlement *ledgerapi.Settlement, result *SettlementValidationResult) bool {
	if settlement.WinnersNonce == "" {
		result.ValidationDetails = append(result.ValidationDetails, "Winners hash nonce missing from settlement")
		return false
	}

	computedHash := core.ComputeWinnersHash(settlement.Winners, settlement.WinnersNonce)
	if computedHash == settlement.WinnersHash {
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Winners hash validation passed: %s", computedHash))
		return true
	}

	result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Winners hash mismatch: computed %s, settlement has %s", computedHash, settlement.WinnersHash))
	return false
}

func validateExpectedWinner(input *SettlementValidationInput, settlement *ledgerapi.Settlement, result *SettlementValidationResult) bool {
	if input.ProductCode == 0 {
		return true
	}

	var winner *core.WinningBid
	for i := range settlement.Winners {
		if settlement.Winners[i].ProductCode == input.ProductCode {
			winner = &settlement.Winners[i]
			break
		}
	}

	if input.ExpectedWinner == "" {
		if winner == nil {
			result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Winner validation passed: product %d has no winner as expected", input.ProductCode))
			return true
		}
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Winner validation failed: expected no winner for product %d, but %s won with %s", input.ProductCode, winner.Winner, winner.Amount))
		return false
	}

	if winner == nil {
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Winner validation failed: expected %s to win product %d, but it has no winner", input.ExpectedWinner, input.ProductCode))
		return false
	}

	if winner.Winner != input.ExpectedWinner {
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Winner validation failed: expected %s to win product %d, settlement has %s", input.ExpectedWinner, input.ProductCode, winner.Winner))
		return false
	}

	if input.ExpectedAmount != nil && !input.ExpectedAmount.Equal(winner.Amount) {
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Winning amount mismatch: expected %s, settlement has %s", input.ExpectedAmount, winner.Amount))
		return false
	}

	result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Winner validation passed: %s won product %d with %s", winner.Winner, input.ProductCode, winner.Amount))
	return true
}
