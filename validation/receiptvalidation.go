package validation

import (
	"fmt"

	"github.com/cloudx-io/auctionledger/core"
)

// ValidateBidReceipt recomputes the hash of a bid receipt from its product,
// bidder, amount and nonce.
func ValidateBidReceipt(receipt *core.BidReceipt) (*ReceiptValidationResult, error) {
	if receipt == nil {
		return nil, fmt.Errorf("receipt is required")
	}

	result := &ReceiptValidationResult{}
	if receipt.Nonce == "" {
		result.ValidationDetails = append(result.ValidationDetails, "Receipt nonce missing")
		return result, nil
	}

	computedHash := core.ComputeBidHash(receipt.ProductCode, receipt.Bidder, receipt.Amount.String(), receipt.Nonce)
	if computedHash == receipt.Hash {
		result.HashValid = true
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Receipt hash validation passed: %s", computedHash))
		return result, nil
	}

	result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Receipt hash mismatch: computed %s, receipt has %s", computedHash, receipt.Hash))
	return result, nil
}
