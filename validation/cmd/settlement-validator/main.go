package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"

	"github.com/cloudx-io/auctionledger/core"
	"github.com/cloudx-io/auctionledger/ledgerapi"
	"github.com/cloudx-io/auctionledger/validation"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := pflag.NewFlagSet("settlement-validator", pflag.ContinueOnError)
	var (
		settlementInput = fs.String("settlement", "", "Settlement COSE base64 (file path or inline)")
		publicKeyInput  = fs.String("public-key", "", "Ledger public key PEM (file path or inline)")
		receiptInput    = fs.String("receipt", "", "Bid receipt JSON (file path or inline)")
		productCode     = fs.Int64("product", 0, "Product code to check the winner of")
		expectedWinner  = fs.String("winner", "", "Expected winner of --product (empty = expect no winner)")
		expectedAmount  = fs.String("amount", "", "Expected winning amount of --product")
		outputFormat    = fs.String("format", "text", "Output format: text or json")
		help            = fs.Bool("help", false, "Show usage information")
	)
	fs.Usage = func() { showUsage(fs) }

	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *help {
		showUsage(fs)
		return 0
	}

	if *receiptInput != "" {
		return validateReceipt(*receiptInput, *outputFormat)
	}

	if *settlementInput == "" || *publicKeyInput == "" {
		showUsage(fs)
		fmt.Fprintf(os.Stderr, "\nError: --settlement and --public-key are required (or --receipt)\n")
		return 1
	}

	settlementData, err := readInput(*settlementInput)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading settlement: %v\n", err)
		return 2
	}
	publicKeyData, err := readInput(*publicKeyInput)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading public key: %v\n", err)
		return 2
	}

	input := &validation.SettlementValidationInput{
		SettlementCOSE: ledgerapi.SettlementCOSEBase64(strings.TrimSpace(string(settlementData))),
		PublicKeyPEM:   string(publicKeyData),
		ProductCode:    *productCode,
		ExpectedWinner: core.Identity(*expectedWinner),
	}
	if *expectedAmount != "" {
		amount, err := decimal.NewFromString(*expectedAmount)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing --amount: %v\n", err)
			return 2
		}
		input.ExpectedAmount = &amount
	}

	result, err := validation.ValidateSettlement(input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Validation error: %v\n", err)
		return 2
	}

	if *outputFormat == "json" {
		outputJSON(result)
	} else {
		outputSettlementText(result)
	}

	if !result.IsValid() {
		return 1
	}
	return 0
}

func validateReceipt(receiptInput, outputFormat string) int {
	data, err := readInput(receiptInput)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading receipt: %v\n", err)
		return 2
	}

	var receipt core.BidReceipt
	if err := json.Unmarshal(data, &receipt); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing receipt: %v\n", err)
		return 2
	}

	result, err := validation.ValidateBidReceipt(&receipt)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Validation error: %v\n", err)
		return 2
	}

	if outputFormat == "json" {
		outputJSON(result)
	} else {
		fmt.Println("=== Bid Receipt Validation ===")
		fmt.Printf("Receipt:        %s\n", receipt.ID)
		fmt.Printf("Hash Valid:     %s\n", formatBool(result.HashValid))
		printDetails(result.ValidationDetails)
		printOverall(result.IsValid())
	}

	if !result.IsValid() {
		return 1
	}
	return 0
}

func showUsage(fs *pflag.FlagSet) {
	fmt.Println("Auction Ledger Settlement Validator")
	fmt.Println()
	fmt.Println("Verifies signed settlements and bid receipts issued by a ledger daemon.")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  settlement-validator --settlement <cose> --public-key <pem> [--product <code> --winner <id> --amount <n>]")
	fmt.Println("  settlement-validator --receipt <json>")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Print(fs.FlagUsages())
	fmt.Println()
	fmt.Println("Each input accepts either a file path or the inline value.")
	fmt.Println()
	fmt.Println("Exit Codes:")
	fmt.Println("  0 - Validation passed")
	fmt.Println("  1 - Validation failed")
	fmt.Println("  2 - Invalid input or runtime error")
}

func readInput(input string) ([]byte, error) {
	// Try reading as file first
	if data, err := os.ReadFile(input); err == nil {
		return data, nil
	}
	// Treat as inline value
	return []byte(input), nil
}

func outputJSON(result any) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding result: %v\n", err)
		return
	}
	fmt.Println(string(data))
}

func outputSettlementText(result *validation.SettlementValidationResult) {
	fmt.Println("=== Settlement Validation ===")
	if s := result.Settlement; s != nil {
		fmt.Printf("Settlement:     %s\n", s.SettlementID)
		fmt.Printf("Owner:          %s\n", s.Owner)
		fmt.Printf("Phase:          %s\n", s.Phase)
		fmt.Printf("Settled At:     %s\n", s.SettledAt.Format("2006-01-02T15:04:05Z07:00"))
		fmt.Printf("Winners:        %d\n", len(s.Winners))
		for _, w := range s.Winners {
			fmt.Printf("  product %d: %s (%s)\n", w.ProductCode, w.Winner, w.Amount)
		}
	}
	fmt.Println()
	fmt.Printf("Signature:      %s\n", formatBool(result.SignatureValid))
	fmt.Printf("Winners Hash:   %s\n", formatBool(result.WinnersHashValid))
	fmt.Printf("Winner:         %s\n", formatBool(result.WinnerValid))
	printDetails(result.ValidationDetails)
	printOverall(result.IsValid())
}

func printDetails(details []string) {
	if len(details) == 0 {
		return
	}
	fmt.Println()
	fmt.Println("Details:")
	for _, detail := range details {
		fmt.Printf("  - %s\n", detail)
	}
}

func printOverall(valid bool) {
	fmt.Println()
	if valid {
		fmt.Println("Result: VALID")
	} else {
		fmt.Println("Result: INVALID")
	}
}

func formatBool(b bool) string {
	if b {
		return "PASS"
	}
	return "FAIL"
}
