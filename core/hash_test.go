package core

import (
	"crypto/sha256"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
)

func TestComputeBidHash(t *testing.T) {
	bidder := Identity("0xabc")
	amount := "1000000000000000000"
	nonce := "test_nonce_456"

	hash := ComputeBidHash(1, bidder, amount, nonce)

	// Verify hash is 64 characters (SHA256 hex encoding)
	if len(hash) != 64 {
		t.Errorf("ComputeBidHash() hash length = %d, want 64", len(hash))
	}

	// Same inputs should produce same hash (deterministic)
	if hash2 := ComputeBidHash(1, bidder, amount, nonce); hash != hash2 {
		t.Errorf("ComputeBidHash() not deterministic")
	}

	// Verify exact hash calculation
	expectedData := fmt.Sprintf("%d|%s|%s|%s", 1, bidder, amount, nonce)
	expectedHash := fmt.Sprintf("%x", sha256.Sum256([]byte(expectedData)))
	if hash != expectedHash {
		t.Errorf("ComputeBidHash() = %v, want %v", hash, expectedHash)
	}
}

func TestComputeBidHash_DifferentInputs(t *testing.T) {
	base := ComputeBidHash(1, "0xabc", "100", "nonce")

	variants := map[string]string{
		"product": ComputeBidHash(2, "0xabc", "100", "nonce"),
		"bidder":  ComputeBidHash(1, "0xabd", "100", "nonce"),
		"amount":  ComputeBidHash(1, "0xabc", "101", "nonce"),
		"nonce":   ComputeBidHash(1, "0xabc", "100", "nonce2"),
	}

	for field, hash := range variants {
		if hash == base {
			t.Errorf("Different %s should produce a different hash", field)
		}
	}
}

func TestComputeWinnersHash(t *testing.T) {
	winners := []WinningBid{
		{ProductCode: 1, Amount: decimal.RequireFromString("2000000000000000000"), Winner: "0xb"},
		{ProductCode: 4, Amount: decimal.NewFromInt(7), Winner: "0xc"},
	}
	nonce := "n"

	hash := ComputeWinnersHash(winners, nonce)

	expectedData := "n|1:0xb:2000000000000000000|4:0xc:7"
	expectedHash := fmt.Sprintf("%x", sha256.Sum256([]byte(expectedData)))
	if hash != expectedHash {
		t.Errorf("ComputeWinnersHash() = %v, want %v", hash, expectedHash)
	}

	// Order is part of the commitment
	reversed := []WinningBid{winners[1], winners[0]}
	if ComputeWinnersHash(reversed, nonce) == hash {
		t.Errorf("Reordered winners should produce a different hash")
	}
}

func TestComputeWinnersHash_Empty(t *testing.T) {
	expectedHash := fmt.Sprintf("%x", sha256.Sum256([]byte("nonce")))
	if hash := ComputeWinnersHash(nil, "nonce"); hash != expectedHash {
		t.Errorf("ComputeWinnersHash(nil) = %v, want %v", hash, expectedHash)
	}
}
