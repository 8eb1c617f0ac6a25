package main

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cloudx-io/auctionledger/core"
)

const (
	testOwner    core.Identity = "0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266"
	testBidder1  core.Identity = "0x3c44cdddb6a900fa2b585dd299e03d12fa4293bc"
	testBidder2  core.Identity = "0x90f79bf6eb2c4f870365e785982e1f101e93b906"
	testOutsider core.Identity = "0x70997970c51812dc3a010c7d01b50e0d17dc79c8"
)

var testAuctionStart = time.Unix(1_700_000_000, 0).UTC()

func testConfig() *Config {
	return &Config{
		Transport:      TransportTCP,
		ListenAddr:     "127.0.0.1:0",
		MaxWorkers:     4,
		Owner:          string(testOwner),
		RequestTimeout: 5 * time.Second,
		LogLevel:       logrus.DebugLevel,
		LogFormat:      "text",
	}
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// newTestServer builds a server around a fresh ledger whose clock starts one
// hour before testAuctionStart.
func newTestServer(t *testing.T, opts ...core.Option) (*LedgerServer, *core.ManualClock) {
	t.Helper()

	clock := core.NewManualClock(testAuctionStart.Add(-time.Hour))
	ledger, err := core.NewLedger(testOwner, append([]core.Option{core.WithClock(clock)}, opts...)...)
	if err != nil {
		t.Fatalf("Failed to create ledger: %v", err)
	}

	km, err := NewKeyManager()
	if err != nil {
		t.Fatalf("Failed to create key manager: %v", err)
	}

	return NewLedgerServer(testConfig(), ledger, km, testLogger()), clock
}

// startTestServer serves s on a loopback listener until the test ends.
func startTestServer(t *testing.T, s *LedgerServer) string {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, listener) }()

	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Serve returned error: %v", err)
		}
	})
	return listener.Addr().String()
}
