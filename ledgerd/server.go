package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/mdlayher/vsock"
	"github.com/sirupsen/logrus"

	"github.com/cloudx-io/auctionledger/core"
	"github.com/cloudx-io/auctionledger/ledgerapi"
)

// maxRequestBytes bounds a single request read from a connection.
const maxRequestBytes = 1 << 20

// LedgerServer serves the ledger protocol: one JSON request and one JSON
// response per connection. All ledger access goes through core.Ledger, which
// serializes operations.
type LedgerServer struct {
	cfg        *Config
	ledger     *core.Ledger
	keyManager *KeyManager
	log        *logrus.Entry

	wg sync.WaitGroup
}

// NewLedgerServer wires a server around an existing ledger and signing key.
func NewLedgerServer(cfg *Config, ledger *core.Ledger, keyManager *KeyManager, logger *logrus.Logger) *LedgerServer {
	return &LedgerServer{
		cfg:        cfg,
		ledger:     ledger,
		keyManager: keyManager,
		log:        logger.WithField("component", "ledgerd"),
	}
}

// Listen opens the configured transport listener.
func (s *LedgerServer) Listen() (net.Listener, error) {
	switch s.cfg.Transport {
	case TransportVsock:
		listener, err := vsock.Listen(s.cfg.VsockPort, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create vsock listener: %w", err)
		}
		s.log.Infof("Ledger server listening on vsock port %d", s.cfg.VsockPort)
		return listener, nil
	default:
		listener, err := net.Listen("tcp", s.cfg.ListenAddr)
		if err != nil {
			return nil, fmt.Errorf("failed to create tcp listener: %w", err)
		}
		s.log.Infof("Ledger server listening on %s", listener.Addr())
		return listener, nil
	}
}

// Serve accepts connections until ctx is cancelled, then closes the listener
// and waits for in-flight connections to finish.
func (s *LedgerServer) Serve(ctx context.Context, listener net.Listener) error {
	semaphore := make(chan struct{}, s.cfg.MaxWorkers)
	s.log.Infof("Worker pool initialized with %d max concurrent workers", s.cfg.MaxWorkers)

	stop := context.AfterFunc(ctx, func() {
		if err := listener.Close(); err != nil {
			s.log.WithError(err).Error("Failed to close listener")
		}
	})
	defer stop()
	defer s.wg.Wait()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.log.WithError(err).Error("Failed to accept connection")
			continue
		}

		// Acquire worker slot - immediate rejection if pool full
		select {
		case semaphore <- struct{}{}:
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				defer func() { <-semaphore }() // Release worker slot
				s.handleConnection(c)
			}(conn)
		default:
			s.log.Warn("No workers available, rejecting connection (pool full)")
			if err := conn.Close(); err != nil {
				s.log.WithError(err).Error("Failed to close rejected connection")
			}
		}
	}
}

func (s *LedgerServer) handleConnection(conn net.Conn) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorf("Panic recovered in handleConnection: %v", r)
		}
		if err := conn.Close(); err != nil {
			s.log.WithError(err).Debug("Failed to close connection")
		}
	}()

	_ = conn.SetDeadline(time.Now().Add(s.cfg.RequestTimeout))

	var req ledgerapi.LedgerRequest
	decoder := json.NewDecoder(io.LimitReader(conn, maxRequestBytes))
	var response ledgerapi.LedgerResponse
	if err := decoder.Decode(&req); err != nil {
		s.log.WithError(err).Warn("Failed to decode request")
		response = ledgerapi.LedgerResponse{
			Type:    ledgerapi.TypeError,
			Message: fmt.Sprintf("Failed to decode request: %v", err),
		}
	} else {
		response = s.HandleRequest(req)
	}

	encoder := json.NewEncoder(conn)
	if err := encoder.Encode(response); err != nil {
		s.log.WithError(err).Error("Failed to encode response")
	}
}
