package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/cloudx-io/auctionledger/core"
)

func run(ctx context.Context, args []string) error {
	cfg, err := LoadConfig(args)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	ledger, restored, err := openLedger(cfg, core.WithReserveEnforcement(cfg.EnforceReserve))
	if err != nil {
		return fmt.Errorf("failed to open ledger: %w", err)
	}
	if restored {
		logger.Infof("Ledger restored from %s (owner %s, %d live products)",
			cfg.SnapshotPath, ledger.Owner(), ledger.LiveProductsCount())
	} else {
		logger.Infof("New ledger created for owner %s", ledger.Owner())
	}

	keyManager, generated, err := LoadOrCreateKeyManager(cfg.SigningKeyPath)
	if err != nil {
		return fmt.Errorf("failed to initialize key manager: %w", err)
	}
	if generated {
		logger.Info("KeyManager initialized with a new signing key")
	} else {
		logger.Infof("KeyManager loaded signing key from %s", cfg.SigningKeyPath)
	}

	server := NewLedgerServer(cfg, ledger, keyManager, logger)
	listener, err := server.Listen()
	if err != nil {
		return err
	}

	serveErr := server.Serve(ctx, listener)

	if cfg.SnapshotPath != "" {
		if err := saveSnapshot(cfg.SnapshotPath, ledger); err != nil {
			logger.WithError(err).Error("Failed to write snapshot")
			return errors.Join(serveErr, err)
		}
		logger.Infof("Snapshot written to %s", cfg.SnapshotPath)
	}
	return serveErr
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "ledgerd: %v\n", err)
		os.Exit(1)
	}
}
