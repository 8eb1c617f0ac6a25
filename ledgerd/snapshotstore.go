package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cloudx-io/auctionledger/core"
	"github.com/cloudx-io/auctionledger/ledgerapi"
)

// loadSnapshot reads a CBOR snapshot file. It returns nil without error when
// the file does not exist.
func loadSnapshot(path string) (*core.Snapshot, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	snap, err := ledgerapi.SnapshotCBOR(data).Decode()
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", path, err)
	}
	return snap, nil
}

// saveSnapshot writes the ledger state to path through a temporary file in the
// same directory, so a crash never leaves a partial snapshot behind.
func saveSnapshot(path string, ledger *core.Ledger) error {
	encoded, err := ledgerapi.EncodeSnapshot(ledger.Snapshot())
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create snapshot file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(encoded); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}
	return nil
}

// openLedger restores the ledger from the configured snapshot, or creates an
// empty one owned by cfg.Owner. A configured owner must match a restored one.
func openLedger(cfg *Config, opts ...core.Option) (*core.Ledger, bool, error) {
	if cfg.SnapshotPath != "" {
		snap, err := loadSnapshot(cfg.SnapshotPath)
		if err != nil {
			return nil, false, err
		}
		if snap != nil {
			if cfg.Owner != "" && cfg.Owner != snap.Owner {
				return nil, false, fmt.Errorf("configured owner %s does not match snapshot owner %s", cfg.Owner, snap.Owner)
			}
			ledger, err := core.Restore(snap, opts...)
			if err != nil {
				return nil, false, err
			}
			return ledger, true, nil
		}
	}

	if cfg.Owner == "" {
		return nil, false, fmt.Errorf("%s is required to create a new ledger", ownerKey)
	}
	ledger, err := core.NewLedger(core.Identity(cfg.Owner), opts...)
	if err != nil {
		return nil, false, err
	}
	return ledger, false, nil
}
