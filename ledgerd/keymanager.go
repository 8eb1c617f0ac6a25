package main

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cloudx-io/auctionledger/ledgerapi"
)

// KeyManager holds the ECDSA P-256 key the daemon signs settlements with
type KeyManager struct {
	privateKey *ecdsa.PrivateKey // Keep private - sensitive!
	PublicKey  *ecdsa.PublicKey
}

// NewKeyManager creates a new KeyManager with a freshly generated key pair
func NewKeyManager() (*KeyManager, error) {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key pair: %w", err)
	}

	return &KeyManager{
		privateKey: privateKey,
		PublicKey:  &privateKey.PublicKey,
	}, nil
}

// LoadOrCreateKeyManager reads an "EC PRIVATE KEY" PEM file from path. If the
// file does not exist a new key is generated and written there with mode 0600.
// An empty path always generates an ephemeral key.
func LoadOrCreateKeyManager(path string) (*KeyManager, bool, error) {
	if path == "" {
		km, err := NewKeyManager()
		return km, true, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		km, err := NewKeyManager()
		if err != nil {
			return nil, false, err
		}
		if err := km.WritePrivateKeyPEM(path); err != nil {
			return nil, false, err
		}
		return km, true, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read signing key: %w", err)
	}

	block, _ := pem.Decode(data)
	if block == nil || block.Type != "EC PRIVATE KEY" {
		return nil, false, fmt.Errorf("signing key %s: no EC PRIVATE KEY PEM block", path)
	}

	privateKey, err := x509.ParseECPrivateKey(block.Bytes)
	if err != nil {
		return nil, false, fmt.Errorf("failed to parse signing key: %w", err)
	}
	if privateKey.Curve != elliptic.P256() {
		return nil, false, fmt.Errorf("signing key %s: curve %s is not P-256", path, privateKey.Curve.Params().Name)
	}

	return &KeyManager{
		privateKey: privateKey,
		PublicKey:  &privateKey.PublicKey,
	}, false, nil
}

// WritePrivateKeyPEM stores the private key at path, creating parent directories.
func (km *KeyManager) WritePrivateKeyPEM(path string) error {
	derBytes, err := x509.MarshalECPrivateKey(km.privateKey)
	if err != nil {
		return fmt.Errorf("failed to marshal private key: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create key directory: %w", err)
	}

	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: derBytes})
	if err := os.WriteFile(path, pemBytes, 0o600); err != nil {
		return fmt.Errorf("failed to write signing key: %w", err)
	}
	return nil
}

// PublicKeyPEM returns the public key in PEM format
func (km *KeyManager) PublicKeyPEM() (string, error) {
	return ledgerapi.MarshalPublicKeyPEM(km.PublicKey)
}

// SignSettlement signs a settlement document with the daemon key.
func (km *KeyManager) SignSettlement(settlement *ledgerapi.Settlement) (ledgerapi.SettlementCOSE, error) {
	return settlement.Sign(km.privateKey)
}
