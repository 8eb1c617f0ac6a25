package ledgerapi

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/cloudx-io/auctionledger/core"
)

// SnapshotCBOR is a ledger snapshot in deterministic CBOR encoding.
type SnapshotCBOR []byte

// SnapshotGzip is gzip-compressed SnapshotCBOR in URL-safe base64.
type SnapshotGzip string

var snapshotEncMode cbor.EncMode

func init() {
	mode, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("cbor: invalid snapshot encoding options: %v", err))
	}
	snapshotEncMode = mode
}

// EncodeSnapshot encodes snap as deterministic CBOR. Equal snapshots always
// produce identical bytes.
func EncodeSnapshot(snap *core.Snapshot) (SnapshotCBOR, error) {
	if snap == nil {
		return nil, fmt.Errorf("encode snapshot: nil snapshot")
	}
	data, err := snapshotEncMode.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return SnapshotCBOR(data), nil
}

// Decode parses the CBOR snapshot.
func (s SnapshotCBOR) Decode() (*core.Snapshot, error) {
	var snap core.Snapshot
	if err := cbor.Unmarshal(s, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}

// CompressGzip compresses the snapshot for JSON transport.
func (s SnapshotCBOR) CompressGzip() (SnapshotGzip, error) {
	encoded, err := compressGzip(s)
	if err != nil {
		return "", fmt.Errorf("compress snapshot: %w", err)
	}
	return SnapshotGzip(encoded), nil
}

// Decompress reverses CompressGzip.
func (s SnapshotGzip) Decompress() (SnapshotCBOR, error) {
	data, err := decompressGzip(string(s), "snapshot")
	if err != nil {
		return nil, err
	}
	return SnapshotCBOR(data), nil
}

// String returns the string representation
func (s SnapshotGzip) String() string {
	return string(s)
}
