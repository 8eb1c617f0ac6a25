package ledgerapi

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"fmt"
	"io"
)

// maxDecompressedBytes bounds the output of decompressGzip.
var maxDecompressedBytes int64 = 64 << 20

// Binary payloads (COSE settlements, CBOR snapshots) travel inside JSON as
// base64 text. Large ones are gzipped first and use URL-safe base64 without
// padding so they can also be passed as query parameters.

func encodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

func decodeBase64(encoded string, what string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode %s base64: %w", what, err)
	}
	return data, nil
}

func compressGzip(data []byte) (string, error) {
	var buf bytes.Buffer
	writer := gzip.NewWriter(&buf)
	if _, err := writer.Write(data); err != nil {
		return "", fmt.Errorf("gzip write: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("gzip close: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf.Bytes()), nil
}

func decompressGzip(encoded string, what string) ([]byte, error) {
	compressed, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode %s base64: %w", what, err)
	}

	reader, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("create gzip reader: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(io.LimitReader(reader, maxDecompressedBytes+1))
	if err != nil {
		return nil, fmt.Errorf("decompress %s: %w", what, err)
	}
	if int64(len(data)) > maxDecompressedBytes {
		return nil, fmt.Errorf("decompress %s: exceeds %d bytes", what, maxDecompressedBytes)
	}
	return data, nil
}
