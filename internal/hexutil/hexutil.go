// Package hexutil normalizes the hex-encoded identifiers that flow through
// the collector: allocation ids, receipt ids, and signatures. Unlike
// go-ethereum's common.Address.Hex(), which checksums per EIP-55, every
// identifier here canonicalizes to lowercase with a "0x" prefix.
package hexutil

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Normalize lowercases s and ensures it carries a "0x" prefix, without
// touching the byte length. Used for any hex string accepted from a
// gateway response or a database row.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, "0x"))
	return "0x" + s
}

// Decode parses a hex string (with or without "0x" prefix) into exactly
// wantLen bytes. Returns an error if the decoded length does not match.
func Decode(s string, wantLen int) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("hexutil: decode %q: %w", s, err)
	}
	if len(b) != wantLen {
		return nil, fmt.Errorf("hexutil: %q is %d bytes, want %d", s, len(b), wantLen)
	}
	return b, nil
}

// Encode formats b as a lowercase "0x"-prefixed hex string.
func Encode(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

// Equal reports whether two hex strings denote the same bytes regardless
// of case or "0x" prefix.
func Equal(a, b string) bool {
	return strings.EqualFold(strings.TrimPrefix(a, "0x"), strings.TrimPrefix(b, "0x"))
}
