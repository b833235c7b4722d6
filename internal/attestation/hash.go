package attestation

import (
	"encoding/base32"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Keccak256 returns the legacy (pre-NIST) Keccak-256 digest of data, the
// variant Ethereum tooling uses.
func Keccak256(data []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	return h.Sum(nil)
}

// HashCanonical hashes canonical text as 0x-prefixed lowercase hex.
func HashCanonical(canonical string) string {
	return "0x" + hex.EncodeToString(Keccak256([]byte(canonical)))
}

// Hash serializes doc canonically and hashes the UTF-8 bytes.
func Hash(doc interface{}) (string, error) {
	canonical, err := Serialize(doc)
	if err != nil {
		return "", err
	}
	return HashCanonical(canonical), nil
}

// CIDv1 prefix: version 1, raw codec, keccak-256 multihash of 32 bytes.
var cidPrefix = []byte{0x01, 0x55, 0x1b, 0x20}

var base32Lower = base32.StdEncoding.WithPadding(base32.NoPadding)

// LocalCID derives a CIDv1-shaped content address (multibase "b", base32)
// from canonical text. Publishing is external; this stands in where a
// caller needs a stable address without a content store.
func LocalCID(canonical string) string {
	digest := Keccak256([]byte(canonical))
	raw := make([]byte, 0, len(cidPrefix)+len(digest))
	raw = append(raw, cidPrefix...)
	raw = append(raw, digest...)
	return "b" + strings.ToLower(base32Lower.EncodeToString(raw))
}
