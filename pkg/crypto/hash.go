// Package crypto provides the hashing and signing primitives used by
// Luna Wallet: BLAKE3-256 digests and Schnorr/secp256k1 signatures.
package crypto

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// HashSize is the digest length in bytes.
const HashSize = 32

// Hash computes a BLAKE3-256 hash of the input data.
func Hash(data []byte) [HashSize]byte {
	return blake3.Sum256(data)
}

// HashHex computes a BLAKE3-256 hash and returns it hex-encoded.
func HashHex(data []byte) string {
	h := Hash(data)
	return hex.EncodeToString(h[:])
}
