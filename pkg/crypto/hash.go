// Package crypto provides cryptographic primitives for the Klingnet mesh.
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"

	"github.com/zeebo/blake3"
)

// Hash computes a BLAKE3-256 hash of the input data.
func Hash(data []byte) [32]byte {
	return blake3.Sum256(data)
}

// HashConcat hashes the concatenation of two byte slices.
func HashConcat(a, b []byte) [32]byte {
	buf := make([]byte, 0, len(a)+len(b))
	buf = append(buf, a...)
	buf = append(buf, b...)
	return Hash(buf)
}

// Sha256 computes a SHA-256 hash.
func Sha256(data []byte) [32]byte {
	return sha256.Sum256(data)
}

// Sha512 computes a SHA-512 hash.
func Sha512(data []byte) [64]byte {
	return sha512.Sum512(data)
}

// RandomBytes returns n cryptographically strong random bytes.
func RandomBytes(n int) []byte {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand never fails on supported platforms.
		panic(fmt.Sprintf("read random bytes: %v", err))
	}
	return b
}
