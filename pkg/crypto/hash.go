package crypto

import (
	"crypto/sha256"
	"encoding/binary"
	"hash"
)

// Sha256 hashes the incoming byte slice using the sha256 algorithm.
func Sha256(data []byte) []byte {
	digest := sha256.Sum256(data)
	return digest[:]
}

// NewSha256 returns a new sha256 digest to feed incrementally.
func NewSha256() hash.Hash {
	return sha256.New()
}

// AccountID derives the numeric account id from a 32-byte public key: the
// leading 8 bytes of SHA256(publicKey) interpreted as a little-endian integer.
func AccountID(publicKey []byte) uint64 {
	return binary.LittleEndian.Uint64(Sha256(publicKey)[:8])
}
