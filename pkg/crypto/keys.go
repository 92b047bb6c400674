package crypto

import (
	"crypto/ed25519"
	"crypto/sha512"
	"errors"

	"filippo.io/edwards25519"
	"golang.org/x/crypto/curve25519"
)

const (
	// PublicKeyLength is the length of an account public key in bytes.
	PublicKeyLength = 32
	// SignatureLength is the length of a transaction signature in bytes.
	SignatureLength = 64
)

// keySeed derives the deterministic signing seed from a secret phrase.
func keySeed(secretPhrase string) []byte {
	return Sha256([]byte(secretPhrase))
}

// PublicKey derives the 32-byte account public key from a secret phrase.
// The same phrase always yields the same key.
func PublicKey(secretPhrase string) []byte {
	priv := ed25519.NewKeyFromSeed(keySeed(secretPhrase))
	pub := make([]byte, PublicKeyLength)
	copy(pub, priv[ed25519.SeedSize:])
	return pub
}

// Sign signs the message with the key derived from the secret phrase and
// returns the 64-byte signature. Signing is deterministic.
func Sign(message []byte, secretPhrase string) []byte {
	priv := ed25519.NewKeyFromSeed(keySeed(secretPhrase))
	return ed25519.Sign(priv, message)
}

// Verify checks the signature of the message against the public key.
func Verify(signature, message, publicKey []byte) bool {
	if len(signature) != SignatureLength || len(publicKey) != PublicKeyLength {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(publicKey), message, signature)
}

// sharedSecret computes the X25519 agreement between the secret phrase
// holder and the owner of the given account public key. Account keys are
// edwards points, so the remote key is mapped to its montgomery form first.
func sharedSecret(secretPhrase string, theirPublicKey []byte) ([]byte, error) {
	if len(theirPublicKey) != PublicKeyLength {
		return nil, errors.New("invalid public key length")
	}
	p, err := new(edwards25519.Point).SetBytes(theirPublicKey)
	if err != nil {
		return nil, errors.New("invalid public key point")
	}
	h := sha512.Sum512(keySeed(secretPhrase))
	scalar := h[:curve25519.ScalarSize]
	scalar[0] &= 248
	scalar[31] &= 127
	scalar[31] |= 64
	return curve25519.X25519(scalar, p.BytesMontgomery())
}
