package crypto

import (
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// NonceLength is the length of the key-derivation nonce carried with
// encrypted data on the wire.
const NonceLength = 32

// encryptedOverhead is the AEAD tag added to the plaintext.
const encryptedOverhead = chacha20poly1305.Overhead

// EncryptedData is a ciphertext with the random nonce its one-off key was
// derived with. Both halves travel together on the wire.
type EncryptedData struct {
	Data  []byte
	Nonce []byte
}

// EncryptTo encrypts plaintext so that only the owner of theirPublicKey (or
// the sender itself) can read it. A fresh nonce is drawn for every call.
func EncryptTo(theirPublicKey, plaintext []byte, secretPhrase string) (EncryptedData, error) {
	nonce := make([]byte, NonceLength)
	if _, err := rand.Read(nonce); err != nil {
		return EncryptedData{}, err
	}
	return encryptWithNonce(theirPublicKey, plaintext, secretPhrase, nonce)
}

func encryptWithNonce(theirPublicKey, plaintext []byte, secretPhrase string, nonce []byte) (EncryptedData, error) {
	aead, err := messageAEAD(secretPhrase, theirPublicKey, nonce)
	if err != nil {
		return EncryptedData{}, err
	}
	data := aead.Seal(nil, make([]byte, chacha20poly1305.NonceSize), plaintext, nil)
	return EncryptedData{Data: data, Nonce: nonce}, nil
}

// Decrypt recovers the plaintext using the receiving side's secret phrase
// and the other party's public key.
func (e EncryptedData) Decrypt(secretPhrase string, theirPublicKey []byte) ([]byte, error) {
	if len(e.Nonce) != NonceLength {
		return nil, errors.New("invalid nonce length")
	}
	aead, err := messageAEAD(secretPhrase, theirPublicKey, e.Nonce)
	if err != nil {
		return nil, err
	}
	plaintext, err := aead.Open(nil, make([]byte, chacha20poly1305.NonceSize), e.Data, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt message: %w", err)
	}
	return plaintext, nil
}

// EncryptedSize returns the ciphertext length for a plaintext of the given
// length.
func EncryptedSize(plaintextLen int) int {
	return plaintextLen + encryptedOverhead
}

func messageAEAD(secretPhrase string, theirPublicKey, nonce []byte) (cipher.AEAD, error) {
	shared, err := sharedSecret(secretPhrase, theirPublicKey)
	if err != nil {
		return nil, err
	}
	digest := NewSha256()
	digest.Write(shared)
	digest.Write(nonce)
	return chacha20poly1305.New(digest.Sum(nil))
}
