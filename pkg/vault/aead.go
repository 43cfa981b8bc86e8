package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
)

const (
	nonceSize = 12
	tagSize   = 16
)

// AEAD is AES-256-GCM with blobs laid out as nonce‖tag‖ciphertext.
type AEAD struct {
	gcm cipher.AEAD
}

func NewAEAD(key []byte) (*AEAD, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("%w: aead key must be 32 bytes, got %d", ErrInvalidKey, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &AEAD{gcm: gcm}, nil
}

func (a *AEAD) Name() string { return "aes-256-gcm" }

// Seal uses a fresh random nonce, so sealing the same plaintext twice gives different blobs.
func (a *AEAD) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}

	sealed := a.gcm.Seal(nil, nonce, plaintext, nil)
	ct, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]

	blob := make([]byte, 0, nonceSize+tagSize+len(ct))
	blob = append(blob, nonce...)
	blob = append(blob, tag...)
	blob = append(blob, ct...)
	return blob, nil
}

func (a *AEAD) Open(blob []byte) ([]byte, error) {
	if len(blob) < nonceSize+tagSize {
		return nil, ErrIntegrity
	}
	nonce := blob[:nonceSize]
	tag := blob[nonceSize : nonceSize+tagSize]
	ct := blob[nonceSize+tagSize:]

	sealed := make([]byte, 0, len(ct)+tagSize)
	sealed = append(sealed, ct...)
	sealed = append(sealed, tag...)

	plaintext, err := a.gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrIntegrity
	}
	return plaintext, nil
}

// Encrypt seals plaintext under a raw 32-byte key.
func Encrypt(plaintext, key []byte) ([]byte, error) {
	a, err := NewAEAD(key)
	if err != nil {
		return nil, err
	}
	return a.Seal(plaintext)
}

// Decrypt opens a blob produced by Encrypt. It never falls back to the legacy scheme.
func Decrypt(blob, key []byte) ([]byte, error) {
	a, err := NewAEAD(key)
	if err != nil {
		return nil, err
	}
	return a.Open(blob)
}
