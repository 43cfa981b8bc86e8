// Package vault seals per-upload secrets with AES-256-GCM and keeps a read-only
// decoder for blobs written by the older AES-CBC scheme.
package vault

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/anthanhphan/gosdk/logger"
	"golang.org/x/crypto/hkdf"
)

var (
	ErrIntegrity  = errors.New("secret blob failed integrity check")
	ErrInvalidKey = errors.New("invalid vault key")
)

const aeadKeyInfo = "upload-secret-aead-v2"

// Decoder turns a stored blob back into plaintext. Decoders are tried in order by Vault.Open.
type Decoder interface {
	Name() string
	Open(blob []byte) ([]byte, error)
}

// Vault seals with the AEAD scheme only. The legacy decoder is consulted strictly for reads.
type Vault struct {
	aead     *AEAD
	decoders []Decoder
}

// New derives the AEAD key from masterKey and the legacy key from legacyKey.
// An empty legacyKey reuses masterKey, which is how old deployments were configured.
func New(masterKey, legacyKey []byte) (*Vault, error) {
	if len(masterKey) < 16 {
		return nil, fmt.Errorf("%w: master key must be at least 16 bytes", ErrInvalidKey)
	}

	aeadKey := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, masterKey, nil, []byte(aeadKeyInfo)), aeadKey); err != nil {
		return nil, fmt.Errorf("derive aead key: %w", err)
	}
	aead, err := NewAEAD(aeadKey)
	if err != nil {
		return nil, err
	}

	if len(legacyKey) == 0 {
		legacyKey = masterKey
	}
	legacySum := sha256.Sum256(legacyKey)
	legacy, err := NewLegacyCBC(legacySum[:])
	if err != nil {
		return nil, err
	}

	return &Vault{
		aead:     aead,
		decoders: []Decoder{aead, legacy},
	}, nil
}

// Seal encrypts plaintext and returns the base64 form stored in the database.
func (v *Vault) Seal(plaintext []byte) (string, error) {
	blob, err := v.aead.Seal(plaintext)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(blob), nil
}

// Open decodes a stored value, trying the AEAD scheme first and the legacy scheme second.
func (v *Vault) Open(encoded string) ([]byte, error) {
	blob, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIntegrity, err)
	}

	for i, d := range v.decoders {
		plaintext, err := d.Open(blob)
		if err != nil {
			continue
		}
		if i > 0 {
			// Legacy plaintexts are text secrets; anything else is a padding false positive.
			if !utf8.Valid(plaintext) {
				continue
			}
			logger.Warnw("Secret decoded with legacy scheme, re-seal to migrate", "scheme", d.Name())
		}
		return plaintext, nil
	}
	return nil, ErrIntegrity
}
