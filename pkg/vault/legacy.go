package vault

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"fmt"
)

// LegacyCBC reads blobs from the unauthenticated AES-256-CBC scheme (iv‖ciphertext,
// PKCS#7 padding). It has no Seal method; new data is always sealed with AEAD.
type LegacyCBC struct {
	block cipher.Block
}

func NewLegacyCBC(key []byte) (*LegacyCBC, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("%w: legacy key must be 32 bytes, got %d", ErrInvalidKey, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return &LegacyCBC{block: block}, nil
}

func (l *LegacyCBC) Name() string { return "aes-256-cbc-legacy" }

func (l *LegacyCBC) Open(blob []byte) ([]byte, error) {
	bs := l.block.BlockSize()
	if len(blob) < 2*bs || len(blob)%bs != 0 {
		return nil, ErrIntegrity
	}
	iv, ct := blob[:bs], blob[bs:]

	out := make([]byte, len(ct))
	cipher.NewCBCDecrypter(l.block, iv).CryptBlocks(out, ct)

	pad := int(out[len(out)-1])
	if pad == 0 || pad > bs {
		return nil, ErrIntegrity
	}
	if !bytes.Equal(out[len(out)-pad:], bytes.Repeat([]byte{byte(pad)}, pad)) {
		return nil, ErrIntegrity
	}
	return out[:len(out)-pad], nil
}
