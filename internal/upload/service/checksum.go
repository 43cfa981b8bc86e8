package service

import (
	"bytes"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"hash"
	"hash/crc32"

	"github.com/anthanhphan/go-resumable-upload/internal/upload/domain"
)

var checksumFactories = map[string]func() hash.Hash{
	"md5":    md5.New,
	"sha1":   sha1.New,
	"sha256": sha256.New,
	"crc32":  func() hash.Hash { return crc32.NewIEEE() },
}

// verifyChecksum compares a PATCH body against the client-declared digest.
func verifyChecksum(body []byte, sum *domain.Checksum) error {
	if sum == nil {
		return nil
	}
	factory, ok := checksumFactories[sum.Algorithm]
	if !ok {
		return domain.NewValidationError("unsupported_checksum", "checksum algorithm %q is not supported", sum.Algorithm)
	}

	h := factory()
	h.Write(body)
	if !bytes.Equal(h.Sum(nil), sum.Sum) {
		return &domain.ValidationError{
			Reason:  "checksum_mismatch",
			Message: "body does not match " + sum.Algorithm + " checksum",
			Cause:   domain.ErrChecksumMismatch,
		}
	}
	return nil
}
