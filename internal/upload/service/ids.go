package service

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strconv"

	"github.com/google/uuid"
)

// newSessionID returns an unguessable session identifier.
func newSessionID() string {
	return uuid.NewString()
}

// buildStorageName derives the permanent object name from the record id, the
// original filename and 16 random bytes, so names never collide or leak.
func buildStorageName(fileID int64, filename string) (string, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	h := sha256.New()
	h.Write([]byte(strconv.FormatInt(fileID, 10)))
	h.Write([]byte(filename))
	h.Write(salt)
	return hex.EncodeToString(h.Sum(nil)), nil
}
