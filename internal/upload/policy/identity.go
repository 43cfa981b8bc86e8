package policy

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/netip"
	"strings"

	"github.com/anthanhphan/go-resumable-upload/internal/upload/domain"
)

// ResolveIdentity picks the client identity from a forwarded-for chain and the
// socket address: the first public address in the chain, else the remote address.
// It is best effort; a spoofed chain only moves the client to another quota bucket.
func ResolveIdentity(forwardedFor, remoteAddr string) string {
	if forwardedFor != "" {
		for _, part := range strings.Split(forwardedFor, ",") {
			addr, err := netip.ParseAddr(strings.TrimSpace(part))
			if err != nil {
				continue
			}
			if isPublic(addr) {
				return addr.Unmap().String()
			}
		}
	}

	if ap, err := netip.ParseAddrPort(remoteAddr); err == nil {
		return ap.Addr().Unmap().String()
	}
	if addr, err := netip.ParseAddr(remoteAddr); err == nil {
		return addr.Unmap().String()
	}
	return remoteAddr
}

func isPublic(addr netip.Addr) bool {
	addr = addr.Unmap()
	return addr.IsValid() &&
		!addr.IsPrivate() &&
		!addr.IsLoopback() &&
		!addr.IsLinkLocalUnicast() &&
		!addr.IsUnspecified() &&
		!addr.IsMulticast()
}

// HMACKeyer maps client identities to stable keys so raw addresses never reach Redis.
type HMACKeyer struct {
	salt []byte
}

func NewHMACKeyer(salt string) *HMACKeyer {
	return &HMACKeyer{salt: []byte(salt)}
}

func (k *HMACKeyer) Key(clientIdentity string) domain.ClientKey {
	mac := hmac.New(sha256.New, k.salt)
	mac.Write([]byte(clientIdentity))
	return domain.ClientKey(hex.EncodeToString(mac.Sum(nil)))
}
