package http_handler

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/anthanhphan/go-resumable-upload/internal/upload/domain"
	"github.com/anthanhphan/go-resumable-upload/internal/upload/policy"
	"github.com/gofiber/fiber/v2"
)

const (
	tusVersion = "1.0.0"

	headerTusResumable    = "Tus-Resumable"
	headerTusVersion      = "Tus-Version"
	headerTusExtension    = "Tus-Extension"
	headerTusMaxSize      = "Tus-Max-Size"
	headerTusChecksumAlgo = "Tus-Checksum-Algorithm"

	headerUploadLength   = "Upload-Length"
	headerUploadOffset   = "Upload-Offset"
	headerUploadMetadata = "Upload-Metadata"
	headerUploadExpires  = "Upload-Expires"
	headerUploadChecksum = "Upload-Checksum"
	headerUploadFileID   = "Upload-File-Id"

	contentTypeOffsetOctets = "application/offset+octet-stream"
	defaultForwardedHeader  = "X-Forwarded-For"
	metadataCSRFKey         = "csrf_token"
	httpTimeFormat          = "Mon, 02 Jan 2006 15:04:05 GMT"
)

// parseChecksum decodes "Upload-Checksum: <algorithm> <base64 digest>".
func parseChecksum(header string) (*domain.Checksum, error) {
	if header == "" {
		return nil, nil
	}
	fields := strings.Fields(header)
	if len(fields) != 2 {
		return nil, fmt.Errorf("checksum header is malformed")
	}
	sum, err := base64.StdEncoding.DecodeString(fields[1])
	if err != nil {
		return nil, fmt.Errorf("checksum digest: %w", err)
	}
	return &domain.Checksum{Algorithm: strings.ToLower(fields[0]), Sum: sum}, nil
}

func parseNonNegative(value string) (int64, bool) {
	if value == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func (s *Server) requestInfo(c *fiber.Ctx, csrfToken string) domain.RequestInfo {
	return domain.RequestInfo{
		RequestID:      c.GetRespHeader(fiber.HeaderXRequestID),
		ClientIdentity: s.clientIdentity(c),
		CSRFToken:      csrfToken,
		Now:            s.opts.Now(),
	}
}

// clientIdentity prefers the first public hop of the forwarded chain.
func (s *Server) clientIdentity(c *fiber.Ctx) string {
	header := s.cfg.Server.ProxyHeader
	if header == "" {
		header = defaultForwardedHeader
	}
	return policy.ResolveIdentity(c.Get(header), c.Context().RemoteIP().String())
}
