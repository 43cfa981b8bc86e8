package http_handler

import (
	"strconv"
	"strings"

	"github.com/anthanhphan/go-resumable-upload/internal/upload/domain"
	sdklogger "github.com/anthanhphan/gosdk/logger"
	"github.com/gofiber/fiber/v2"
	tushandler "github.com/tus/tusd/v2/pkg/handler"
)

func (s *Server) handleOptions(c *fiber.Ctx) error {
	resp, err := s.service.Handle(c.UserContext(), domain.OptionsRequest{})
	if err != nil {
		return s.sendError(c, err)
	}
	caps, ok := resp.(domain.Capabilities)
	if !ok {
		return s.sendUnexpected(c, resp)
	}

	c.Set(headerTusVersion, caps.Version)
	c.Set(headerTusExtension, strings.Join(caps.Extensions, ","))
	c.Set(headerTusMaxSize, strconv.FormatInt(caps.MaxSize, 10))
	c.Set(headerTusChecksumAlgo, strings.Join(caps.ChecksumAlgorithms, ","))
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleCreate(c *fiber.Ctx) error {
	length, ok := parseNonNegative(c.Get(headerUploadLength))
	if !ok {
		return s.sendValidation(c, "invalid_length", "Upload-Length must be a non-negative integer")
	}

	// Pairs with an undecodable value are dropped, matching tusd.
	meta := tushandler.ParseMetadataHeader(c.Get(headerUploadMetadata))
	csrfToken := meta[metadataCSRFKey]
	delete(meta, metadataCSRFKey)

	resp, err := s.service.Handle(c.UserContext(), domain.CreateRequest{
		Info:      s.requestInfo(c, csrfToken),
		TotalSize: length,
		Metadata:  meta,
	})
	if err != nil {
		return s.sendError(c, err)
	}
	created, ok := resp.(domain.CreatedResponse)
	if !ok {
		return s.sendUnexpected(c, resp)
	}

	location := strings.TrimSuffix(c.BaseURL()+s.cfg.Server.BasePath, "/") + "/" + created.SessionID
	expires := created.ExpiresAt.UTC()

	c.Set(fiber.HeaderLocation, location)
	c.Set(headerUploadExpires, expires.Format(httpTimeFormat))
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":         created.SessionID,
		"location":   location,
		"expires_at": expires,
	})
}

func (s *Server) handlePatch(c *fiber.Ctx) error {
	if !strings.EqualFold(strings.TrimSpace(c.Get(fiber.HeaderContentType)), contentTypeOffsetOctets) {
		return s.sendError(c, fiber.NewError(fiber.StatusUnsupportedMediaType,
			"Content-Type must be "+contentTypeOffsetOctets))
	}
	offset, ok := parseNonNegative(c.Get(headerUploadOffset))
	if !ok {
		return s.sendValidation(c, "invalid_offset", "Upload-Offset must be a non-negative integer")
	}
	checksum, err := parseChecksum(c.Get(headerUploadChecksum))
	if err != nil {
		return s.sendValidation(c, "invalid_checksum", err.Error())
	}

	resp, err := s.service.Handle(c.UserContext(), domain.PatchRequest{
		Info:      s.requestInfo(c, ""),
		SessionID: c.Params("id"),
		Offset:    offset,
		Body:      c.Body(),
		Checksum:  checksum,
	})
	if err != nil {
		return s.sendError(c, err)
	}
	patched, ok := resp.(domain.PatchResponse)
	if !ok {
		return s.sendUnexpected(c, resp)
	}

	c.Set(headerUploadOffset, strconv.FormatInt(patched.Offset, 10))
	if patched.FileID != nil {
		c.Set(headerUploadFileID, strconv.FormatInt(*patched.FileID, 10))
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleHead(c *fiber.Ctx) error {
	c.Set(fiber.HeaderCacheControl, "no-store")

	resp, err := s.service.Handle(c.UserContext(), domain.HeadRequest{
		Info:      s.requestInfo(c, ""),
		SessionID: c.Params("id"),
	})
	if err != nil {
		// HEAD responses carry no body.
		return c.SendStatus(statusFor(err))
	}
	head, ok := resp.(domain.HeadResponse)
	if !ok {
		return s.sendUnexpected(c, resp)
	}

	c.Set(headerUploadOffset, strconv.FormatInt(head.Offset, 10))
	c.Set(headerUploadLength, strconv.FormatInt(head.TotalSize, 10))
	return c.SendStatus(fiber.StatusOK)
}

func (s *Server) handleCSRFToken(c *fiber.Ctx) error {
	if s.opts.Issuer == nil {
		return s.sendError(c, fiber.ErrNotFound)
	}
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.JSON(fiber.Map{"token": s.opts.Issuer.Issue(s.clientIdentity(c))})
}

func (s *Server) sendUnexpected(c *fiber.Ctx, resp domain.Response) error {
	sdklogger.Errorw("Unexpected response type", "path", c.Path(), "type", typeName(resp))
	return s.sendJSONError(c, fiber.StatusInternalServerError, "internal_error", "unexpected response")
}
