package http_handler

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/anthanhphan/go-resumable-upload/internal/upload/domain"
	sdklogger "github.com/anthanhphan/gosdk/logger"
	"github.com/gofiber/fiber/v2"
)

// StatusChecksumMismatch is the tus checksum extension status.
const StatusChecksumMismatch = 460

func (s *Server) sendJSONError(c *fiber.Ctx, status int, reason, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"error":   reason,
		"message": message,
	})
}

func (s *Server) sendValidation(c *fiber.Ctx, reason, message string) error {
	return s.sendJSONError(c, fiber.StatusBadRequest, reason, message)
}

// statusFor maps the domain error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, domain.ErrChecksumMismatch):
		return StatusChecksumMismatch
	case errors.Is(err, domain.ErrSizeExceeded):
		return fiber.StatusRequestEntityTooLarge
	case errors.Is(err, domain.ErrInternal):
		return fiber.StatusInternalServerError
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInvalidExtension):
		return fiber.StatusBadRequest
	case errors.Is(err, domain.ErrAuth):
		return fiber.StatusForbidden
	case errors.Is(err, domain.ErrQuota):
		return fiber.StatusTooManyRequests
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, domain.ErrGone):
		return fiber.StatusGone
	case errors.Is(err, domain.ErrConflict):
		return fiber.StatusConflict
	case errors.Is(err, domain.ErrLocked):
		return fiber.StatusLocked
	default:
		return fiber.StatusInternalServerError
	}
}

func reasonFor(err error) string {
	var (
		fe       *fiber.Error
		validErr *domain.ValidationError
		quotaErr *domain.QuotaError
	)
	switch {
	case errors.As(err, &fe):
		return "request_rejected"
	case errors.As(err, &validErr):
		return validErr.Reason
	case errors.Is(err, domain.ErrInternal):
		return "internal_error"
	case errors.Is(err, domain.ErrInvalidExtension):
		return "invalid_extension"
	case errors.Is(err, domain.ErrAuth):
		return "csrf_invalid"
	case errors.As(err, &quotaErr):
		return string(quotaErr.Reason)
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrGone):
		return "expired"
	case errors.Is(err, domain.ErrConflict):
		return "offset_mismatch"
	case errors.Is(err, domain.ErrLocked):
		return "locked"
	default:
		return "internal_error"
	}
}

func (s *Server) sendError(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	reason := reasonFor(err)
	requestID := c.GetRespHeader(fiber.HeaderXRequestID)

	if status >= fiber.StatusInternalServerError {
		sdklogger.Errorw("Upload request failed", "request_id", requestID, "path", c.Path(), "error", err.Error())
		// Internal details stay in the log.
		return s.sendJSONError(c, status, reason, "internal error")
	}
	sdklogger.Debugw("Upload request rejected", "request_id", requestID, "status", status, "reason", reason, "error", err.Error())

	var conflict *domain.ConflictError
	if errors.As(err, &conflict) {
		c.Set(headerUploadOffset, strconv.FormatInt(conflict.Expected, 10))
		return c.Status(status).JSON(fiber.Map{
			"error":      reason,
			"expected":   conflict.Expected,
			"received":   conflict.Received,
			"actualSize": conflict.ActualSize,
		})
	}

	var quota *domain.QuotaError
	if errors.As(err, &quota) {
		c.Set(fiber.HeaderRetryAfter, strconv.FormatInt(quota.RetryAfterSeconds(), 10))
		return c.Status(status).JSON(fiber.Map{
			"error":       reason,
			"message":     err.Error(),
			"retry_after": quota.RetryAfterSeconds(),
		})
	}

	var validErr *domain.ValidationError
	if errors.As(err, &validErr) {
		return s.sendJSONError(c, status, reason, validErr.Message)
	}
	return s.sendJSONError(c, status, reason, err.Error())
}

func typeName(v any) string {
	return fmt.Sprintf("%T", v)
}
