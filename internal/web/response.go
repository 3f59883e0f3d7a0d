package web

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"

	"stakehub/internal/common"
)

// Response is the JSON envelope of every endpoint.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// WriteSuccess writes a success envelope.
func WriteSuccess(c *fiber.Ctx, code int, message string, data any) error {
	return c.Status(code).JSON(Response{Success: true, Message: message, Data: data})
}

// WriteError writes an error envelope.
func WriteError(c *fiber.Ctx, code int, message, reason string) error {
	return c.Status(code).JSON(Response{Success: false, Message: message, Error: message, Reason: reason})
}

// StatusOf maps an error kind to its HTTP status.
func StatusOf(err error) int {
	if errors.Is(err, common.ErrNotFound) {
		return fiber.StatusNotFound
	}
	switch common.KindOf(err) {
	case common.KindValidation:
		return fiber.StatusBadRequest
	case common.KindPrecondition, common.KindVerificationRejected:
		return fiber.StatusUnprocessableEntity
	case common.KindConflict:
		return fiber.StatusConflict
	case common.KindProviderUnavailable:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// WriteErr translates a service error into the envelope. Internal errors are
// logged and answered with a generic message.
func WriteErr(c *fiber.Ctx, err error) error {
	status := StatusOf(err)
	if status == fiber.StatusInternalServerError {
		log.WithError(err).WithFields(log.Fields{
			"method":     c.Method(),
			"path":       c.Path(),
			"request_id": RequestID(c),
		}).Error("Request failed")
	}
	msg := common.MessageOf(err)
	if common.KindOf(err) == common.KindProviderUnavailable {
		msg = "blockchain verification is temporarily unavailable, try again later"
	}
	return WriteError(c, status, msg, common.ReasonOf(err))
}

// ErrorHandler handles errors that escape handlers (fiber errors and panics
// turned into errors).
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return WriteError(c, fe.Code, fe.Message, "")
	}
	return WriteErr(c, err)
}
