package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/identity-service/internal/api/dto"
	"github.com/spec-kit/identity-service/internal/service"
	apperrors "github.com/spec-kit/identity-service/pkg/util/errorutil"
)

// EmailsHandler exposes outgoing email.
type EmailsHandler struct {
	emails *service.EmailService
}

// NewEmailsHandler constructs handler.
func NewEmailsHandler(emails *service.EmailService) *EmailsHandler {
	return &EmailsHandler{emails: emails}
}

// Send handles POST /emails.
func (h *EmailsHandler) Send(c *fiber.Ctx) error {
	var req dto.SendEmailRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	msg, err := h.emails.SendEmail(c.UserContext(), req.ToInput())
	if err != nil {
		return err
	}
	return c.Status(http.StatusAccepted).JSON(fiber.Map{"data": dto.EmailResponse{ID: msg.ID, Headers: msg.Headers}})
}
