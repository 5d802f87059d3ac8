package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-resolver/internal/api/dto"
	"github.com/spec-kit/support-resolver/internal/auth"
	"github.com/spec-kit/support-resolver/internal/service"
	apperrors "github.com/spec-kit/support-resolver/pkg/errorutil"
)

// SupportHandler accepts support messages and runs the resolution
// workflow for them.
type SupportHandler struct {
	resolutions *service.ResolutionService
}

// NewSupportHandler constructs handler.
func NewSupportHandler(resolutionService *service.ResolutionService) *SupportHandler {
	return &SupportHandler{resolutions: resolutionService}
}

// SubmitMessage POST /support/messages.
func (h *SupportHandler) SubmitMessage(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.SupportMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Message) == "" {
		return apperrors.NewValidationError("message required", nil)
	}

	state, err := h.resolutions.Resolve(c.UserContext(), principal.User.ID, req.Message)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"data": dto.SupportMessageResponse{
		Reply:                state.Reply,
		TicketID:             state.TicketID,
		TicketCreated:        state.TicketID != "",
		Source:               state.Source,
		NeedsConfirmation:    state.NeedsConfirmation,
		ConfirmationQuestion: state.ConfirmationQuestion,
	}})
}
