package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/workflow-service/internal/api/dto"
	"github.com/spec-kit/workflow-service/internal/service"
	apperrors "github.com/spec-kit/workflow-service/pkg/util"
)

// TransitionsHandler manages workflow transition endpoints.
type TransitionsHandler struct {
	service *service.TransitionService
}

// NewTransitionsHandler constructs handler.
func NewTransitionsHandler(transitionService *service.TransitionService) *TransitionsHandler {
	return &TransitionsHandler{service: transitionService}
}

// RecordTransition POST /tickets/:id/transitions.
func (h *TransitionsHandler) RecordTransition(c *fiber.Ctx) error {
	var req dto.RecordTransitionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.FromStateID == "" || req.ToStateID == "" {
		return apperrors.NewValidationError("from_state_id and to_state_id required", nil)
	}

	history, err := h.service.RecordTransition(c.UserContext(), c.Params("id"), req.FromStateID, req.ToStateID)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.FromHistory(history)})
}

// ListTransitions GET /tickets/:id/transitions.
func (h *TransitionsHandler) ListTransitions(c *fiber.Ctx) error {
	entries, err := h.service.ListHistoryForTicket(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromHistories(entries)})
}
