package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/workflow-service/internal/api/dto"
	"github.com/spec-kit/workflow-service/internal/config"
	"github.com/spec-kit/workflow-service/internal/service"
)

// SLAHandler serves SLA monitoring and escalation endpoints.
type SLAHandler struct {
	service *service.TransitionService
	cfg     config.SLAConfig
}

// NewSLAHandler constructs handler.
func NewSLAHandler(transitionService *service.TransitionService, cfg config.SLAConfig) *SLAHandler {
	return &SLAHandler{service: transitionService, cfg: cfg}
}

// Approaching GET /sla/approaching.
func (h *SLAHandler) Approaching(c *fiber.Ctx) error {
	lead := time.Duration(h.cfg.LeadTimeSeconds) * time.Second
	if override := parsePositiveInt(c.Query("lead_seconds"), 0); override > 0 {
		lead = time.Duration(override) * time.Second
	}
	entries, err := h.service.ListApproachingViolations(c.UserContext(), lead)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data":         dto.FromHistories(entries),
		"lead_seconds": int(lead.Seconds()),
	})
}

// Breached GET /sla/breached.
func (h *SLAHandler) Breached(c *fiber.Ctx) error {
	entries, err := h.service.ListBreachedViolations(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromHistories(entries)})
}

// Escalate POST /sla/:historyId/escalate.
func (h *SLAHandler) Escalate(c *fiber.Ctx) error {
	updated, err := h.service.Escalate(c.UserContext(), c.Params("historyId"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromHistory(updated)})
}
