package handlers

import (
	"log"

	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/modules/crm/services"
	"github.com/gofiber/fiber/v2"
)

// SweepHandler triggers a queue sweep on demand. The scheduler calls the
// same service on a cron; this endpoint exists for operators and tests.
type SweepHandler struct {
	sweepService *services.SweepService
}

// NewSweepHandler creates a new sweep handler
func NewSweepHandler(sweepService *services.SweepService) *SweepHandler {
	return &SweepHandler{sweepService: sweepService}
}

func (h *SweepHandler) RunSweep(c *fiber.Ctx) error {
	summary, err := h.sweepService.Sweep(c.Context())
	if err != nil {
		log.Printf("❌ Sweep failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "sweep failed",
		})
	}

	return c.JSON(fiber.Map{
		"status":      "success",
		"automations": summary.Automations,
		"followups":   summary.FollowUps,
		"resumes":     summary.Resumes,
	})
}
