package handlers

import (
	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/core/whatsapp"
	"github.com/gofiber/fiber/v2"
)

type HealthHandler struct {
	whatsappService *whatsapp.Service
}

func NewHealthHandler(whatsappService *whatsapp.Service) *HealthHandler {
	return &HealthHandler{whatsappService: whatsappService}
}

// GetHealth reports liveness and the active channel provider.
func (h *HealthHandler) GetHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":   "ok",
		"service":  "crm-automation-api",
		"provider": h.whatsappService.GetProviderName(),
	})
}
