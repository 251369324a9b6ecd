package handlers

import (
	"log"

	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/core/whatsapp"
	"github.com/gofiber/fiber/v2"
)

// WhatsAppHandler exposes channel pairing and status.
type WhatsAppHandler struct {
	whatsappService *whatsapp.Service
}

// NewWhatsAppHandler creates a new WhatsApp handler
func NewWhatsAppHandler(whatsappService *whatsapp.Service) *WhatsAppHandler {
	return &WhatsAppHandler{whatsappService: whatsappService}
}

// GetQRCode returns the pairing QR as a PNG.
func (h *WhatsAppHandler) GetQRCode(c *fiber.Ctx) error {
	sessionID := c.Query("session_id", "default")

	log.Printf("🔍 Generating QR for session: %s (provider: %s)", sessionID, h.whatsappService.GetProviderName())

	qr, err := h.whatsappService.GenerateQR(sessionID)
	if err != nil {
		log.Printf("❌ Failed to generate QR: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	c.Set("Content-Type", "image/png")
	c.Set("Content-Disposition", "inline; filename=whatsapp-qr.png")
	return c.Send(qr)
}

// GetStatus reports whether the channel session is connected.
func (h *WhatsAppHandler) GetStatus(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"connected": h.whatsappService.IsConnected(),
		"provider":  h.whatsappService.GetProviderName(),
	})
}
