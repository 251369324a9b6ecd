package handlers

import (
	"log"

	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/core/whatsapp"
	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/modules/crm/services"
	"github.com/gofiber/fiber/v2"
)

// WebhookHandler receives inbound message events from webhook-driven
// WhatsApp providers. Socket-driven providers bypass this and feed the
// automation service straight from their listener.
type WebhookHandler struct {
	automationService *services.AutomationService
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(automationService *services.AutomationService) *WebhookHandler {
	return &WebhookHandler{automationService: automationService}
}

// InboundMessagePayload is the normalized webhook body.
type InboundMessagePayload struct {
	Instance  string `json:"instance"`
	Sender    string `json:"sender"`
	Text      string `json:"text"`
	MessageID string `json:"message_id"`
	FromMe    bool   `json:"from_me"`
	IsGroup   bool   `json:"is_group"`
}

// ReceiveMessage always answers 200 so the provider never retries into a
// duplicate delivery; failures are logged and reported in the body only.
func (h *WebhookHandler) ReceiveMessage(c *fiber.Ctx) error {
	var payload InboundMessagePayload
	if err := c.BodyParser(&payload); err != nil {
		log.Printf("⚠️ Ignoring malformed webhook body: %v", err)
		return c.JSON(fiber.Map{"status": "ignored"})
	}
	if payload.Instance == "" || payload.Sender == "" {
		return c.JSON(fiber.Map{"status": "ignored"})
	}

	msg := whatsapp.InboundMessage{
		Instance:  payload.Instance,
		Sender:    payload.Sender,
		Text:      payload.Text,
		MessageID: payload.MessageID,
		IsFromMe:  payload.FromMe,
		IsGroup:   payload.IsGroup,
	}

	if err := h.automationService.HandleInbound(c.Context(), msg); err != nil {
		log.Printf("❌ Failed to process inbound message from %s: %v", payload.Sender, err)
		return c.JSON(fiber.Map{"status": "error"})
	}

	return c.JSON(fiber.Map{"status": "received"})
}
