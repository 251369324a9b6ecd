package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// CloudAPIProvider talks to the hosted WhatsApp Business Cloud API. The
// instance argument on sends selects the phone-number id, falling back to
// the configured default; inbound traffic arrives through the platform
// webhook, not a socket, so StartListening is a no-op here.
type CloudAPIProvider struct {
	token           string
	defaultNumberID string
	baseURL         string
	client          *http.Client
}

func NewCloudAPIProvider(token, numberID, baseURL string) *CloudAPIProvider {
	if baseURL == "" {
		baseURL = "https://graph.facebook.com/v21.0"
	}
	return &CloudAPIProvider{
		token:           token,
		defaultNumberID: numberID,
		baseURL:         baseURL,
		client:          &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *CloudAPIProvider) GetProviderName() string {
	return "CloudAPI"
}

func (c *CloudAPIProvider) Connect() error {
	// Nothing to dial: the Cloud API is request/response.
	log.Println("✅ Cloud API provider ready")
	return nil
}

func (c *CloudAPIProvider) Disconnect() {}

func (c *CloudAPIProvider) numberID(instance string) string {
	if instance != "" {
		return instance
	}
	return c.defaultNumberID
}

func (c *CloudAPIProvider) post(ctx context.Context, instance string, payload map[string]interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", c.baseURL, c.numberID(instance))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("cloud api request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("cloud api returned %d: %s", resp.StatusCode, string(detail))
	}
	return nil
}

func (c *CloudAPIProvider) SendText(ctx context.Context, instance, phoneNumber, message string) error {
	return c.post(ctx, instance, map[string]interface{}{
		"messaging_product": "whatsapp",
		"to":                phoneNumber,
		"type":              "text",
		"text":              map[string]interface{}{"body": message},
	})
}

func (c *CloudAPIProvider) SendReaction(ctx context.Context, instance, phoneNumber, messageID, emoji string) error {
	return c.post(ctx, instance, map[string]interface{}{
		"messaging_product": "whatsapp",
		"to":                phoneNumber,
		"type":              "reaction",
		"reaction": map[string]interface{}{
			"message_id": messageID,
			"emoji":      emoji,
		},
	})
}

func (c *CloudAPIProvider) SendList(ctx context.Context, instance, phoneNumber string, list ListPayload) error {
	sections := make([]map[string]interface{}, 0, len(list.Sections))
	for _, s := range list.Sections {
		rows := make([]map[string]interface{}, 0, len(s.Rows))
		for _, r := range s.Rows {
			rows = append(rows, map[string]interface{}{
				"id":          r.ID,
				"title":       r.Title,
				"description": r.Description,
			})
		}
		sections = append(sections, map[string]interface{}{
			"title": s.Title,
			"rows":  rows,
		})
	}

	return c.post(ctx, instance, map[string]interface{}{
		"messaging_product": "whatsapp",
		"to":                phoneNumber,
		"type":              "interactive",
		"interactive": map[string]interface{}{
			"type":   "list",
			"header": map[string]interface{}{"type": "text", "text": list.Title},
			"body":   map[string]interface{}{"text": list.Body},
			"action": map[string]interface{}{
				"button":   list.ButtonText,
				"sections": sections,
			},
		},
	})
}

func (c *CloudAPIProvider) StartListening(handler func(msg InboundMessage)) error {
	// Inbound messages arrive via the platform webhook endpoint.
	log.Println("ℹ️ Cloud API inbound is webhook-driven, nothing to listen on")
	return nil
}

func (c *CloudAPIProvider) GenerateQR(sessionID string) ([]byte, error) {
	return nil, fmt.Errorf("cloud api does not use QR pairing")
}

func (c *CloudAPIProvider) IsConnected() bool {
	return true
}

func (c *CloudAPIProvider) StartKeepAlive(ctx context.Context) {
	// Stateless HTTP, no session to keep alive.
}

func (c *CloudAPIProvider) StartTyping(instance, phoneNumber string) error {
	// The Cloud API has no typing indicator endpoint.
	return nil
}

func (c *CloudAPIProvider) StopTyping(instance, phoneNumber string) error {
	return nil
}
