package whatsapp

import (
	"context"
	"fmt"
	"os"
)

// InboundMessage is a normalized inbound event from any provider.
type InboundMessage struct {
	Instance  string
	Sender    string
	Text      string
	MessageID string
	IsFromMe  bool
	IsGroup   bool
}

// ListPayload is an interactive list message in provider-neutral form.
type ListPayload struct {
	Title      string
	Body       string
	ButtonText string
	Sections   []ListSection
}

type ListSection struct {
	Title string
	Rows  []ListRow
}

type ListRow struct {
	ID          string
	Title       string
	Description string
}

// Provider is the interface for all WhatsApp integration providers. The
// instance argument routes sends on multi-number providers; single-session
// providers ignore it.
type Provider interface {
	// Connect initializes the connection to WhatsApp
	Connect() error

	// Disconnect closes the connection
	Disconnect()

	// SendText sends a plain text message to the destination number
	SendText(ctx context.Context, instance, phoneNumber, message string) error

	// SendReaction reacts to a previously received message
	SendReaction(ctx context.Context, instance, phoneNumber, messageID, emoji string) error

	// SendList sends an interactive list message
	SendList(ctx context.Context, instance, phoneNumber string, list ListPayload) error

	// StartListening starts receiving incoming messages
	StartListening(handler func(msg InboundMessage)) error

	// GenerateQR generates a pairing QR code (returns PNG bytes)
	GenerateQR(sessionID string) ([]byte, error)

	// IsConnected checks whether the client is still connected
	IsConnected() bool

	// StartKeepAlive maintains the session (optional for some providers)
	StartKeepAlive(ctx context.Context)

	// StartTyping shows a typing indicator to the user
	StartTyping(instance, phoneNumber string) error

	// StopTyping clears the typing indicator
	StopTyping(instance, phoneNumber string) error

	// GetProviderName returns the provider name for logging
	GetProviderName() string
}

// ProviderType for factory
type ProviderType string

const (
	ProviderWhatsmeow ProviderType = "whatsmeow"
	ProviderCloudAPI  ProviderType = "cloud_api"
)

// ProviderConfig holds provider configuration
type ProviderConfig struct {
	Type ProviderType

	// Whatsmeow
	StoreURL string

	// Cloud API
	CloudAPIToken   string
	CloudAPIBaseURL string
	CloudAPINumber  string
}

// NewProvider factory creates a provider from config
func NewProvider(cfg *ProviderConfig) (Provider, error) {
	switch cfg.Type {
	case ProviderWhatsmeow:
		return NewWhatsmeowProvider(cfg.StoreURL), nil

	case ProviderCloudAPI:
		if cfg.CloudAPIToken == "" || cfg.CloudAPINumber == "" {
			return nil, fmt.Errorf("WHATSAPP_CLOUD_TOKEN and WHATSAPP_CLOUD_NUMBER_ID are required")
		}
		return NewCloudAPIProvider(cfg.CloudAPIToken, cfg.CloudAPINumber, cfg.CloudAPIBaseURL), nil

	default:
		return nil, fmt.Errorf("unknown provider type: %s", cfg.Type)
	}
}

// LoadProviderFromEnv loads config from environment variables
func LoadProviderFromEnv() (*ProviderConfig, error) {
	providerType := os.Getenv("WHATSAPP_PROVIDER")
	if providerType == "" {
		providerType = "whatsmeow" // default
	}

	cfg := &ProviderConfig{
		Type:     ProviderType(providerType),
		StoreURL: os.Getenv("WHATSAPP_STORE_URL"),

		CloudAPIToken:   os.Getenv("WHATSAPP_CLOUD_TOKEN"),
		CloudAPIBaseURL: os.Getenv("WHATSAPP_CLOUD_BASE_URL"),
		CloudAPINumber:  os.Getenv("WHATSAPP_CLOUD_NUMBER_ID"),
	}

	if cfg.CloudAPIBaseURL == "" {
		cfg.CloudAPIBaseURL = "https://graph.facebook.com/v21.0"
	}

	return cfg, nil
}
