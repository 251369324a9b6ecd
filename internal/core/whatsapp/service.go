package whatsapp

import (
	"context"
	"log"
)

// Service is the wrapper around a WhatsApp provider. This is the layer the
// application depends on.
type Service struct {
	provider Provider
}

// NewService creates a service with the provider from environment
func NewService(storeURL string) *Service {
	cfg, err := LoadProviderFromEnv()
	if err != nil {
		log.Fatalf("❌ Failed to load provider config: %v", err)
	}

	// Override storeURL when given
	if storeURL != "" {
		cfg.StoreURL = storeURL
	}

	provider, err := NewProvider(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to create provider: %v", err)
	}

	log.Printf("✅ Using WhatsApp provider: %s", provider.GetProviderName())

	return &Service{
		provider: provider,
	}
}

// NewServiceWithProvider creates a service with a specific provider (for testing)
func NewServiceWithProvider(provider Provider) *Service {
	return &Service{
		provider: provider,
	}
}

// Connect starts the WhatsApp connection
func (s *Service) Connect() error {
	return s.provider.Connect()
}

// Disconnect closes the connection
func (s *Service) Disconnect() {
	s.provider.Disconnect()
}

// SendText sends a plain text message
func (s *Service) SendText(ctx context.Context, instance, phoneNumber, message string) error {
	return s.provider.SendText(ctx, instance, phoneNumber, message)
}

// SendReaction reacts to a received message
func (s *Service) SendReaction(ctx context.Context, instance, phoneNumber, messageID, emoji string) error {
	return s.provider.SendReaction(ctx, instance, phoneNumber, messageID, emoji)
}

// SendList sends an interactive list message
func (s *Service) SendList(ctx context.Context, instance, phoneNumber string, list ListPayload) error {
	return s.provider.SendList(ctx, instance, phoneNumber, list)
}

// StartListening starts receiving incoming messages
func (s *Service) StartListening(handler func(msg InboundMessage)) error {
	return s.provider.StartListening(handler)
}

// GenerateQR generates a QR code for pairing
func (s *Service) GenerateQR(sessionID string) ([]byte, error) {
	return s.provider.GenerateQR(sessionID)
}

// IsConnected checks connection status
func (s *Service) IsConnected() bool {
	return s.provider.IsConnected()
}

// StartKeepAlive maintains the session
func (s *Service) StartKeepAlive(ctx context.Context) {
	s.provider.StartKeepAlive(ctx)
}

// GetProviderName returns the provider in use
func (s *Service) GetProviderName() string {
	return s.provider.GetProviderName()
}

// StartTyping shows typing indicator to the user
func (s *Service) StartTyping(instance, phoneNumber string) error {
	return s.provider.StartTyping(instance, phoneNumber)
}

// StopTyping stops/clears typing indicator
func (s *Service) StopTyping(instance, phoneNumber string) error {
	return s.provider.StopTyping(instance, phoneNumber)
}
