package llm

import (
	"context"
	"log"
)

// Service wraps an LLM provider for dependency injection
type Service struct {
	provider Provider
}

// NewService creates LLM service with provider from environment
func NewService() *Service {
	cfg, err := LoadProviderFromEnv()
	if err != nil {
		log.Fatalf("❌ Failed to load LLM config: %v", err)
	}

	provider, err := NewProvider(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to create LLM provider: %v", err)
	}

	log.Printf("🤖 Using LLM provider: %s (model: %s)", provider.GetProviderName(), cfg.Model)

	return &Service{provider: provider}
}

// NewServiceWithProvider creates service with custom provider (for testing)
func NewServiceWithProvider(provider Provider) *Service {
	return &Service{provider: provider}
}

// Generate runs one completion against the configured provider
func (s *Service) Generate(ctx context.Context, req Request) (*Result, error) {
	return s.provider.Generate(ctx, req)
}

// GetProviderName returns current provider name
func (s *Service) GetProviderName() string {
	return s.provider.GetProviderName()
}
