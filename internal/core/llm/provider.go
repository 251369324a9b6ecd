package llm

import (
	"context"
	"fmt"
	"os"
)

// Message roles follow the OpenAI chat convention.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string
	Content string
}

// Tool is a CRM action the model may call instead of (or alongside) replying.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]interface{} // JSON schema
}

// ToolCall is one tool invocation the model requested.
type ToolCall struct {
	Name      string
	Arguments map[string]interface{}
}

// Request is a full generation request: conversation history, sampling
// settings, and the tools the model may use.
type Request struct {
	Model       string
	Messages    []Message
	Temperature float32
	MaxTokens   int
	Tools       []Tool
}

// Result carries the model reply. Text may be empty when the model only
// called tools.
type Result struct {
	Text      string
	ToolCalls []ToolCall
}

// Provider interface for multiple AI providers
type Provider interface {
	Generate(ctx context.Context, req Request) (*Result, error)
	GetProviderName() string
}

// ProviderType for factory
type ProviderType string

const (
	ProviderOpenAI ProviderType = "openai"
	ProviderGroq   ProviderType = "groq"
)

// ProviderConfig to create provider
type ProviderConfig struct {
	Type ProviderType

	// API Keys
	OpenAIKey string
	GroqKey   string

	// Model defaults, overridable per request
	Model       string
	Temperature float32
	MaxTokens   int
}

// NewProvider factory to create LLM provider
func NewProvider(cfg *ProviderConfig) (Provider, error) {
	switch cfg.Type {
	case ProviderOpenAI:
		if cfg.OpenAIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required")
		}
		return NewOpenAIProvider(cfg.OpenAIKey, cfg.Model, cfg.Temperature, cfg.MaxTokens), nil

	case ProviderGroq:
		if cfg.GroqKey == "" {
			return nil, fmt.Errorf("GROQ_API_KEY is required")
		}
		return NewGroqProvider(cfg.GroqKey, cfg.Model, cfg.Temperature, cfg.MaxTokens), nil

	default:
		return nil, fmt.Errorf("unknown LLM provider type: %s", cfg.Type)
	}
}

// LoadProviderFromEnv loads config from environment variables
func LoadProviderFromEnv() (*ProviderConfig, error) {
	providerType := os.Getenv("LLM_PROVIDER")
	if providerType == "" {
		providerType = "openai" // default
	}

	cfg := &ProviderConfig{
		Type:      ProviderType(providerType),
		OpenAIKey: os.Getenv("OPENAI_API_KEY"),
		GroqKey:   os.Getenv("GROQ_API_KEY"),
	}

	if model := os.Getenv("LLM_MODEL"); model != "" {
		cfg.Model = model
	} else {
		switch cfg.Type {
		case ProviderOpenAI:
			cfg.Model = "gpt-4o-mini"
		case ProviderGroq:
			cfg.Model = "llama-3.1-8b-instant"
		}
	}

	cfg.Temperature = 0.7
	cfg.MaxTokens = 1024

	return cfg, nil
}
