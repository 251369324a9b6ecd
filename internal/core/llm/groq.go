package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

type GroqProvider struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
}

func NewGroqProvider(apiKey string, model string, temperature float32, maxTokens int) *GroqProvider {
	if model == "" {
		model = "llama-3.1-8b-instant"
	}
	if temperature == 0 {
		temperature = 0.7
	}
	if maxTokens == 0 {
		maxTokens = 2048
	}

	// Groq uses OpenAI-compatible API with custom base URL
	config := openai.DefaultConfig(apiKey)
	config.BaseURL = "https://api.groq.com/openai/v1"

	return &GroqProvider{
		client:      openai.NewClientWithConfig(config),
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
	}
}

func (p *GroqProvider) GetProviderName() string {
	return "Groq"
}

func (p *GroqProvider) Generate(ctx context.Context, req Request) (*Result, error) {
	resp, err := p.client.CreateChatCompletion(ctx, buildChatRequest(req, p.model, p.temperature, p.maxTokens))
	if err != nil {
		return nil, fmt.Errorf("groq error: %w", classifyError(err))
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from Groq")
	}

	return parseChoice(resp.Choices[0]), nil
}
