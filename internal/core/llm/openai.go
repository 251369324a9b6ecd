package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	openai "github.com/sashabaranov/go-openai"
)

type OpenAIProvider struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
}

func NewOpenAIProvider(apiKey string, model string, temperature float32, maxTokens int) *OpenAIProvider {
	if model == "" {
		model = "gpt-4o-mini"
	}
	if temperature == 0 {
		temperature = 0.7
	}
	if maxTokens == 0 {
		maxTokens = 1024
	}

	return &OpenAIProvider{
		client:      openai.NewClient(apiKey),
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
	}
}

func (p *OpenAIProvider) GetProviderName() string {
	return "OpenAI"
}

func (p *OpenAIProvider) Generate(ctx context.Context, req Request) (*Result, error) {
	resp, err := p.client.CreateChatCompletion(ctx, buildChatRequest(req, p.model, p.temperature, p.maxTokens))
	if err != nil {
		return nil, fmt.Errorf("openai error: %w", classifyError(err))
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from OpenAI")
	}

	return parseChoice(resp.Choices[0]), nil
}

// buildChatRequest maps our provider-neutral request onto the OpenAI wire
// types. Groq shares it because its API is OpenAI-compatible.
func buildChatRequest(req Request, defaultModel string, defaultTemp float32, defaultMaxTokens int) openai.ChatCompletionRequest {
	out := openai.ChatCompletionRequest{
		Model:       req.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if out.Model == "" {
		out.Model = defaultModel
	}
	if out.Temperature == 0 {
		out.Temperature = defaultTemp
	}
	if out.MaxTokens == 0 {
		out.MaxTokens = defaultMaxTokens
	}

	for _, m := range req.Messages {
		out.Messages = append(out.Messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	for _, t := range req.Tools {
		out.Tools = append(out.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}

	return out
}

func parseChoice(choice openai.ChatCompletionChoice) *Result {
	result := &Result{Text: choice.Message.Content}

	for _, tc := range choice.Message.ToolCalls {
		if tc.Type != openai.ToolTypeFunction {
			continue
		}
		args := map[string]interface{}{}
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				log.Printf("⚠️ Failed to parse tool call arguments for %s: %v", tc.Function.Name, err)
				continue
			}
		}
		result.ToolCalls = append(result.ToolCalls, ToolCall{
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}

	return result
}
