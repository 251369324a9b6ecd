package llm

import (
	"errors"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Typed provider failures. The agent engine stays silent on these instead of
// sending the lead an apology for our billing problems.
var (
	ErrRateLimited    = errors.New("llm provider rate limited")
	ErrQuotaExhausted = errors.New("llm provider quota exhausted")
)

// classifyError maps an OpenAI-compatible API error onto the typed failures.
// Groq speaks the same error shape, so both providers share this.
func classifyError(err error) error {
	var apiErr *openai.APIError
	if !errors.As(err, &apiErr) {
		return err
	}

	if apiErr.HTTPStatusCode == 429 {
		if code, ok := apiErr.Code.(string); ok && strings.Contains(code, "insufficient_quota") {
			return ErrQuotaExhausted
		}
		if strings.Contains(apiErr.Message, "quota") {
			return ErrQuotaExhausted
		}
		return ErrRateLimited
	}
	return err
}
