package assistant

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"screenscout/config"
	"screenscout/models"
)

// GenerateRequest is one request to a text-generation provider: a system
// instruction plus the conversation so far. ForceJSON asks the provider to
// constrain its reply to a JSON object where the API supports that.
type GenerateRequest struct {
	System          string
	Messages        []models.ChatMessage
	ForceJSON       bool
	Temperature     float64
	MaxOutputTokens int
}

// Provider is one text-generation backend. Generate returns the raw text of
// the model's reply; an empty reply is returned as an empty string, not an
// error, so callers decide how to treat it.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// NewProvider selects the configured provider implementation. The two
// implementations are interchangeable: same contract, different wire formats.
func NewProvider(cfg config.AssistantSettings, httpc *http.Client) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "gemini":
		return newGeminiProvider(cfg.GeminiAPIKey, cfg.GeminiModel, httpc), nil
	case "openai", "openai-compatible":
		return newOpenAIProvider(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel, httpc), nil
	default:
		return nil, fmt.Errorf("unsupported assistant provider: %q", cfg.Provider)
	}
}
