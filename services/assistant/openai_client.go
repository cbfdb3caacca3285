package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	retry "github.com/avast/retry-go/v4"

	"screenscout/models"
)

const openaiDefaultBaseURL = "https://api.openai.com/v1"

// openaiProvider talks to an OpenAI-compatible chat-completions endpoint.
// Pointing BaseURL at a local server (Ollama, llama.cpp, vLLM) works too.
type openaiProvider struct {
	baseURL string
	apiKey  string
	model   string
	httpc   *http.Client
}

func newOpenAIProvider(baseURL, apiKey, model string, httpc *http.Client) *openaiProvider {
	if httpc == nil {
		httpc = &http.Client{Timeout: 30 * time.Second}
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = openaiDefaultBaseURL
	}
	return &openaiProvider{
		baseURL: baseURL,
		apiKey:  strings.TrimSpace(apiKey),
		model:   model,
		httpc:   httpc,
	}
}

func (p *openaiProvider) Name() string { return "openai" }

type openaiChatRequest struct {
	Model          string              `json:"model"`
	Messages       []openaiChatMessage `json:"messages"`
	Temperature    float64             `json:"temperature"`
	MaxTokens      int                 `json:"max_tokens,omitempty"`
	ResponseFormat *openaiRespFormat   `json:"response_format,omitempty"`
}

type openaiChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiRespFormat struct {
	Type string `json:"type"`
}

type openaiChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

func (p *openaiProvider) Generate(ctx context.Context, genReq GenerateRequest) (string, error) {
	if p.apiKey == "" && p.baseURL == openaiDefaultBaseURL {
		return "", errors.New("openai api key not configured")
	}

	messages := make([]openaiChatMessage, 0, len(genReq.Messages)+1)
	if genReq.System != "" {
		messages = append(messages, openaiChatMessage{Role: "system", Content: genReq.System})
	}
	for _, msg := range genReq.Messages {
		role := "user"
		if msg.Role == models.ChatRoleAssistant {
			role = "assistant"
		}
		messages = append(messages, openaiChatMessage{Role: role, Content: msg.Content})
	}

	body := openaiChatRequest{
		Model:       p.model,
		Messages:    messages,
		Temperature: genReq.Temperature,
		MaxTokens:   genReq.MaxOutputTokens,
	}
	if genReq.ForceJSON {
		body.ResponseFormat = &openaiRespFormat{Type: "json_object"}
	}

	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal openai request: %w", err)
	}

	endpoint := p.baseURL + "/chat/completions"

	var payload openaiChatResponse
	attempt := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
		if err != nil {
			return retry.Unrecoverable(fmt.Errorf("create openai request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")
		if p.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+p.apiKey)
		}

		resp, err := p.httpc.Do(req)
		if err != nil {
			return fmt.Errorf("openai request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return fmt.Errorf("openai request failed: status %d", resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			respBody, _ := io.ReadAll(resp.Body)
			return retry.Unrecoverable(fmt.Errorf("openai API error %d: %s", resp.StatusCode, string(respBody)))
		}

		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return retry.Unrecoverable(fmt.Errorf("decode openai response: %w", err))
		}
		return nil
	}

	err = retry.Do(attempt,
		retry.Attempts(3),
		retry.Delay(500*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	)
	if err != nil {
		return "", err
	}

	if payload.Error != nil {
		return "", fmt.Errorf("openai API error: %s", payload.Error.Message)
	}
	if len(payload.Choices) == 0 {
		return "", nil
	}
	return payload.Choices[0].Message.Content, nil
}
