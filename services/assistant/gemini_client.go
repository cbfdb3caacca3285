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
	"sync"
	"time"

	retry "github.com/avast/retry-go/v4"

	"screenscout/models"
)

const geminiDefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// geminiProvider talks to the Gemini generateContent API over raw HTTP.
type geminiProvider struct {
	apiKey  string
	model   string
	baseURL string
	httpc   *http.Client

	// Rate limiting
	throttleMu  sync.Mutex
	lastRequest time.Time
	minInterval time.Duration
}

func newGeminiProvider(apiKey, model string, httpc *http.Client) *geminiProvider {
	if httpc == nil {
		httpc = &http.Client{Timeout: 30 * time.Second}
	}
	return &geminiProvider{
		apiKey:      strings.TrimSpace(apiKey),
		model:       model,
		baseURL:     geminiDefaultBaseURL,
		httpc:       httpc,
		minInterval: 100 * time.Millisecond,
	}
}

func (p *geminiProvider) Name() string { return "gemini" }

type geminiRequest struct {
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	Contents          []geminiContent         `json:"contents"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	Temperature      float64 `json:"temperature"`
	MaxOutputTokens  int     `json:"maxOutputTokens"`
	ResponseMIMEType string  `json:"responseMimeType,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error,omitempty"`
}

func (p *geminiProvider) throttle() {
	p.throttleMu.Lock()
	since := time.Since(p.lastRequest)
	if since < p.minInterval {
		time.Sleep(p.minInterval - since)
	}
	p.lastRequest = time.Now()
	p.throttleMu.Unlock()
}

func (p *geminiProvider) Generate(ctx context.Context, genReq GenerateRequest) (string, error) {
	if p.apiKey == "" {
		return "", errors.New("gemini api key not configured")
	}

	body := geminiRequest{
		Contents: make([]geminiContent, 0, len(genReq.Messages)),
		GenerationConfig: &geminiGenerationConfig{
			Temperature:     genReq.Temperature,
			MaxOutputTokens: genReq.MaxOutputTokens,
		},
	}
	if genReq.System != "" {
		body.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: genReq.System}}}
	}
	if genReq.ForceJSON {
		body.GenerationConfig.ResponseMIMEType = "application/json"
	}
	for _, msg := range genReq.Messages {
		role := "user"
		if msg.Role == models.ChatRoleAssistant {
			role = "model"
		}
		body.Contents = append(body.Contents, geminiContent{
			Role:  role,
			Parts: []geminiPart{{Text: msg.Content}},
		})
	}

	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal gemini request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", p.baseURL, p.model, p.apiKey)

	var payload geminiResponse
	attempt := func() error {
		p.throttle()

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
		if err != nil {
			return retry.Unrecoverable(fmt.Errorf("create gemini request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := p.httpc.Do(req)
		if err != nil {
			return fmt.Errorf("gemini request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return fmt.Errorf("gemini request failed: status %d", resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			respBody, _ := io.ReadAll(resp.Body)
			return retry.Unrecoverable(fmt.Errorf("gemini API error %d: %s", resp.StatusCode, string(respBody)))
		}

		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return retry.Unrecoverable(fmt.Errorf("decode gemini response: %w", err))
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
		return "", fmt.Errorf("gemini API error: %s", payload.Error.Message)
	}
	if len(payload.Candidates) == 0 || len(payload.Candidates[0].Content.Parts) == 0 {
		return "", nil
	}
	return payload.Candidates[0].Content.Parts[0].Text, nil
}
