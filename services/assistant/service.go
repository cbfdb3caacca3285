package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"screenscout/models"
)

// ChatErrorKind classifies why a chat exchange failed.
type ChatErrorKind string

const (
	ChatErrEmptyResponse   ChatErrorKind = "empty_response"
	ChatErrProviderFailure ChatErrorKind = "provider_failure"
)

// ChatError is returned by Chat. Unlike extraction there is no sensible
// silent fallback for a conversational reply, so chat failures propagate.
type ChatError struct {
	Kind ChatErrorKind
	Err  error
}

func (e *ChatError) Error() string {
	if e.Kind == ChatErrEmptyResponse {
		return "assistant returned no content"
	}
	if e.Err != nil {
		return fmt.Sprintf("assistant provider failed: %v", e.Err)
	}
	return "assistant provider failed"
}

func (e *ChatError) Unwrap() error {
	return e.Err
}

// extractionPrompt defines the criteria-extraction task. The reply contract
// is a single JSON object; a bare search_query means the model judged the
// request to be a plain title lookup.
const extractionPrompt = `You translate a user's free-text request about movies and TV shows into structured search criteria.

Respond with ONLY a JSON object, no other text. Use exactly these fields, omitting any that don't apply:
- "media_type": "movie" or "tv", only when the user clearly asks for one
- "genres": array of genre names, e.g. ["Science Fiction", "Thriller"]
- "keywords": array of short topic phrases, e.g. ["time travel", "heist"]
- "year": release year as an integer, only when the user names one
- "search_query": the title to search for, ONLY when the user is asking for a specific title rather than describing what they want

Examples:
"dark sci-fi shows about space" -> {"media_type": "tv", "genres": ["Science Fiction"], "keywords": ["space"]}
"funny heist movies from 1999" -> {"media_type": "movie", "genres": ["Comedy"], "keywords": ["heist"], "year": 1999}
"The Matrix" -> {"search_query": "The Matrix"}`

// chatPrompt is the persona for conversational recommendations.
const chatPrompt = `You are a friendly, knowledgeable movie and TV enthusiast helping a user decide what to watch. Keep answers conversational and concise. Recommend real titles, mention the year when it helps, and never invent titles that don't exist. When the user's taste is unclear, ask one short clarifying question instead of guessing.`

// extractionReply is the JSON shape the provider is asked to produce.
type extractionReply struct {
	MediaType   string   `json:"media_type"`
	Genres      []string `json:"genres"`
	Keywords    []string `json:"keywords"`
	Year        int      `json:"year"`
	SearchQuery string   `json:"search_query"`
}

// ExtractionResult carries extracted criteria together with an explicit
// degradation marker, so callers can't mistake a raw-query fallback caused by
// a provider failure for a fully structured result.
type ExtractionResult struct {
	Criteria models.SearchCriteria
	Degraded bool
}

// Service wraps one Provider with the two operations the app needs:
// criteria extraction and chat.
type Service struct {
	provider Provider
}

func NewService(provider Provider) *Service {
	return &Service{provider: provider}
}

// ExtractCriteria turns a free-text query into search criteria. It never
// fails outward: any provider or parse failure degrades to criteria carrying
// only the original query.
func (s *Service) ExtractCriteria(ctx context.Context, query string) ExtractionResult {
	query = strings.TrimSpace(query)
	degraded := ExtractionResult{
		Criteria: models.SearchCriteria{RawQuery: query},
		Degraded: true,
	}
	if query == "" || s.provider == nil {
		return degraded
	}

	text, err := s.provider.Generate(ctx, GenerateRequest{
		System:          extractionPrompt,
		Messages:        []models.ChatMessage{{Role: models.ChatRoleUser, Content: query}},
		ForceJSON:       true,
		Temperature:     0.2,
		MaxOutputTokens: 512,
	})
	if err != nil {
		log.Printf("[assistant] %s extraction failed, falling back to raw query: %v", s.provider.Name(), err)
		return degraded
	}
	if strings.TrimSpace(text) == "" {
		log.Printf("[assistant] %s returned empty extraction reply, falling back to raw query", s.provider.Name())
		return degraded
	}

	var reply extractionReply
	if err := json.Unmarshal([]byte(stripCodeFence(text)), &reply); err != nil {
		log.Printf("[assistant] failed to parse extraction reply, falling back to raw query: %v", err)
		return degraded
	}

	criteria := models.SearchCriteria{
		GenreNames:     trimNonEmpty(reply.Genres),
		KeywordPhrases: trimNonEmpty(reply.Keywords),
		Year:           reply.Year,
		RawQuery:       strings.TrimSpace(reply.SearchQuery),
	}
	if category, ok := models.ParseMediaCategory(reply.MediaType); ok {
		criteria.MediaCategory = category
	}
	if !criteria.HasStructured() && criteria.RawQuery == "" {
		criteria.RawQuery = query
	}
	return ExtractionResult{Criteria: criteria}
}

// Chat sends the conversation to the provider and returns the reply. Error
// entries are stripped from the history first; they exist only for client
// display. An empty reply is a ChatError, never substituted text.
func (s *Service) Chat(ctx context.Context, history []models.ChatMessage) (string, error) {
	trimmed := make([]models.ChatMessage, 0, len(history))
	for _, msg := range history {
		if msg.Role != models.ChatRoleUser && msg.Role != models.ChatRoleAssistant {
			continue
		}
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			continue
		}
		trimmed = append(trimmed, models.ChatMessage{Role: msg.Role, Content: content})
	}
	if len(trimmed) == 0 {
		return "", &ChatError{Kind: ChatErrProviderFailure, Err: fmt.Errorf("empty chat history")}
	}

	text, err := s.provider.Generate(ctx, GenerateRequest{
		System:          chatPrompt,
		Messages:        trimmed,
		Temperature:     0.7,
		MaxOutputTokens: 1024,
	})
	if err != nil {
		return "", &ChatError{Kind: ChatErrProviderFailure, Err: err}
	}
	if strings.TrimSpace(text) == "" {
		return "", &ChatError{Kind: ChatErrEmptyResponse}
	}
	return text, nil
}

// stripCodeFence removes a markdown code fence some models wrap JSON replies
// in despite instructions.
func stripCodeFence(s string) string {
	cleaned := strings.TrimSpace(s)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	return strings.TrimSpace(cleaned)
}

func trimNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
