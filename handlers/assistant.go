package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"screenscout/models"
	assistantpkg "screenscout/services/assistant"
	metadatapkg "screenscout/services/metadata"
)

type assistantService interface {
	ExtractCriteria(context.Context, string) assistantpkg.ExtractionResult
	Chat(context.Context, []models.ChatMessage) (string, error)
}

var _ assistantService = (*assistantpkg.Service)(nil)

// criteriaSearcher is the slice of the metadata service the assistant
// endpoints need.
type criteriaSearcher interface {
	SearchByCriteria(context.Context, models.SearchCriteria, models.SortOption, int) ([]models.MediaResult, bool, error)
}

var _ criteriaSearcher = (*metadatapkg.Service)(nil)

type AssistantHandler struct {
	Assistant assistantService
	Metadata  criteriaSearcher
}

func NewAssistantHandler(assistant assistantService, metadata criteriaSearcher) *AssistantHandler {
	return &AssistantHandler{Assistant: assistant, Metadata: metadata}
}

type assistantSearchRequest struct {
	Query string `json:"query"`
	Sort  string `json:"sort,omitempty"`
	Page  int    `json:"page,omitempty"`
}

// AssistantSearchResponse reports the criteria the model extracted alongside
// the results, so the client can show the user what was understood. Degraded
// marks results produced from the raw query because extraction failed.
type AssistantSearchResponse struct {
	Results       []models.MediaResult  `json:"results"`
	Criteria      models.SearchCriteria `json:"criteria"`
	UsedDiscovery bool                  `json:"usedDiscovery"`
	Degraded      bool                  `json:"degraded,omitempty"`
}

// Search handles POST /api/assistant/search: natural language in, ranked
// titles out. Extraction failures degrade to a plain text search rather than
// erroring, so this endpoint only fails when the metadata lookup itself does.
func (h *AssistantHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req assistantSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	if req.Page < 1 {
		req.Page = 1
	}

	extraction := h.Assistant.ExtractCriteria(r.Context(), query)
	results, usedDiscovery, err := h.Metadata.SearchByCriteria(r.Context(), extraction.Criteria, models.ParseSortOption(req.Sort), req.Page)
	if err != nil {
		log.Printf("[handlers] assistant search failed for %q: %v", query, err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if results == nil {
		results = []models.MediaResult{}
	}
	writeJSON(w, http.StatusOK, AssistantSearchResponse{
		Results:       results,
		Criteria:      extraction.Criteria,
		UsedDiscovery: usedDiscovery,
		Degraded:      extraction.Degraded,
	})
}

type assistantChatRequest struct {
	ConversationID string               `json:"conversationId,omitempty"`
	Messages       []models.ChatMessage `json:"messages"`
}

type assistantChatResponse struct {
	ConversationID string             `json:"conversationId"`
	Message        models.ChatMessage `json:"message"`
}

// Chat handles POST /api/assistant/chat. The client owns the conversation
// history and sends it whole each turn; the server assigns an id on the first
// turn so the client can correlate follow-ups.
func (h *AssistantHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req assistantChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "messages are required")
		return
	}
	if req.ConversationID == "" {
		req.ConversationID = uuid.NewString()
	}

	reply, err := h.Assistant.Chat(r.Context(), req.Messages)
	if err != nil {
		log.Printf("[handlers] assistant chat failed: %v", err)
		var chatErr *assistantpkg.ChatError
		if errors.As(err, &chatErr) && chatErr.Kind == assistantpkg.ChatErrEmptyResponse {
			writeError(w, http.StatusBadGateway, "assistant returned no content")
			return
		}
		writeError(w, http.StatusBadGateway, "assistant is unavailable")
		return
	}

	writeJSON(w, http.StatusOK, assistantChatResponse{
		ConversationID: req.ConversationID,
		Message:        models.ChatMessage{Role: models.ChatRoleAssistant, Content: reply},
	})
}
