package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"screenscout/config"
	"screenscout/models"
	metadatapkg "screenscout/services/metadata"
)

type metadataService interface {
	Search(context.Context, string, string, int) ([]models.MediaResult, error)
	Trending(context.Context, string) ([]models.MediaResult, error)
	Details(context.Context, models.MediaCategory, int64) (*models.MediaResult, error)
	Similar(context.Context, models.MediaCategory, int64) ([]models.MediaResult, error)
	Recommendations(context.Context, models.MediaCategory, int64) ([]models.MediaResult, error)
	WatchProviders(context.Context, models.MediaCategory, int64, string) ([]models.WatchProvider, error)
	ResolveCriteria(context.Context, models.SearchCriteria, models.SortOption) (models.ResolvedCriteria, error)
	Discover(context.Context, models.ResolvedCriteria, int) ([]models.MediaResult, error)
}

var _ metadataService = (*metadatapkg.Service)(nil)

type MetadataHandler struct {
	Service    metadataService
	CfgManager *config.Manager
}

func NewMetadataHandler(s metadataService, cfgManager *config.Manager) *MetadataHandler {
	return &MetadataHandler{Service: s, CfgManager: cfgManager}
}

// ResultsResponse wraps a result page. Results is always present, never null,
// so clients can iterate without a nil check.
type ResultsResponse struct {
	Results []models.MediaResult `json:"results"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[handlers] failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeResults(w http.ResponseWriter, results []models.MediaResult) {
	if results == nil {
		results = []models.MediaResult{}
	}
	writeJSON(w, http.StatusOK, ResultsResponse{Results: results})
}

func queryPage(r *http.Request) int {
	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			page = parsed
		}
	}
	return page
}

// Search handles GET /api/metadata/search?q=...&type=movie|tv&page=N.
// Without a type it searches movies and TV together.
func (h *MetadataHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeResults(w, nil)
		return
	}
	mediaType := r.URL.Query().Get("type")

	results, err := h.Service.Search(r.Context(), mediaType, query, queryPage(r))
	if err != nil {
		log.Printf("[handlers] search failed: %v", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeResults(w, results)
}

// Trending handles GET /api/metadata/trending?type=movie|tv.
func (h *MetadataHandler) Trending(w http.ResponseWriter, r *http.Request) {
	results, err := h.Service.Trending(r.Context(), r.URL.Query().Get("type"))
	if err != nil {
		log.Printf("[handlers] trending failed: %v", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeResults(w, results)
}

// Discover handles GET /api/metadata/discover with structured criteria
// passed as query params: type, genres, keywords (names, comma separated),
// year, sort, page. Names are resolved to ids before the discovery call.
func (h *MetadataHandler) Discover(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	criteria := models.SearchCriteria{
		GenreNames:     splitCommaList(q.Get("genres")),
		KeywordPhrases: splitCommaList(q.Get("keywords")),
	}
	if category, ok := models.ParseMediaCategory(q.Get("type")); ok {
		criteria.MediaCategory = category
	}
	if raw := q.Get("year"); raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid year")
			return
		}
		criteria.Year = year
	}

	resolved, err := h.Service.ResolveCriteria(r.Context(), criteria, models.ParseSortOption(q.Get("sort")))
	if err != nil {
		log.Printf("[handlers] criteria resolution failed: %v", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	results, err := h.Service.Discover(r.Context(), resolved, queryPage(r))
	if err != nil {
		log.Printf("[handlers] discover failed: %v", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeResults(w, results)
}

// Details handles GET /api/metadata/{type}/{id}.
func (h *MetadataHandler) Details(w http.ResponseWriter, r *http.Request) {
	category, id, ok := pathCategoryAndID(w, r)
	if !ok {
		return
	}
	result, err := h.Service.Details(r.Context(), category, id)
	if err != nil {
		log.Printf("[handlers] details failed for %s/%d: %v", category, id, err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Similar handles GET /api/metadata/{type}/{id}/similar.
func (h *MetadataHandler) Similar(w http.ResponseWriter, r *http.Request) {
	category, id, ok := pathCategoryAndID(w, r)
	if !ok {
		return
	}
	results, err := h.Service.Similar(r.Context(), category, id)
	if err != nil {
		log.Printf("[handlers] similar failed for %s/%d: %v", category, id, err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeResults(w, results)
}

// Recommendations handles GET /api/metadata/{type}/{id}/recommendations.
func (h *MetadataHandler) Recommendations(w http.ResponseWriter, r *http.Request) {
	category, id, ok := pathCategoryAndID(w, r)
	if !ok {
		return
	}
	results, err := h.Service.Recommendations(r.Context(), category, id)
	if err != nil {
		log.Printf("[handlers] recommendations failed for %s/%d: %v", category, id, err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeResults(w, results)
}

// WatchProviders handles GET /api/metadata/{type}/{id}/providers?region=XX.
// The region falls back to the configured default.
func (h *MetadataHandler) WatchProviders(w http.ResponseWriter, r *http.Request) {
	category, id, ok := pathCategoryAndID(w, r)
	if !ok {
		return
	}

	region := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("region")))
	if region == "" && h.CfgManager != nil {
		if settings, err := h.CfgManager.Load(); err == nil {
			region = settings.Metadata.Region
		}
	}

	providers, err := h.Service.WatchProviders(r.Context(), category, id, region)
	if err != nil {
		log.Printf("[handlers] watch providers failed for %s/%d: %v", category, id, err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if providers == nil {
		providers = []models.WatchProvider{}
	}
	writeJSON(w, http.StatusOK, map[string][]models.WatchProvider{"providers": providers})
}

func pathCategoryAndID(w http.ResponseWriter, r *http.Request) (models.MediaCategory, int64, bool) {
	vars := mux.Vars(r)
	category, ok := models.ParseMediaCategory(vars["type"])
	if !ok {
		writeError(w, http.StatusBadRequest, "type must be movie or tv")
		return "", 0, false
	}
	id, err := strconv.ParseInt(vars["id"], 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid id")
		return "", 0, false
	}
	return category, id, true
}

func splitCommaList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
