package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	retry "github.com/avast/retry-go/v4"

	"screenscout/models"
)

const (
	tmdbBaseURL      = "https://api.themoviedb.org/3"
	tmdbImageBaseURL = "https://image.tmdb.org/t/p"
	// Optimized image sizes instead of "original" to keep payloads small.
	// Posters: w500 is plenty for cards; backdrops: w1280 covers 1080p.
	tmdbPosterSize   = "w500"
	tmdbBackdropSize = "w1280"
)

type tmdbClient struct {
	apiKey   string
	language string
	httpc    *http.Client

	// Rate limiting
	throttleMu  sync.Mutex
	lastRequest time.Time
	minInterval time.Duration
}

func newTMDBClient(apiKey, language string, httpc *http.Client) *tmdbClient {
	if httpc == nil {
		httpc = &http.Client{Timeout: 15 * time.Second}
	}
	return &tmdbClient{
		apiKey:      strings.TrimSpace(apiKey),
		language:    language,
		httpc:       httpc,
		minInterval: 20 * time.Millisecond, // TMDB has generous rate limits
	}
}

func (c *tmdbClient) isConfigured() bool {
	return c != nil && c.apiKey != ""
}

func (c *tmdbClient) throttle() {
	c.throttleMu.Lock()
	since := time.Since(c.lastRequest)
	if since < c.minInterval {
		time.Sleep(c.minInterval - since)
	}
	c.lastRequest = time.Now()
	c.throttleMu.Unlock()
}

// doGET performs one TMDB GET, merging the caller's params with the api_key
// and language parameters. 429/5xx and connection errors are retried up to
// three times with exponential backoff; other failures return immediately.
func (c *tmdbClient) doGET(ctx context.Context, apiPath string, params url.Values, v any) error {
	if !c.isConfigured() {
		return errors.New("tmdb api key not configured")
	}

	endpoint, err := url.JoinPath(tmdbBaseURL, apiPath)
	if err != nil {
		return &TransportError{Kind: TransportErrNetworkOrParse, Endpoint: apiPath, Err: err}
	}

	q := url.Values{}
	for key, vals := range params {
		q[key] = vals
	}
	q.Set("api_key", c.apiKey)
	if q.Get("language") == "" {
		q.Set("language", normalizeLanguage(c.language))
	}
	full := endpoint + "?" + q.Encode()

	attempt := func() error {
		c.throttle()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, full, nil)
		if err != nil {
			return &TransportError{Kind: TransportErrNetworkOrParse, Endpoint: apiPath, Err: err}
		}

		resp, err := c.httpc.Do(req)
		if err != nil {
			return &TransportError{Kind: TransportErrNetworkOrParse, Endpoint: apiPath, Err: err, retryable: true}
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return &TransportError{Kind: TransportErrHTTPStatus, Status: resp.StatusCode, Endpoint: apiPath, retryable: true}
		}
		if resp.StatusCode >= 400 {
			return &TransportError{Kind: TransportErrHTTPStatus, Status: resp.StatusCode, Endpoint: apiPath}
		}

		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			return &TransportError{Kind: TransportErrNetworkOrParse, Endpoint: apiPath, Err: err}
		}
		return nil
	}

	return retry.Do(attempt,
		retry.Attempts(3),
		retry.Delay(300*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.RetryIf(func(err error) bool {
			var te *TransportError
			return errors.As(err, &te) && te.retryable
		}),
	)
}

type tmdbItem struct {
	ID               int64   `json:"id"`
	Name             string  `json:"name"`
	Title            string  `json:"title"`
	Overview         string  `json:"overview"`
	OriginalLanguage string  `json:"original_language"`
	PosterPath       string  `json:"poster_path"`
	BackdropPath     string  `json:"backdrop_path"`
	Popularity       float64 `json:"popularity"`
	VoteAverage      float64 `json:"vote_average"`
	FirstAirDate     string  `json:"first_air_date"`
	ReleaseDate      string  `json:"release_date"`
	MediaType        string  `json:"media_type"`
}

type tmdbListResponse struct {
	Page         int        `json:"page"`
	TotalPages   int        `json:"total_pages"`
	TotalResults int        `json:"total_results"`
	Results      []tmdbItem `json:"results"`
}

type tmdbGenre struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type tmdbGenreListResponse struct {
	Genres []tmdbGenre `json:"genres"`
}

type tmdbKeywordSearchResponse struct {
	Results []struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	} `json:"results"`
}

type tmdbWatchProviderEntry struct {
	ProviderName string `json:"provider_name"`
	LogoPath     string `json:"logo_path"`
}

type tmdbWatchProvidersResponse struct {
	Results map[string]struct {
		Flatrate []tmdbWatchProviderEntry `json:"flatrate"`
		Rent     []tmdbWatchProviderEntry `json:"rent"`
		Buy      []tmdbWatchProviderEntry `json:"buy"`
	} `json:"results"`
}

// searchMulti queries /search/multi and keeps only movie and TV results
// (people and other media types are dropped).
func (c *tmdbClient) searchMulti(ctx context.Context, query string, page int) ([]models.MediaResult, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("include_adult", "false")
	if page > 1 {
		params.Set("page", strconv.Itoa(page))
	}

	var payload tmdbListResponse
	if err := c.doGET(ctx, "search/multi", params, &payload); err != nil {
		return nil, err
	}

	results := make([]models.MediaResult, 0, len(payload.Results))
	for _, item := range payload.Results {
		category, ok := models.ParseMediaCategory(item.MediaType)
		if !ok {
			continue
		}
		results = append(results, mapTMDBItem(category, item))
	}
	return results, nil
}

// searchTitles queries /search/movie or /search/tv. Category-specific search
// responses omit media_type, so every item is tagged with the requested one.
func (c *tmdbClient) searchTitles(ctx context.Context, category models.MediaCategory, query string, page int) ([]models.MediaResult, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("include_adult", "false")
	if page > 1 {
		params.Set("page", strconv.Itoa(page))
	}

	var payload tmdbListResponse
	if err := c.doGET(ctx, path.Join("search", string(category)), params, &payload); err != nil {
		return nil, err
	}

	results := make([]models.MediaResult, 0, len(payload.Results))
	for _, item := range payload.Results {
		results = append(results, mapTMDBItem(category, item))
	}
	return results, nil
}

func (c *tmdbClient) trending(ctx context.Context, category models.MediaCategory) ([]models.MediaResult, error) {
	var payload tmdbListResponse
	if err := c.doGET(ctx, path.Join("trending", string(category), "week"), nil, &payload); err != nil {
		return nil, err
	}

	results := make([]models.MediaResult, 0, len(payload.Results))
	for _, item := range payload.Results {
		results = append(results, mapTMDBItem(category, item))
	}
	return results, nil
}

// searchKeywordID resolves a keyword phrase to its TMDB keyword id. The first
// match wins; ok is false when TMDB knows no such keyword.
func (c *tmdbClient) searchKeywordID(ctx context.Context, phrase string) (int64, bool, error) {
	params := url.Values{}
	params.Set("query", phrase)

	var payload tmdbKeywordSearchResponse
	if err := c.doGET(ctx, "search/keyword", params, &payload); err != nil {
		return 0, false, err
	}
	if len(payload.Results) == 0 {
		return 0, false, nil
	}
	return payload.Results[0].ID, true, nil
}

func (c *tmdbClient) genreList(ctx context.Context, category models.MediaCategory) ([]tmdbGenre, error) {
	var payload tmdbGenreListResponse
	if err := c.doGET(ctx, path.Join("genre", string(category), "list"), nil, &payload); err != nil {
		return nil, err
	}
	return payload.Genres, nil
}

func (c *tmdbClient) details(ctx context.Context, category models.MediaCategory, id int64) (*models.MediaResult, error) {
	var item tmdbItem
	if err := c.doGET(ctx, path.Join(string(category), strconv.FormatInt(id, 10)), nil, &item); err != nil {
		return nil, err
	}
	result := mapTMDBItem(category, item)
	return &result, nil
}

func (c *tmdbClient) similar(ctx context.Context, category models.MediaCategory, id int64) ([]models.MediaResult, error) {
	return c.relatedTitles(ctx, category, id, "similar")
}

func (c *tmdbClient) recommendations(ctx context.Context, category models.MediaCategory, id int64) ([]models.MediaResult, error) {
	return c.relatedTitles(ctx, category, id, "recommendations")
}

func (c *tmdbClient) relatedTitles(ctx context.Context, category models.MediaCategory, id int64, kind string) ([]models.MediaResult, error) {
	var payload tmdbListResponse
	if err := c.doGET(ctx, path.Join(string(category), strconv.FormatInt(id, 10), kind), nil, &payload); err != nil {
		return nil, err
	}

	results := make([]models.MediaResult, 0, len(payload.Results))
	for _, item := range payload.Results {
		results = append(results, mapTMDBItem(category, item))
	}
	return results, nil
}

// watchProviders returns the streaming/rental sources for a title in one
// region. Region filtering is best-effort: a region missing from the response
// map yields an empty list, not an error.
func (c *tmdbClient) watchProviders(ctx context.Context, category models.MediaCategory, id int64, region string) ([]models.WatchProvider, error) {
	var payload tmdbWatchProvidersResponse
	if err := c.doGET(ctx, path.Join(string(category), strconv.FormatInt(id, 10), "watch", "providers"), nil, &payload); err != nil {
		return nil, err
	}

	region = strings.ToUpper(strings.TrimSpace(region))
	if region == "" {
		region = "US"
	}

	entry, ok := payload.Results[region]
	if !ok {
		return []models.WatchProvider{}, nil
	}

	providers := make([]models.WatchProvider, 0, len(entry.Flatrate)+len(entry.Rent)+len(entry.Buy))
	appendProviders := func(list []tmdbWatchProviderEntry, kind string) {
		for _, p := range list {
			providers = append(providers, models.WatchProvider{
				Name:    p.ProviderName,
				LogoURL: buildTMDBImageURL(p.LogoPath, "w92"),
				Kind:    kind,
			})
		}
	}
	appendProviders(entry.Flatrate, "flatrate")
	appendProviders(entry.Rent, "rent")
	appendProviders(entry.Buy, "buy")
	return providers, nil
}

func mapTMDBItem(category models.MediaCategory, item tmdbItem) models.MediaResult {
	return models.MediaResult{
		ID:            item.ID,
		MediaCategory: category,
		Title:         pickTMDBName(category, item.Name, item.Title),
		Overview:      item.Overview,
		PosterURL:     buildTMDBImageURL(item.PosterPath, tmdbPosterSize),
		BackdropURL:   buildTMDBImageURL(item.BackdropPath, tmdbBackdropSize),
		Year:          parseTMDBYear(item.ReleaseDate, item.FirstAirDate),
		Popularity:    item.Popularity,
		VoteAverage:   item.VoteAverage,
	}
}

func pickTMDBName(category models.MediaCategory, seriesName, movieTitle string) string {
	if category == models.MediaCategoryMovie && movieTitle != "" {
		return movieTitle
	}
	if seriesName != "" {
		return seriesName
	}
	return movieTitle
}

func parseTMDBYear(movieDate, seriesDate string) int {
	date := movieDate
	if date == "" {
		date = seriesDate
	}
	if date == "" {
		return 0
	}
	if t, err := time.Parse("2006-01-02", date); err == nil {
		return t.Year()
	}
	if len(date) >= 4 {
		if y, err := strconv.Atoi(date[:4]); err == nil {
			return y
		}
	}
	return 0
}

func buildTMDBImageURL(imagePath, size string) string {
	trimmed := strings.TrimSpace(imagePath)
	if trimmed == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s", tmdbImageBaseURL, path.Join(size, strings.TrimPrefix(trimmed, "/")))
}

func normalizeLanguage(lang string) string {
	lang = strings.ReplaceAll(strings.TrimSpace(lang), "_", "-")
	if len(lang) == 2 {
		return strings.ToLower(lang) + "-US"
	}
	if len(lang) >= 5 {
		return strings.ToLower(lang[:2]) + "-" + strings.ToUpper(lang[3:])
	}
	return "en-US"
}
