package metadata

import (
	"context"
	"log"
	"net/http"
	"strings"

	"screenscout/models"
)

// Service is the aggregation layer over TMDB: thin request builders plus the
// query-normalization pipeline that turns extracted search criteria into one
// discovery request.
type Service struct {
	tmdb    *tmdbClient
	lookups *lookupCache
}

func NewService(tmdbAPIKey, language string, httpc *http.Client) *Service {
	client := newTMDBClient(tmdbAPIKey, language, httpc)
	return &Service{
		tmdb:    client,
		lookups: newLookupCache(client),
	}
}

// Search performs a text search. With a recognized category it uses the
// category-specific endpoint; otherwise multi-search, keeping movie/tv only.
func (s *Service) Search(ctx context.Context, category, query string, page int) ([]models.MediaResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []models.MediaResult{}, nil
	}
	if cat, ok := models.ParseMediaCategory(category); ok {
		return s.tmdb.searchTitles(ctx, cat, query, page)
	}
	return s.tmdb.searchMulti(ctx, query, page)
}

// Trending returns the week's trending titles for the given category.
func (s *Service) Trending(ctx context.Context, category string) ([]models.MediaResult, error) {
	cat, ok := models.ParseMediaCategory(category)
	if !ok {
		cat = models.MediaCategoryTV
	}
	return s.tmdb.trending(ctx, cat)
}

// Details fetches one title.
func (s *Service) Details(ctx context.Context, category models.MediaCategory, id int64) (*models.MediaResult, error) {
	return s.tmdb.details(ctx, category, id)
}

// Similar returns titles TMDB lists as similar to the given one.
func (s *Service) Similar(ctx context.Context, category models.MediaCategory, id int64) ([]models.MediaResult, error) {
	return s.tmdb.similar(ctx, category, id)
}

// Recommendations returns TMDB's recommended titles for the given one.
func (s *Service) Recommendations(ctx context.Context, category models.MediaCategory, id int64) ([]models.MediaResult, error) {
	return s.tmdb.recommendations(ctx, category, id)
}

// WatchProviders returns the watch sources for a title in one region.
func (s *Service) WatchProviders(ctx context.Context, category models.MediaCategory, id int64, region string) ([]models.WatchProvider, error) {
	return s.tmdb.watchProviders(ctx, category, id, region)
}

// Discover issues a filtered discovery request for already-resolved criteria.
func (s *Service) Discover(ctx context.Context, criteria models.ResolvedCriteria, page int) ([]models.MediaResult, error) {
	return s.tmdb.discover(ctx, criteria, page)
}

// ResolveCriteria turns genre/keyword names into ids via the lookup cache.
// Uncached keywords are resolved concurrently; a transport failure fails the
// whole call.
func (s *Service) ResolveCriteria(ctx context.Context, criteria models.SearchCriteria, sort models.SortOption) (models.ResolvedCriteria, error) {
	category := criteria.MediaCategory
	if category == "" {
		category = models.MediaCategoryMovie
	}

	resolved := models.ResolvedCriteria{
		MediaCategory: category,
		Year:          criteria.Year,
		Sort:          sort,
	}

	if len(criteria.GenreNames) > 0 {
		genreIDs, err := s.lookups.resolveGenres(ctx, criteria.GenreNames, category)
		if err != nil {
			return models.ResolvedCriteria{}, err
		}
		resolved.GenreIDs = genreIDs
	}
	if len(criteria.KeywordPhrases) > 0 {
		keywordIDs, err := s.lookups.resolveKeywords(ctx, criteria.KeywordPhrases)
		if err != nil {
			return models.ResolvedCriteria{}, err
		}
		resolved.KeywordIDs = keywordIDs
	}
	return resolved, nil
}

// SearchByCriteria runs the full pipeline for extracted criteria: resolve
// names to ids, then discover. Criteria without structure, or whose structure
// resolves to nothing, fall back to a plain text search on the raw query.
// usedDiscovery reports which path produced the results.
func (s *Service) SearchByCriteria(ctx context.Context, criteria models.SearchCriteria, sort models.SortOption, page int) (results []models.MediaResult, usedDiscovery bool, err error) {
	if criteria.HasStructured() {
		resolved, err := s.ResolveCriteria(ctx, criteria, sort)
		if err != nil {
			return nil, false, err
		}
		if len(resolved.GenreIDs) > 0 || len(resolved.KeywordIDs) > 0 || resolved.Year > 0 {
			items, err := s.tmdb.discover(ctx, resolved, page)
			if err != nil {
				return nil, false, err
			}
			return items, true, nil
		}
		log.Printf("[metadata] criteria resolved to nothing (genres=%v keywords=%v); falling back to text search",
			criteria.GenreNames, criteria.KeywordPhrases)
	}

	raw := strings.TrimSpace(criteria.RawQuery)
	if raw == "" {
		return []models.MediaResult{}, false, nil
	}
	items, err := s.Search(ctx, string(criteria.MediaCategory), raw, page)
	if err != nil {
		return nil, false, err
	}
	return items, false, nil
}
