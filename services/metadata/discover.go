package metadata

import (
	"context"
	"net/url"
	"path"
	"strconv"
	"strings"

	"screenscout/models"
)

// discover translates resolved criteria into one /discover request. When the
// criteria carry no genre ids, no keyword ids and no year, it returns an
// empty result set without touching the network: an unfiltered discovery
// query would just page through the entire catalog.
func (c *tmdbClient) discover(ctx context.Context, criteria models.ResolvedCriteria, page int) ([]models.MediaResult, error) {
	if len(criteria.GenreIDs) == 0 && len(criteria.KeywordIDs) == 0 && criteria.Year == 0 {
		return []models.MediaResult{}, nil
	}

	category := criteria.MediaCategory
	if category == "" {
		category = models.MediaCategoryMovie
	}

	params := url.Values{}
	params.Set("sort_by", discoverSortParam(category, criteria.Sort))
	params.Set("include_adult", "false")
	if len(criteria.GenreIDs) > 0 {
		params.Set("with_genres", joinIDs(criteria.GenreIDs))
	}
	if len(criteria.KeywordIDs) > 0 {
		params.Set("with_keywords", joinIDs(criteria.KeywordIDs))
	}
	if criteria.Year > 0 {
		if category == models.MediaCategoryTV {
			params.Set("first_air_date_year", strconv.Itoa(criteria.Year))
		} else {
			params.Set("primary_release_year", strconv.Itoa(criteria.Year))
		}
	}
	if page > 1 {
		params.Set("page", strconv.Itoa(page))
	}

	var payload tmdbListResponse
	if err := c.doGET(ctx, path.Join("discover", string(category)), params, &payload); err != nil {
		return nil, err
	}

	// Discovery responses omit media_type; tag every item with the requested
	// category.
	results := make([]models.MediaResult, 0, len(payload.Results))
	for _, item := range payload.Results {
		results = append(results, mapTMDBItem(category, item))
	}
	return results, nil
}

// discoverSortParam maps a sort option onto TMDB's sort_by values. The
// release-date column differs between movies and TV shows.
func discoverSortParam(category models.MediaCategory, sort models.SortOption) string {
	switch sort {
	case models.SortRating:
		return "vote_average.desc"
	case models.SortReleaseDate:
		if category == models.MediaCategoryTV {
			return "first_air_date.desc"
		}
		return "primary_release_date.desc"
	default:
		return "popularity.desc"
	}
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}
