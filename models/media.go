package models

import "strings"

// MediaCategory identifies the kind of title a request or result refers to.
type MediaCategory string

const (
	MediaCategoryMovie MediaCategory = "movie"
	MediaCategoryTV    MediaCategory = "tv"
)

// ParseMediaCategory maps the loose spellings clients send ("movies", "show",
// "series", ...) onto a canonical category. The second return is false when
// the input doesn't name a known category.
func ParseMediaCategory(s string) (MediaCategory, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "movie", "movies", "film", "films":
		return MediaCategoryMovie, true
	case "tv", "show", "shows", "series":
		return MediaCategoryTV, true
	default:
		return "", false
	}
}

// SortOption selects the ordering of discovery results.
type SortOption string

const (
	SortPopularity  SortOption = "popularity"
	SortRating      SortOption = "rating"
	SortReleaseDate SortOption = "release_date"
)

// ParseSortOption maps a client string to a sort option, defaulting to
// popularity for anything unrecognized.
func ParseSortOption(s string) SortOption {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rating", "vote_average":
		return SortRating
	case "release_date", "newest":
		return SortReleaseDate
	default:
		return SortPopularity
	}
}

// SearchCriteria is the normalized shape produced by criteria extraction and
// consumed by the discovery pipeline. Empty collections and absent fields are
// treated identically downstream.
type SearchCriteria struct {
	MediaCategory  MediaCategory `json:"mediaType,omitempty"`
	GenreNames     []string      `json:"genres,omitempty"`
	KeywordPhrases []string      `json:"keywords,omitempty"`
	Year           int           `json:"year,omitempty"`
	RawQuery       string        `json:"searchQuery,omitempty"`
}

// HasStructured reports whether any genre/keyword/year criteria are present.
// When false the pipeline falls back to a plain text search on RawQuery.
func (c SearchCriteria) HasStructured() bool {
	return len(c.GenreNames) > 0 || len(c.KeywordPhrases) > 0 || c.Year > 0
}

// ResolvedCriteria is SearchCriteria after genre/keyword names have been
// resolved to TMDB ids. The id slices are deduplicated; order is the insertion
// order of first resolution so requests are reproducible.
type ResolvedCriteria struct {
	MediaCategory MediaCategory `json:"mediaType"`
	GenreIDs      []int64       `json:"genreIds,omitempty"`
	KeywordIDs    []int64       `json:"keywordIds,omitempty"`
	Year          int           `json:"year,omitempty"`
	Sort          SortOption    `json:"sort,omitempty"`
}

// MediaResult is a single title returned by search or discovery. It is built
// per response and never persisted.
type MediaResult struct {
	ID            int64         `json:"id"`
	MediaCategory MediaCategory `json:"mediaType"`
	Title         string        `json:"title"`
	Overview      string        `json:"overview,omitempty"`
	PosterURL     string        `json:"posterUrl,omitempty"`
	BackdropURL   string        `json:"backdropUrl,omitempty"`
	Year          int           `json:"year,omitempty"`
	Popularity    float64       `json:"popularity,omitempty"`
	VoteAverage   float64       `json:"voteAverage,omitempty"`
}

// WatchProvider is a streaming/rental source for a title in one region.
type WatchProvider struct {
	Name    string `json:"name"`
	LogoURL string `json:"logoUrl,omitempty"`
	Kind    string `json:"kind"` // flatrate | rent | buy
}

// Chat message roles. Error entries are kept client-side for display but are
// stripped from the history sent to the provider.
const (
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
	ChatRoleError     = "error"
)

// ChatMessage is one turn of an assistant conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
