package metadata

import (
	"context"
	"strings"
	"sync"

	"github.com/mozillazg/go-unidecode"
	"github.com/sourcegraph/conc/pool"

	"screenscout/models"
)

// lookupCache memoizes keyword-phrase→id and genre-name→id mappings for the
// lifetime of the process. Entries are immutable once written and never
// expire. The cache is injectable so tests get a fresh instance per case.
type lookupCache struct {
	client *tmdbClient

	mu       sync.Mutex
	keywords map[string]int64
	genres   map[models.MediaCategory]map[string]int64

	// genreFetchMu serializes the one-time genre list fetch per category so
	// concurrent first lookups don't both hit the network.
	genreFetchMu sync.Mutex
}

func newLookupCache(client *tmdbClient) *lookupCache {
	return &lookupCache{
		client:   client,
		keywords: make(map[string]int64),
		genres:   make(map[models.MediaCategory]map[string]int64),
	}
}

// normalizeTerm is the cache-key normalization: transliterate to ASCII,
// trim, lowercase. "Sci-Fi ", "sci-fi" and " SCI-FI" all collapse to the
// same entry.
func normalizeTerm(s string) string {
	return strings.ToLower(strings.TrimSpace(unidecode.Unidecode(s)))
}

// resolveKeywords maps keyword phrases to TMDB keyword ids. Uncached phrases
// are looked up concurrently; phrases with no match are silently dropped. A
// transport failure fails the whole call and nothing from that batch is
// cached. Returned ids are deduplicated, in first-resolution order.
func (lc *lookupCache) resolveKeywords(ctx context.Context, phrases []string) ([]int64, error) {
	seen := make(map[string]struct{}, len(phrases))
	ordered := make([]string, 0, len(phrases))
	for _, phrase := range phrases {
		term := normalizeTerm(phrase)
		if term == "" {
			continue
		}
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}
		ordered = append(ordered, term)
	}
	if len(ordered) == 0 {
		return nil, nil
	}

	resolved := make(map[string]int64, len(ordered))
	var missing []string
	lc.mu.Lock()
	for _, term := range ordered {
		if id, ok := lc.keywords[term]; ok {
			resolved[term] = id
		} else {
			missing = append(missing, term)
		}
	}
	lc.mu.Unlock()

	if len(missing) > 0 {
		type keywordHit struct {
			term  string
			id    int64
			found bool
		}

		p := pool.NewWithResults[keywordHit]().WithContext(ctx).WithCancelOnError().WithFirstError()
		for _, term := range missing {
			term := term
			p.Go(func(ctx context.Context) (keywordHit, error) {
				id, found, err := lc.client.searchKeywordID(ctx, term)
				if err != nil {
					return keywordHit{}, err
				}
				return keywordHit{term: term, id: id, found: found}, nil
			})
		}
		hits, err := p.Wait()
		if err != nil {
			return nil, err
		}

		lc.mu.Lock()
		for _, hit := range hits {
			if !hit.found {
				continue
			}
			lc.keywords[hit.term] = hit.id
			resolved[hit.term] = hit.id
		}
		lc.mu.Unlock()
	}

	ids := make([]int64, 0, len(resolved))
	used := make(map[int64]struct{}, len(resolved))
	for _, term := range ordered {
		id, ok := resolved[term]
		if !ok {
			continue
		}
		if _, dup := used[id]; dup {
			continue
		}
		used[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

// resolveGenres maps genre names to TMDB genre ids for one category. The
// category's full genre list is fetched once and served from memory after
// that; names TMDB doesn't know are dropped.
func (lc *lookupCache) resolveGenres(ctx context.Context, names []string, category models.MediaCategory) ([]int64, error) {
	byName, err := lc.genreTable(ctx, category)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(names))
	used := make(map[int64]struct{}, len(names))
	for _, name := range names {
		id, ok := byName[normalizeTerm(name)]
		if !ok {
			continue
		}
		if _, dup := used[id]; dup {
			continue
		}
		used[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

func (lc *lookupCache) genreTable(ctx context.Context, category models.MediaCategory) (map[string]int64, error) {
	lc.genreFetchMu.Lock()
	defer lc.genreFetchMu.Unlock()

	lc.mu.Lock()
	table, ok := lc.genres[category]
	lc.mu.Unlock()
	if ok {
		return table, nil
	}

	list, err := lc.client.genreList(ctx, category)
	if err != nil {
		return nil, err
	}

	table = make(map[string]int64, len(list))
	for _, genre := range list {
		table[normalizeTerm(genre.Name)] = genre.ID
	}

	lc.mu.Lock()
	lc.genres[category] = table
	lc.mu.Unlock()
	return table, nil
}
