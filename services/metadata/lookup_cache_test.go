package metadata

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"

	"screenscout/models"
)

func TestNormalizeTerm(t *testing.T) {
	tests := map[string]string{
		"Sci-Fi ":   "sci-fi",
		" SCI-FI":   "sci-fi",
		"sci-fi":    "sci-fi",
		"Amélie":    "amelie",
		"  Zombie ": "zombie",
	}
	for input, expect := range tests {
		if got := normalizeTerm(input); got != expect {
			t.Fatalf("normalizeTerm(%q) = %q, want %q", input, got, expect)
		}
	}
}

// keywordFake serves /search/keyword from a fixed table and counts requests.
type keywordFake struct {
	mu    sync.Mutex
	table map[string]int64
	calls int
	fail  map[string]bool
}

func (f *keywordFake) roundTrip(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	query := req.URL.Query().Get("query")
	if f.fail[query] {
		return jsonResponse(http.StatusInternalServerError, `{}`), nil
	}
	if id, ok := f.table[query]; ok {
		return jsonResponse(http.StatusOK, fmt.Sprintf(`{"results":[{"id":%d,"name":%q}]}`, id, query)), nil
	}
	return jsonResponse(http.StatusOK, `{"results":[]}`), nil
}

func (f *keywordFake) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestResolveKeywordsNormalizesAndDedupes(t *testing.T) {
	fake := &keywordFake{table: map[string]int64{"sci-fi": 878, "zombie": 12377}}
	cache := newLookupCache(newTestClient(fake.roundTrip))

	ids, err := cache.resolveKeywords(context.Background(), []string{"Sci-Fi ", "sci-fi", " SCI-FI", "Zombie", "no such keyword"})
	if err != nil {
		t.Fatalf("resolveKeywords failed: %v", err)
	}

	// Three spellings of sci-fi collapse to one lookup; the unmatched phrase
	// contributes nothing.
	if len(ids) != 2 || ids[0] != 878 || ids[1] != 12377 {
		t.Fatalf("unexpected ids: %v", ids)
	}
	if got := fake.callCount(); got != 3 {
		t.Fatalf("expected 3 lookups (sci-fi, zombie, no match), got %d", got)
	}
}

func TestResolveKeywordsIdempotent(t *testing.T) {
	fake := &keywordFake{table: map[string]int64{"heist": 10051}}
	cache := newLookupCache(newTestClient(fake.roundTrip))

	first, err := cache.resolveKeywords(context.Background(), []string{"Heist"})
	if err != nil {
		t.Fatalf("first resolve failed: %v", err)
	}
	callsAfterFirst := fake.callCount()

	second, err := cache.resolveKeywords(context.Background(), []string{"heist "})
	if err != nil {
		t.Fatalf("second resolve failed: %v", err)
	}

	if len(first) != 1 || len(second) != 1 || first[0] != second[0] {
		t.Fatalf("expected identical ids, got %v and %v", first, second)
	}
	if got := fake.callCount(); got != callsAfterFirst {
		t.Fatalf("expected cache hit with zero extra calls, got %d extra", got-callsAfterFirst)
	}
}

func TestResolveKeywordsFailureCachesNothing(t *testing.T) {
	fake := &keywordFake{
		table: map[string]int64{"heist": 10051, "noir": 9807},
		fail:  map[string]bool{"noir": true},
	}
	cache := newLookupCache(newTestClient(fake.roundTrip))

	if _, err := cache.resolveKeywords(context.Background(), []string{"heist", "noir"}); err == nil {
		t.Fatal("expected batch failure when one lookup fails")
	}

	// The failed batch must not have cached the successful phrase either.
	fake.mu.Lock()
	fake.fail = nil
	fake.calls = 0
	fake.mu.Unlock()

	ids, err := cache.resolveKeywords(context.Background(), []string{"heist", "noir"})
	if err != nil {
		t.Fatalf("resolve after recovery failed: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected both ids after recovery, got %v", ids)
	}
	if got := fake.callCount(); got != 2 {
		t.Fatalf("expected both phrases re-fetched after failed batch, got %d calls", got)
	}
}

func TestResolveGenresSingleFetchPerCategory(t *testing.T) {
	var mu sync.Mutex
	var genreCalls int
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		if strings.HasPrefix(req.URL.Path, "/3/genre/movie/list") {
			mu.Lock()
			genreCalls++
			mu.Unlock()
			return jsonResponse(http.StatusOK, `{"genres":[{"id":28,"name":"Action"},{"id":878,"name":"Science Fiction"}]}`), nil
		}
		return jsonResponse(http.StatusNotFound, `{}`), nil
	})
	cache := newLookupCache(client)

	ids, err := cache.resolveGenres(context.Background(), []string{"action"}, models.MediaCategoryMovie)
	if err != nil {
		t.Fatalf("resolveGenres failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != 28 {
		t.Fatalf("unexpected ids: %v", ids)
	}

	// Different names, same category: served from the cached list.
	ids, err = cache.resolveGenres(context.Background(), []string{" SCIENCE FICTION ", "Action", "Unknown Genre"}, models.MediaCategoryMovie)
	if err != nil {
		t.Fatalf("second resolveGenres failed: %v", err)
	}
	if len(ids) != 2 || ids[0] != 878 || ids[1] != 28 {
		t.Fatalf("unexpected ids: %v", ids)
	}

	mu.Lock()
	defer mu.Unlock()
	if genreCalls != 1 {
		t.Fatalf("expected exactly 1 genre list fetch, got %d", genreCalls)
	}
}

func TestResolveGenresFetchFailurePropagates(t *testing.T) {
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusUnauthorized, `{"status_message":"invalid key"}`), nil
	})
	cache := newLookupCache(client)

	if _, err := cache.resolveGenres(context.Background(), []string{"Action"}, models.MediaCategoryTV); err == nil {
		t.Fatal("expected transport failure to propagate")
	}
}
