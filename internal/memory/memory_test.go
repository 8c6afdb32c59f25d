package memory

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

type countingStore struct {
	mu       sync.Mutex
	searches int
	adds     int
	results  []Entry
	err      error
}

func (s *countingStore) Search(_ context.Context, query, userID string, _ int, _ map[string]string) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searches++
	if s.err != nil {
		return nil, s.err
	}
	return []Entry{{Memory: userID + ":" + query}}, nil
}

func (s *countingStore) Add(context.Context, []Message, string, map[string]any) (AddResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adds++
	return AddResult{IDs: []string{"m1"}}, nil
}

func (s *countingStore) Available() bool { return true }

func (s *countingStore) searchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.searches
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestCachedStoreHit(t *testing.T) {
	inner := &countingStore{}
	c := NewCachedStore(inner, time.Minute, 10)
	ctx := context.Background()

	first, err := c.Search(ctx, "ansiedad", "u1", 5, nil)
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.Search(ctx, "ansiedad", "u1", 5, nil)
	if err != nil {
		t.Fatal(err)
	}
	if inner.searchCount() != 1 {
		t.Errorf("inner searches = %d, want 1", inner.searchCount())
	}
	if second[0].Memory != first[0].Memory {
		t.Errorf("cached result differs: %v vs %v", second, first)
	}

	if _, err := c.Search(ctx, "ansiedad", "u1", 3, nil); err != nil {
		t.Fatal(err)
	}
	if inner.searchCount() != 2 {
		t.Error("a different limit must not share the cache entry")
	}
}

func TestCachedStoreTTL(t *testing.T) {
	inner := &countingStore{}
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewCachedStore(inner, 5*time.Minute, 10)
	c.now = clock.Now
	ctx := context.Background()

	c.Search(ctx, "q", "u1", 5, nil)
	clock.Advance(4 * time.Minute)
	c.Search(ctx, "q", "u1", 5, nil)
	if inner.searchCount() != 1 {
		t.Fatalf("entry should still be fresh, searches = %d", inner.searchCount())
	}

	clock.Advance(2 * time.Minute)
	c.Search(ctx, "q", "u1", 5, nil)
	if inner.searchCount() != 2 {
		t.Errorf("expired entry was served, searches = %d", inner.searchCount())
	}
}

func TestCachedStoreLRUEviction(t *testing.T) {
	inner := &countingStore{}
	c := NewCachedStore(inner, time.Minute, 2)
	ctx := context.Background()

	c.Search(ctx, "a", "u1", 5, nil)
	c.Search(ctx, "b", "u1", 5, nil)
	c.Search(ctx, "a", "u1", 5, nil) // refresh a
	c.Search(ctx, "c", "u1", 5, nil) // evicts b
	if c.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", c.Len())
	}
	before := inner.searchCount()

	c.Search(ctx, "a", "u1", 5, nil)
	if inner.searchCount() != before {
		t.Error("recently used entry was evicted")
	}
	c.Search(ctx, "b", "u1", 5, nil)
	if inner.searchCount() != before+1 {
		t.Error("least recently used entry should have been evicted")
	}
}

func TestCachedStoreAddInvalidatesUser(t *testing.T) {
	inner := &countingStore{}
	c := NewCachedStore(inner, time.Minute, 10)
	ctx := context.Background()

	c.Search(ctx, "q", "u1", 5, nil)
	c.Search(ctx, "q", "u2", 5, nil)
	if _, err := c.Add(ctx, []Message{{Role: "user", Content: "hola"}}, "u1", nil); err != nil {
		t.Fatal(err)
	}
	if c.Len() != 1 {
		t.Fatalf("Len() = %d, want only u2's entry", c.Len())
	}

	c.Search(ctx, "q", "u2", 5, nil)
	if inner.searchCount() != 2 {
		t.Error("other users' entries should survive an Add")
	}
}

func TestCachedStoreDoesNotCacheErrors(t *testing.T) {
	inner := &countingStore{err: errors.New("down")}
	c := NewCachedStore(inner, time.Minute, 10)

	for i := 0; i < 2; i++ {
		if _, err := c.Search(context.Background(), "q", "u1", 5, nil); err == nil {
			t.Fatal("expected error")
		}
	}
	if inner.searchCount() != 2 || c.Len() != 0 {
		t.Errorf("errors must not be cached: searches=%d len=%d", inner.searchCount(), c.Len())
	}
}

func TestSearchKeyStableAcrossFilterOrder(t *testing.T) {
	a := searchKey("q", "u", 5, map[string]string{"x": "1", "y": "2"})
	b := searchKey("q", "u", 5, map[string]string{"y": "2", "x": "1"})
	if a != b {
		t.Errorf("keys differ: %q vs %q", a, b)
	}
}

// letterEmbedder embeds text as letter frequencies, enough for similarity
// ordering in tests.
type letterEmbedder struct{}

func (letterEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, 27)
		v[26] = 1
		for _, r := range strings.ToLower(text) {
			if r >= 'a' && r <= 'z' {
				v[r-'a']++
			}
		}
		out[i] = v
	}
	return out, nil
}

func (letterEmbedder) Dimensions() int { return 27 }
func (letterEmbedder) Name() string    { return "letters" }

func TestChromemStoreScopesByUser(t *testing.T) {
	s, err := NewChromemStore("", letterEmbedder{})
	if err != nil {
		t.Fatalf("NewChromemStore: %v", err)
	}
	ctx := context.Background()

	got, err := s.Search(ctx, "anything", "u1", 5, nil)
	if err != nil || got != nil {
		t.Fatalf("empty store search = %v, %v", got, err)
	}

	if _, err := s.Add(ctx, []Message{{Role: "user", Content: "paciente con insomnio"}}, "u1", map[string]any{"source": "assistant"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := s.Add(ctx, []Message{{Role: "user", Content: "paciente con fobia"}}, "u2", nil); err != nil {
		t.Fatalf("Add: %v", err)
	}

	got, err = s.Search(ctx, "insomnio", "u1", 10, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected only u1's memory, got %d", len(got))
	}
	if !strings.Contains(got[0].Memory, "insomnio") || got[0].Metadata["source"] != "assistant" {
		t.Errorf("entry = %+v", got[0])
	}

	got, err = s.Search(ctx, "insomnio", "u1", 10, map[string]string{"source": "other"})
	if err != nil || len(got) != 0 {
		t.Errorf("filtered search = %v, %v", got, err)
	}

	if _, err := s.Search(ctx, "x", "", 5, nil); err == nil {
		t.Error("expected error without user id")
	}
}

func TestChromemStorePersists(t *testing.T) {
	dir := t.TempDir()
	s, err := NewChromemStore(dir, letterEmbedder{})
	if err != nil {
		t.Fatalf("NewChromemStore: %v", err)
	}
	if _, err := s.Add(context.Background(), []Message{{Role: "user", Content: "recordar alergia"}}, "u1", nil); err != nil {
		t.Fatalf("Add: %v", err)
	}

	reopened, err := NewChromemStore(dir, letterEmbedder{})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, err := reopened.Search(context.Background(), "alergia", "u1", 5, nil)
	if err != nil || len(got) != 1 {
		t.Fatalf("after reopen: %v, %v", got, err)
	}
}

func TestMem0Store(t *testing.T) {
	var searchBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Token k1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/v2/memories/search/":
			json.NewDecoder(r.Body).Decode(&searchBody)
			w.Write([]byte(`[{"id":"m1","memory":"Prefiere sesiones por la tarde","score":0.9}]`))
		case "/v1/memories/":
			w.Write([]byte(`{"results":[{"id":"m2","event":"ADD","data":{"memory":"x"}}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	s := NewMem0Store("k1").WithBaseURL(srv.URL)
	if !s.Available() {
		t.Fatal("store with key should be available")
	}

	got, err := s.Search(context.Background(), "horario", "u1", 5, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 || got[0].Memory != "Prefiere sesiones por la tarde" || got[0].Score != 0.9 {
		t.Errorf("entries = %+v", got)
	}
	filters, _ := searchBody["filters"].(map[string]any)
	and, _ := filters["AND"].([]any)
	if len(and) != 1 || and[0].(map[string]any)["user_id"] != "u1" {
		t.Errorf("filters = %v", searchBody["filters"])
	}

	res, err := s.Add(context.Background(), []Message{{Role: "user", Content: "hola"}}, "u1", nil)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if len(res.IDs) != 1 || res.IDs[0] != "m2" {
		t.Errorf("add result = %+v", res)
	}
}

func TestMem0StoreUnavailable(t *testing.T) {
	s := NewMem0Store("")
	if s.Available() {
		t.Error("store without key should be unavailable")
	}
	if _, err := s.Search(context.Background(), "q", "u1", 5, nil); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Search err = %v", err)
	}
}

func TestNoop(t *testing.T) {
	var s Store = Noop{}
	if s.Available() {
		t.Error("Noop must be unavailable")
	}
	if _, err := s.Add(context.Background(), nil, "u", nil); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Add err = %v", err)
	}
}
