package retrieval

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"testing"

	"github.com/ziadkadry99/clinrag/internal/config"
	"github.com/ziadkadry99/clinrag/internal/extract"
	"github.com/ziadkadry99/clinrag/internal/filestore"
)

type fakeStore struct {
	mu        sync.Mutex
	files     []filestore.File
	data      map[string][]byte
	listErr   error
	dlErr     error
	downloads int
}

func (f *fakeStore) List(ctx context.Context, folder string) ([]filestore.File, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.files, nil
}

func (f *fakeStore) Download(ctx context.Context, id string) ([]byte, error) {
	f.mu.Lock()
	f.downloads++
	f.mu.Unlock()
	if f.dlErr != nil {
		return nil, f.dlErr
	}
	return f.data[id], nil
}

func (f *fakeStore) Downloads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.downloads
}

type failingExtractor struct{ err error }

func (f failingExtractor) Extract(context.Context, []byte, string) (*extract.Result, error) {
	return nil, f.err
}

func defaultScorer() *Scorer {
	return NewScorer(WeightsFromConfig(config.DefaultConfig().Scoring))
}

func newTestRetriever(store filestore.FileStore, ex extract.TextExtractor) *KnowledgeRetriever {
	return NewKnowledgeRetriever(store, ex, "folder", NewSplitter(SplitterOptions{}), defaultScorer(),
		Options{MaxResults: 5, MinRelevanceScore: 0.7}, nil)
}

var gadDocument = strings.Join([]string{
	"Introducción general al manual. " + strings.Repeat("Texto descriptivo sin relación. ", 20),
	"Trastorno de ansiedad generalizada F41.1. Criterios diagnósticos. Criterio A: Ansiedad y preocupación excesiva que se produce durante más días de los que ha estado ausente.",
	"B. Al individuo le es difícil controlar la preocupación.",
	strings.Repeat("Otra sección narrativa sobre el curso. ", 12),
}, "\n\n")

func dsmStore(text string) *fakeStore {
	return &fakeStore{
		files: []filestore.File{
			{ID: "1", Name: "notas.txt", MimeType: "text/plain"},
			{ID: "2", Name: "DSM5.pdf", MimeType: "text/plain"},
		},
		data: map[string][]byte{"2": []byte(text)},
	}
}

func TestScoreBounds(t *testing.T) {
	vocab := []string{"criterio", "A.", "1.", "F41.1", "trastorno", "ansiedad", "criterios diagnósticos",
		"diagnostic criteria", "criterion B:", "\n", "\n\n", "depresión", "x", "", "2.3", "diagnóstico"}
	rng := rand.New(rand.NewSource(7))
	words := func(n int) string {
		parts := make([]string, n)
		for i := range parts {
			parts[i] = vocab[rng.Intn(len(vocab))]
		}
		return strings.Join(parts, " ")
	}

	s := defaultScorer()
	for i := 0; i < 500; i++ {
		section := words(rng.Intn(200))
		query := words(rng.Intn(8))
		got := s.Score(section, query)
		if got < 0 || got > 1 {
			t.Fatalf("Score out of bounds: %f for query %q", got, query)
		}
	}

	// Saturating weights still clamp.
	heavy := NewScorer(ScoringWeights{Phrase: 5, Word: 5, Code: 5, Criteria: 5, Lettered: 5, Numbered: 5})
	if got := heavy.Score("criterio A: F41.1 ansiedad", "criterio A: F41.1 ansiedad"); got != 1 {
		t.Errorf("expected clamp to 1, got %f", got)
	}
}

func TestScoreGADCriteriaSection(t *testing.T) {
	sections := NewSplitter(SplitterOptions{}).Split(gadDocument)
	query := "trastorno de ansiedad generalizada F41.1"

	r := newTestRetriever(dsmStore(gadDocument), &extract.Router{Plain: extract.PlainExtractor{}})
	outcome, err := r.Retrieve(context.Background(), query, Options{})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	found, ok := outcome.(Found)
	if !ok {
		t.Fatalf("expected Found, got %T", outcome)
	}
	top := found.Results[0]
	if top.RelevanceScore < 0.9 {
		t.Errorf("top score = %f, want >= 0.9", top.RelevanceScore)
	}
	if !strings.Contains(top.Content, "Criterio A:") {
		t.Errorf("criteria section did not rank first: %q", top.Content)
	}
	if top.Source != "DSM-5 (DSM5.pdf, ID: 2)" || top.FileDetails == nil || top.FileDetails.FileID != "2" {
		t.Errorf("unexpected provenance: %+v", top)
	}
	if len(sections) < 3 {
		t.Errorf("expected intro, criteria section and criteria block, got %d sections", len(sections))
	}
}

func TestRetrieveRankingInvariants(t *testing.T) {
	var paras []string
	for i := 0; i < 30; i++ {
		paras = append(paras, fmt.Sprintf("Sección %d sobre ansiedad. %s", i,
			strings.Repeat("ansiedad preocupación ", i%6)+strings.Repeat("relleno narrativo ", 30)))
	}
	r := newTestRetriever(dsmStore(strings.Join(paras, "\n\n")), &extract.Router{Plain: extract.PlainExtractor{}})

	opts := Options{MaxResults: 3, MinRelevanceScore: 0.05}
	outcome, err := r.Retrieve(context.Background(), "ansiedad preocupación", opts)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	results := Results(outcome)
	if len(results) == 0 || len(results) > opts.MaxResults {
		t.Fatalf("got %d results, want 1..%d", len(results), opts.MaxResults)
	}
	for i, res := range results {
		if res.RelevanceScore < opts.MinRelevanceScore {
			t.Errorf("result %d below min: %f", i, res.RelevanceScore)
		}
		if i > 0 && res.RelevanceScore > results[i-1].RelevanceScore {
			t.Errorf("results not sorted at %d", i)
		}
	}
}

func TestRetrieveNeverEmpty(t *testing.T) {
	plain := &extract.Router{Plain: extract.PlainExtractor{}}
	tests := []struct {
		name       string
		store      *fakeStore
		extractor  extract.TextExtractor
		wantType   Outcome
		wantSource string
	}{
		{"no dsm file", &fakeStore{files: []filestore.File{{ID: "1", Name: "otro.pdf"}}}, plain, SourceMissing{}, SourceSearchError},
		{"no extractor", dsmStore("texto"), nil, ExtractionUnavailable{}, SourceSystemMessage},
		{"irrelevant text", dsmStore("Nada que ver con la consulta."), plain, Empty{}, "DSM-5 (DSM5.pdf)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRetriever(tt.store, tt.extractor)
			outcome, err := r.Retrieve(context.Background(), "trastorno bipolar", Options{})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if fmt.Sprintf("%T", outcome) != fmt.Sprintf("%T", tt.wantType) {
				t.Fatalf("outcome = %T, want %T", outcome, tt.wantType)
			}
			results := Results(outcome)
			if len(results) != 1 || results[0].RelevanceScore != 0 || results[0].Source != tt.wantSource {
				t.Errorf("unexpected synthetic results: %+v", results)
			}
		})
	}
}

func TestRetrieveUnsupportedFormatIsUnavailable(t *testing.T) {
	store := dsmStore("%PDF")
	store.files[1].MimeType = "application/pdf"
	r := newTestRetriever(store, &extract.Router{Plain: extract.PlainExtractor{}})

	outcome, err := r.Retrieve(context.Background(), "q", Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := outcome.(ExtractionUnavailable); !ok {
		t.Errorf("expected ExtractionUnavailable, got %T", outcome)
	}
}

func TestRetrieveHardFailures(t *testing.T) {
	boom := errors.New("network down")
	plain := &extract.Router{Plain: extract.PlainExtractor{}}

	listFail := dsmStore("x")
	listFail.listErr = boom
	dlFail := dsmStore("x")
	dlFail.dlErr = boom

	tests := []struct {
		name      string
		store     *fakeStore
		extractor extract.TextExtractor
		op        string
	}{
		{"list", listFail, plain, "list"},
		{"download", dlFail, plain, "download"},
		{"extract", dsmStore("x"), failingExtractor{err: boom}, "extract"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestRetriever(tt.store, tt.extractor).Retrieve(context.Background(), "q", Options{})
			var rErr *RetrievalError
			if !errors.As(err, &rErr) {
				t.Fatalf("expected RetrievalError, got %v", err)
			}
			if rErr.Op != tt.op || !errors.Is(err, boom) {
				t.Errorf("got op %q err %v", rErr.Op, err)
			}
		})
	}
}

func TestRetrieveDownloadsOnceConcurrently(t *testing.T) {
	store := dsmStore(gadDocument)
	r := newTestRetriever(store, &extract.Router{Plain: extract.PlainExtractor{}})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Retrieve(context.Background(), "ansiedad", Options{}); err != nil {
				t.Errorf("Retrieve: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := store.Downloads(); got != 1 {
		t.Errorf("expected 1 download, got %d", got)
	}

	r.Invalidate()
	if _, err := r.Retrieve(context.Background(), "ansiedad", Options{}); err != nil {
		t.Fatal(err)
	}
	if got := store.Downloads(); got != 2 {
		t.Errorf("expected re-download after Invalidate, got %d", got)
	}
}

func TestSelectDocumentPrefersExactName(t *testing.T) {
	files := []filestore.File{
		{ID: "a", Name: "Manual de estilo.pdf"},
		{ID: "b", Name: "dsm5.PDF"},
	}
	f, ok := SelectDocument(files)
	if !ok || f.ID != "b" {
		t.Errorf("SelectDocument = %+v, %v", f, ok)
	}

	f, ok = SelectDocument(files[:1])
	if !ok || f.ID != "a" {
		t.Errorf("expected manual fallback, got %+v", f)
	}
}

func TestResultsFailedNotice(t *testing.T) {
	results := Results(Failed{Err: errors.New("x")})
	if len(results) != 1 || results[0].Content != NoticeRetrievalFailed {
		t.Errorf("unexpected: %+v", results)
	}
	if UsesDSM5(Failed{}) || UsesDSM5(Empty{}) {
		t.Error("synthetic outcomes must not count as DSM-5 use")
	}
}
