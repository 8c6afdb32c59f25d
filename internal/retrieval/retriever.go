package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/ziadkadry99/clinrag/internal/embeddings"
	"github.com/ziadkadry99/clinrag/internal/extract"
	"github.com/ziadkadry99/clinrag/internal/filestore"
	"github.com/ziadkadry99/clinrag/internal/logger"
)

// Options bounds one retrieval. Zero values use the retriever defaults.
type Options struct {
	MaxResults        int     `json:"maxResults"`
	MinRelevanceScore float64 `json:"minRelevanceScore"`
}

// KnowledgeRetriever finds the DSM-5 document in a file store and ranks its
// sections against a query. Sections are cached per file ID.
type KnowledgeRetriever struct {
	store     filestore.FileStore
	extractor extract.TextExtractor
	folder    string
	splitter  *Splitter
	scorer    *Scorer
	embedder  embeddings.Embedder
	defaults  Options
	log       *logger.Logger

	group     singleflight.Group
	mu        sync.RWMutex
	sections  map[string][]string
	vectors   map[string][][]float32
	queryVecs map[string][]float32
}

// RetrieverOption customizes a KnowledgeRetriever.
type RetrieverOption func(*KnowledgeRetriever)

// WithEmbedder blends embedding similarity into section scores. Without an
// embedder, ranking is keyword-only.
func WithEmbedder(e embeddings.Embedder) RetrieverOption {
	return func(r *KnowledgeRetriever) { r.embedder = e }
}

// NewKnowledgeRetriever wires a retriever. A nil extractor means documents
// cannot be read in this process and every retrieval reports
// ExtractionUnavailable.
func NewKnowledgeRetriever(store filestore.FileStore, extractor extract.TextExtractor, folder string,
	splitter *Splitter, scorer *Scorer, defaults Options, log *logger.Logger, opts ...RetrieverOption) *KnowledgeRetriever {
	if log == nil {
		log = logger.Nop()
	}
	r := &KnowledgeRetriever{
		store:     store,
		extractor: extractor,
		folder:    folder,
		splitter:  splitter,
		scorer:    scorer,
		defaults:  defaults,
		log:       log.With("component", "retriever"),
		sections:  make(map[string][]string),
		vectors:   make(map[string][][]float32),
		queryVecs: make(map[string][]float32),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Retrieve ranks the DSM-5 sections for query. Listing, download and
// extraction failures are returned as *RetrievalError.
func (r *KnowledgeRetriever) Retrieve(ctx context.Context, query string, opts Options) (Outcome, error) {
	if opts.MaxResults <= 0 {
		opts.MaxResults = r.defaults.MaxResults
	}
	if opts.MinRelevanceScore <= 0 {
		opts.MinRelevanceScore = r.defaults.MinRelevanceScore
	}

	files, err := r.store.List(ctx, r.folder)
	if err != nil {
		return nil, &RetrievalError{Op: "list", Err: err}
	}
	file, ok := SelectDocument(files)
	if !ok {
		r.log.Warn("no DSM-5 document in folder", "files", len(files))
		return SourceMissing{}, nil
	}
	if r.extractor == nil {
		return ExtractionUnavailable{File: file}, nil
	}

	sections, err := r.loadSections(ctx, file)
	var unsupported *extract.ErrUnsupportedType
	if errors.As(err, &unsupported) {
		r.log.Warn("document format not readable here", "file", file.Name, "mime_type", file.MimeType)
		return ExtractionUnavailable{File: file}, nil
	}
	if err != nil {
		return nil, err
	}

	results := r.rank(ctx, sections, query, opts, file)
	r.log.Debug("retrieval ranked", "sections", len(sections), "results", len(results))
	if len(results) == 0 {
		return Empty{Query: query, File: file}, nil
	}
	return Found{Results: results, File: file}, nil
}

// SelectDocument prefers an exact "dsm5.pdf" and otherwise takes the first
// name containing "dsm" or "manual".
func SelectDocument(files []filestore.File) (filestore.File, bool) {
	for _, f := range files {
		if strings.ToLower(f.Name) == "dsm5.pdf" {
			return f, true
		}
	}
	for _, f := range files {
		name := strings.ToLower(f.Name)
		if strings.Contains(name, "dsm") || strings.Contains(name, "manual") {
			return f, true
		}
	}
	return filestore.File{}, false
}

// loadSections downloads and splits a file once; concurrent callers for the
// same file share the work.
func (r *KnowledgeRetriever) loadSections(ctx context.Context, file filestore.File) ([]string, error) {
	r.mu.RLock()
	cached, ok := r.sections[file.ID]
	r.mu.RUnlock()
	if ok {
		return cached, nil
	}

	v, err, _ := r.group.Do(file.ID, func() (any, error) {
		r.mu.RLock()
		cached, ok := r.sections[file.ID]
		r.mu.RUnlock()
		if ok {
			return cached, nil
		}

		data, err := r.store.Download(ctx, file.ID)
		if err != nil {
			return nil, &RetrievalError{Op: "download", Err: err}
		}
		res, err := r.extractor.Extract(ctx, data, file.MimeType)
		if err != nil {
			var unsupported *extract.ErrUnsupportedType
			if errors.As(err, &unsupported) {
				return nil, err
			}
			return nil, &RetrievalError{Op: "extract", Err: err}
		}
		sections := r.splitter.Split(res.Text)
		r.log.Info("document indexed",
			"file", file.Name,
			"bytes", len(data),
			"chars", len(res.Text),
			"sections", len(sections),
		)

		r.mu.Lock()
		r.sections[file.ID] = sections
		r.mu.Unlock()
		return sections, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}

func (r *KnowledgeRetriever) rank(ctx context.Context, sections []string, query string, opts Options, file filestore.File) []Result {
	type scored struct {
		text  string
		score float64
	}
	sims := r.similarities(ctx, file, sections, query)
	var kept []scored
	for i, section := range sections {
		s := r.scorer.Score(section, query)
		if sims != nil {
			s = r.scorer.Blend(sims[i], s)
		}
		if s >= opts.MinRelevanceScore {
			kept = append(kept, scored{text: section, score: s})
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].score > kept[j].score })
	if len(kept) > opts.MaxResults {
		kept = kept[:opts.MaxResults]
	}

	source := fmt.Sprintf("DSM-5 (%s, ID: %s)", file.Name, file.ID)
	details := &FileDetails{FileName: file.Name, FileID: file.ID, MimeType: file.MimeType}
	out := make([]Result, 0, len(kept))
	for _, k := range kept {
		out = append(out, Result{
			Content:        k.text,
			Source:         source,
			RelevanceScore: k.score,
			FileDetails:    details,
		})
	}
	return out
}

// Invalidate drops cached sections so the next retrieval re-downloads.
func (r *KnowledgeRetriever) Invalidate() {
	r.mu.Lock()
	r.sections = make(map[string][]string)
	r.vectors = make(map[string][][]float32)
	r.queryVecs = make(map[string][]float32)
	r.mu.Unlock()
}
