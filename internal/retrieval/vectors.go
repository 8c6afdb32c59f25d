package retrieval

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/ziadkadry99/clinrag/internal/filestore"
)

const (
	// maxEmbedChars caps the text of one embedding input, in runes.
	maxEmbedChars = 8000

	embedBatchSize  = 64
	maxQueryVectors = 256
)

// similarities returns the cosine similarity of every section to query, or
// nil when no embedder is set or embedding failed. Callers then rank by
// keywords alone.
func (r *KnowledgeRetriever) similarities(ctx context.Context, file filestore.File, sections []string, query string) []float64 {
	if r.embedder == nil || len(sections) == 0 {
		return nil
	}
	qv, err := r.queryVector(ctx, query)
	if err != nil {
		r.log.Warn("query embedding failed, ranking by keywords", "embedder", r.embedder.Name(), "error", err)
		return nil
	}
	svs, err := r.sectionVectors(ctx, file, sections)
	if err != nil {
		r.log.Warn("section embedding failed, ranking by keywords", "embedder", r.embedder.Name(), "file", file.Name, "error", err)
		return nil
	}
	sims := make([]float64, len(sections))
	for i := range sections {
		sims[i] = cosine(qv, svs[i])
	}
	return sims
}

func (r *KnowledgeRetriever) queryVector(ctx context.Context, query string) ([]float32, error) {
	key := strings.ToLower(strings.TrimSpace(query))
	r.mu.RLock()
	v, ok := r.queryVecs[key]
	r.mu.RUnlock()
	if ok {
		return v, nil
	}

	out, err := r.embedder.Embed(ctx, []string{truncateRunes(query, maxEmbedChars)})
	if err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for one query", len(out))
	}

	r.mu.Lock()
	if len(r.queryVecs) >= maxQueryVectors {
		r.queryVecs = make(map[string][]float32)
	}
	r.queryVecs[key] = out[0]
	r.mu.Unlock()
	return out[0], nil
}

// sectionVectors embeds a file's sections once, in batches; concurrent
// callers for the same file share the work.
func (r *KnowledgeRetriever) sectionVectors(ctx context.Context, file filestore.File, sections []string) ([][]float32, error) {
	r.mu.RLock()
	cached, ok := r.vectors[file.ID]
	r.mu.RUnlock()
	if ok && len(cached) == len(sections) {
		return cached, nil
	}

	v, err, _ := r.group.Do("vectors:"+file.ID, func() (any, error) {
		r.mu.RLock()
		cached, ok := r.vectors[file.ID]
		r.mu.RUnlock()
		if ok && len(cached) == len(sections) {
			return cached, nil
		}

		vecs := make([][]float32, 0, len(sections))
		for start := 0; start < len(sections); start += embedBatchSize {
			end := min(start+embedBatchSize, len(sections))
			batch := make([]string, 0, end-start)
			for _, s := range sections[start:end] {
				batch = append(batch, truncateRunes(s, maxEmbedChars))
			}
			out, err := r.embedder.Embed(ctx, batch)
			if err != nil {
				return nil, err
			}
			if len(out) != len(batch) {
				return nil, fmt.Errorf("embedder returned %d vectors for %d sections", len(out), len(batch))
			}
			vecs = append(vecs, out...)
		}
		r.log.Info("document embedded", "file", file.Name, "sections", len(vecs), "embedder", r.embedder.Name())

		r.mu.Lock()
		r.vectors[file.ID] = vecs
		r.mu.Unlock()
		return vecs, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([][]float32), nil
}

// cosine is 0 for empty, mismatched or zero-magnitude vectors.
func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		magA += x * x
		magB += y * y
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
