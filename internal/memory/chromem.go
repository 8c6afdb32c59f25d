package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"

	"github.com/ziadkadry99/clinrag/internal/embeddings"
)

const collectionName = "memories"

// ChromemStore keeps memories in a local chromem-go collection, one document
// per added exchange.
type ChromemStore struct {
	collection *chromem.Collection
}

// NewChromemStore opens (or creates) a persistent store under dir. An empty
// dir keeps everything in memory.
func NewChromemStore(dir string, embedder embeddings.Embedder) (*ChromemStore, error) {
	var db *chromem.DB
	if dir == "" {
		db = chromem.NewDB()
	} else {
		var err error
		db, err = chromem.NewPersistentDB(dir, true)
		if err != nil {
			return nil, fmt.Errorf("open memory db: %w", err)
		}
	}

	col, err := db.GetOrCreateCollection(collectionName, nil, embeddings.ToChromemFunc(embedder))
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	return &ChromemStore{collection: col}, nil
}

func (s *ChromemStore) Available() bool { return true }

func (s *ChromemStore) Add(ctx context.Context, messages []Message, userID string, metadata map[string]any) (AddResult, error) {
	if userID == "" {
		return AddResult{}, fmt.Errorf("memory add: user id is required")
	}

	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		lines = append(lines, m.Role+": "+m.Content)
	}
	if len(lines) == 0 {
		return AddResult{}, nil
	}

	md := make(map[string]string, len(metadata)+1)
	for k, v := range metadata {
		md[k] = fmt.Sprint(v)
	}
	md["user_id"] = userID

	doc := chromem.Document{
		ID:       uuid.New().String(),
		Content:  strings.Join(lines, "\n"),
		Metadata: md,
	}
	if err := s.collection.AddDocument(ctx, doc); err != nil {
		return AddResult{}, fmt.Errorf("memory add: %w", err)
	}
	return AddResult{IDs: []string{doc.ID}}, nil
}

func (s *ChromemStore) Search(ctx context.Context, query, userID string, limit int, filters map[string]string) ([]Entry, error) {
	if userID == "" {
		return nil, fmt.Errorf("memory search: user id is required")
	}
	if limit <= 0 {
		limit = 5
	}

	// chromem-go requires nResults <= collection size.
	count := s.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if limit > count {
		limit = count
	}

	where := map[string]string{"user_id": userID}
	for k, v := range filters {
		if k != "user_id" {
			where[k] = v
		}
	}

	results, err := s.collection.Query(ctx, query, limit, where, nil)
	if err != nil {
		return nil, fmt.Errorf("memory search: %w", err)
	}

	entries := make([]Entry, len(results))
	for i, r := range results {
		md := make(map[string]any, len(r.Metadata))
		for k, v := range r.Metadata {
			md[k] = v
		}
		entries[i] = Entry{ID: r.ID, Memory: r.Content, Metadata: md, Score: float64(r.Similarity)}
	}
	return entries, nil
}
