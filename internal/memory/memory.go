// Package memory is the assistant's long-term semantic memory: facts and
// exchanges from past conversations, searchable per user.
package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/ziadkadry99/clinrag/internal/config"
	"github.com/ziadkadry99/clinrag/internal/embeddings"
	"github.com/ziadkadry99/clinrag/internal/logger"
)

// ErrUnavailable is returned by stores that are not configured.
var ErrUnavailable = errors.New("memory store unavailable")

// Message is one conversational turn handed to Add.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Entry is a stored memory as returned by Search.
type Entry struct {
	ID       string         `json:"id,omitempty"`
	Memory   string         `json:"memory"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Score    float64        `json:"score,omitempty"`
}

// AddResult lists the memories an Add created.
type AddResult struct {
	IDs []string `json:"ids"`
}

// Store is a per-user semantic memory.
type Store interface {
	Search(ctx context.Context, query, userID string, limit int, filters map[string]string) ([]Entry, error)
	Add(ctx context.Context, messages []Message, userID string, metadata map[string]any) (AddResult, error)
	Available() bool
}

// Noop is the store used when memory is disabled.
type Noop struct{}

func (Noop) Search(context.Context, string, string, int, map[string]string) ([]Entry, error) {
	return nil, ErrUnavailable
}

func (Noop) Add(context.Context, []Message, string, map[string]any) (AddResult, error) {
	return AddResult{}, ErrUnavailable
}

func (Noop) Available() bool { return false }

// NewFromConfig builds the configured memory backend wrapped in a search
// cache. Disabled memory yields Noop.
func NewFromConfig(cfg *config.Config, log *logger.Logger) (Store, error) {
	if !cfg.Assistant.MemoryEnabled {
		return Noop{}, nil
	}

	var store Store
	switch cfg.Memory.Backend {
	case "none":
		return Noop{}, nil
	case "mem0":
		m := NewMem0Store(os.Getenv("MEM0_API_KEY"))
		if !m.Available() {
			log.Warn("MEM0_API_KEY not set, memory capabilities disabled")
		}
		store = m
	case "", "chromem":
		embedder, err := embeddings.NewFromConfig(cfg)
		if err != nil {
			return nil, err
		}
		c, err := NewChromemStore(filepath.Join(cfg.DataDir, "memory"), embedder)
		if err != nil {
			return nil, err
		}
		store = c
	default:
		return nil, &config.ConfigurationError{Field: "memory.backend", Reason: "must be chromem or mem0"}
	}

	return NewCachedStore(store, cfg.Memory.CacheTTL, cfg.Memory.CacheSize), nil
}
