package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultMem0BaseURL = "https://api.mem0.ai"

// Mem0Store talks to the hosted mem0 REST API.
type Mem0Store struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewMem0Store creates a mem0 client. An empty key yields a store that
// reports itself unavailable.
func NewMem0Store(apiKey string) *Mem0Store {
	return &Mem0Store{
		apiKey:  apiKey,
		baseURL: defaultMem0BaseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// WithBaseURL points the client at another mem0 deployment.
func (s *Mem0Store) WithBaseURL(u string) *Mem0Store {
	s.baseURL = u
	return s
}

func (s *Mem0Store) Available() bool { return s.apiKey != "" }

type mem0Filters struct {
	AND []map[string]string `json:"AND"`
}

type mem0SearchRequest struct {
	Query   string      `json:"query"`
	Filters mem0Filters `json:"filters"`
	TopK    int         `json:"top_k,omitempty"`
	Version string      `json:"version"`
}

type mem0AddRequest struct {
	Messages []Message      `json:"messages"`
	UserID   string         `json:"user_id"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Version  string         `json:"version"`
}

type mem0Memory struct {
	ID       string         `json:"id"`
	Memory   string         `json:"memory"`
	Metadata map[string]any `json:"metadata"`
	Score    float64        `json:"score"`
	Data     *struct {
		Memory string `json:"memory"`
	} `json:"data,omitempty"`
}

func (s *Mem0Store) Search(ctx context.Context, query, userID string, limit int, filters map[string]string) ([]Entry, error) {
	if !s.Available() {
		return nil, ErrUnavailable
	}

	and := []map[string]string{{"user_id": userID}}
	for k, v := range filters {
		if k != "user_id" {
			and = append(and, map[string]string{k: v})
		}
	}
	body := mem0SearchRequest{
		Query:   query,
		Filters: mem0Filters{AND: and},
		TopK:    limit,
		Version: "v2",
	}

	var raw json.RawMessage
	if err := s.post(ctx, "/v2/memories/search/", body, &raw); err != nil {
		return nil, fmt.Errorf("mem0 search: %w", err)
	}
	memories, err := decodeMemories(raw)
	if err != nil {
		return nil, fmt.Errorf("mem0 search: %w", err)
	}

	entries := make([]Entry, 0, len(memories))
	for _, m := range memories {
		entries = append(entries, m.entry())
	}
	return entries, nil
}

func (s *Mem0Store) Add(ctx context.Context, messages []Message, userID string, metadata map[string]any) (AddResult, error) {
	if !s.Available() {
		return AddResult{}, ErrUnavailable
	}

	var raw json.RawMessage
	err := s.post(ctx, "/v1/memories/", mem0AddRequest{
		Messages: messages,
		UserID:   userID,
		Metadata: metadata,
		Version:  "v2",
	}, &raw)
	if err != nil {
		return AddResult{}, fmt.Errorf("mem0 add: %w", err)
	}
	memories, err := decodeMemories(raw)
	if err != nil {
		return AddResult{}, fmt.Errorf("mem0 add: %w", err)
	}

	var res AddResult
	for _, m := range memories {
		if m.ID != "" {
			res.IDs = append(res.IDs, m.ID)
		}
	}
	return res, nil
}

func (m mem0Memory) entry() Entry {
	text := m.Memory
	if text == "" && m.Data != nil {
		text = m.Data.Memory
	}
	return Entry{ID: m.ID, Memory: text, Metadata: m.Metadata, Score: m.Score}
}

// decodeMemories accepts both a bare list and a {"results": [...]} envelope;
// mem0 answers with either depending on the API version.
func decodeMemories(raw json.RawMessage) ([]mem0Memory, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] == '[' {
		var list []mem0Memory
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, fmt.Errorf("decoding memories: %w", err)
		}
		return list, nil
	}
	var env struct {
		Results []mem0Memory `json:"results"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decoding memories: %w", err)
	}
	return env.Results, nil
}

func (s *Mem0Store) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshaling response: %w", err)
	}
	return nil
}
