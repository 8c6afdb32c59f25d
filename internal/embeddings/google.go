package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const googleEmbedBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"

// GoogleModel represents a supported Google embedding model.
type GoogleModel string

const (
	ModelGeminiEmbedding001 GoogleModel = "gemini-embedding-001"
	ModelTextEmbedding004   GoogleModel = "text-embedding-004"
)

func (m GoogleModel) dimensions() int {
	switch m {
	case ModelTextEmbedding004:
		return 768
	default:
		return 3072
	}
}

// GoogleEmbedder generates embeddings with the Gemini batchEmbedContents API.
type GoogleEmbedder struct {
	apiKey     string
	model      GoogleModel
	baseURL    string
	httpClient *http.Client
}

// NewGoogleEmbedder creates a new Google embedder.
func NewGoogleEmbedder(apiKey string, model GoogleModel) *GoogleEmbedder {
	return &GoogleEmbedder{
		apiKey:     apiKey,
		model:      model,
		baseURL:    googleEmbedBaseURL,
		httpClient: &http.Client{},
	}
}

func (e *GoogleEmbedder) Name() string {
	return string(e.model)
}

func (e *GoogleEmbedder) Dimensions() int {
	return e.model.dimensions()
}

type googleBatchRequest struct {
	Requests []googleEmbedRequest `json:"requests"`
}

type googleEmbedRequest struct {
	Model    string        `json:"model"`
	Content  googleContent `json:"content"`
	TaskType string        `json:"taskType,omitempty"`
}

type googleContent struct {
	Parts []googlePart `json:"parts"`
}

type googlePart struct {
	Text string `json:"text"`
}

type googleBatchResponse struct {
	Embeddings []struct {
		Values []float32 `json:"values"`
	} `json:"embeddings"`
}

func (e *GoogleEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	batch := googleBatchRequest{Requests: make([]googleEmbedRequest, 0, len(texts))}
	for _, text := range texts {
		batch.Requests = append(batch.Requests, googleEmbedRequest{
			Model:    "models/" + string(e.model),
			Content:  googleContent{Parts: []googlePart{{Text: text}}},
			TaskType: "SEMANTIC_SIMILARITY",
		})
	}

	body, err := json.Marshal(batch)
	if err != nil {
		return nil, fmt.Errorf("marshal google embed request: %w", err)
	}

	url := fmt.Sprintf("%s/%s:batchEmbedContents?key=%s", e.baseURL, e.model, e.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create google embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("google embed request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("google embed API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var result googleBatchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode google embed response: %w", err)
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("google returned %d embeddings, expected %d", len(result.Embeddings), len(texts))
	}

	out := make([][]float32, 0, len(texts))
	for _, emb := range result.Embeddings {
		out = append(out, emb.Values)
	}
	return out, nil
}
