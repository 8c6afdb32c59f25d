package embeddings

import (
	"context"
	"fmt"
	"os"

	"github.com/ziadkadry99/clinrag/internal/config"
)

// Embedder turns memory text into vectors for the local memory store.
type Embedder interface {
	// Embed generates embeddings for one or more texts, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the number of dimensions in the embedding vectors.
	Dimensions() int

	// Name returns the name/identifier of the embedding model.
	Name() string
}

// NewFromConfig builds the embedder selected by embedding_provider, falling
// back to the generation provider when unset.
func NewFromConfig(cfg *config.Config) (Embedder, error) {
	provider := cfg.EmbeddingProvider
	if provider == "" {
		provider = cfg.Provider
	}
	model := cfg.EmbeddingModel
	if model == "" {
		model = config.DefaultEmbeddingModels[provider]
	}

	switch provider {
	case config.ProviderOpenAI:
		apiKey, err := config.RequireEnv("OPENAI_API_KEY")
		if err != nil {
			return nil, err
		}
		return NewOpenAIEmbedder(apiKey, OpenAIModel(model)), nil
	case config.ProviderOllama:
		return NewOllamaEmbedder(model, 768, os.Getenv("OLLAMA_HOST")), nil
	case config.ProviderGoogle:
		apiKey, err := config.RequireEnv("GEMINI_API_KEY")
		if err != nil {
			if fallback, ferr := config.RequireEnv("GOOGLE_API_KEY"); ferr == nil {
				return NewGoogleEmbedder(fallback, GoogleModel(model)), nil
			}
			return nil, err
		}
		return NewGoogleEmbedder(apiKey, GoogleModel(model)), nil
	default:
		return nil, &config.ConfigurationError{
			Field:  "embedding_provider",
			Reason: fmt.Sprintf("unsupported embedding provider %q", provider),
		}
	}
}
