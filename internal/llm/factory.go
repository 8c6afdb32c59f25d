package llm

import (
	"fmt"
	"os"

	"github.com/ziadkadry99/clinrag/internal/config"
)

const defaultOllamaHost = "http://localhost:11434"

// NewProvider creates a new LLM provider based on the given provider type and model.
// Supported provider types: "google", "openai", "ollama". A missing API key is
// reported as a *config.ConfigurationError.
func NewProvider(providerType string, model string) (Provider, error) {
	switch config.ProviderType(providerType) {
	case config.ProviderGoogle:
		apiKey, err := config.RequireEnv("GEMINI_API_KEY")
		if err != nil {
			fallback, ferr := config.RequireEnv("GOOGLE_API_KEY")
			if ferr != nil {
				return nil, err
			}
			apiKey = fallback
		}
		return NewGoogleProvider(apiKey, model), nil

	case config.ProviderOpenAI:
		apiKey, err := config.RequireEnv("OPENAI_API_KEY")
		if err != nil {
			return nil, err
		}
		if base := os.Getenv("OPENAI_BASE_URL"); base != "" {
			return NewOpenAIProviderWithBaseURL(apiKey, model, base), nil
		}
		return NewOpenAIProvider(apiKey, model), nil

	case config.ProviderOllama:
		host := os.Getenv("OLLAMA_HOST")
		if host == "" {
			host = defaultOllamaHost
		}
		return NewOllamaProvider(host, model), nil

	default:
		return nil, &config.ConfigurationError{
			Field:  "provider",
			Reason: fmt.Sprintf("unsupported provider type %q", providerType),
		}
	}
}

// NewProviderFromConfig builds the configured provider and wraps it in a rate
// limiter when generation.requests_per_minute is positive.
func NewProviderFromConfig(cfg *config.Config) (Provider, error) {
	p, err := NewProvider(string(cfg.Provider), cfg.Model)
	if err != nil {
		return nil, err
	}
	if cfg.Generation.RequestsPerMinute > 0 {
		p = NewRateLimitedProvider(p, cfg.Generation.RequestsPerMinute)
	}
	return p, nil
}
