package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment overrides. A double underscore
// descends one level: CLINRAG_ASSISTANT__CACHE_TTL -> assistant.cache_ttl.
const EnvPrefix = "CLINRAG_"

// ConfigurationError reports a missing or invalid setting. It is fatal at
// construction time.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s: %s", e.Field, e.Reason)
}

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (CLINRAG_*).
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	cfg := DefaultConfig()

	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

var validProviders = map[ProviderType]bool{
	ProviderGoogle: true,
	ProviderOpenAI: true,
	ProviderOllama: true,
}

var validFileStores = map[FileStoreType]bool{
	FileStoreDrive: true,
	FileStoreGCS:   true,
	FileStoreLocal: true,
}

// Validate checks that the configuration contains usable values.
func (c *Config) Validate() error {
	if c.Provider == "" {
		return &ConfigurationError{Field: "provider", Reason: "is required"}
	}
	if !validProviders[c.Provider] {
		return &ConfigurationError{Field: "provider", Reason: fmt.Sprintf("%q must be one of google, openai, ollama", c.Provider)}
	}
	if c.Model == "" {
		return &ConfigurationError{Field: "model", Reason: "is required"}
	}
	if c.EmbeddingProvider != "" && !validProviders[c.EmbeddingProvider] {
		return &ConfigurationError{Field: "embedding_provider", Reason: fmt.Sprintf("unknown provider %q", c.EmbeddingProvider)}
	}
	if c.DataDir == "" {
		return &ConfigurationError{Field: "data_dir", Reason: "is required"}
	}

	g := c.Generation
	if g.Temperature < 0 || g.Temperature > 2 {
		return &ConfigurationError{Field: "generation.temperature", Reason: "must be within [0,2]"}
	}
	if g.MaxTokens <= 0 {
		return &ConfigurationError{Field: "generation.max_tokens", Reason: "must be positive"}
	}
	if g.TopK < 0 {
		return &ConfigurationError{Field: "generation.top_k", Reason: "must be non-negative"}
	}

	r := c.Retrieval
	if r.MaxResults <= 0 {
		return &ConfigurationError{Field: "retrieval.max_results", Reason: "must be positive"}
	}
	if r.MinRelevanceScore < 0 || r.MinRelevanceScore > 1 {
		return &ConfigurationError{Field: "retrieval.min_relevance_score", Reason: "must be within [0,1]"}
	}
	if !validFileStores[r.FileStore] {
		return &ConfigurationError{Field: "retrieval.file_store", Reason: fmt.Sprintf("%q must be one of drive, gcs, local", r.FileStore)}
	}

	if v := c.Scoring.Vector; v <= 0 || v > 1 {
		return &ConfigurationError{Field: "scoring.vector", Reason: "must be within (0,1]"}
	}

	s := c.Splitter
	if s.SectionSize <= 0 || s.CriteriaMaxSize <= s.SectionSize {
		return &ConfigurationError{Field: "splitter", Reason: "criteria_max_size must exceed a positive section_size"}
	}

	a := c.Assistant
	if a.MaxResponseLength <= 0 {
		return &ConfigurationError{Field: "assistant.max_response_length", Reason: "must be positive"}
	}
	if a.CacheTTL <= 0 {
		return &ConfigurationError{Field: "assistant.cache_ttl", Reason: "must be positive"}
	}
	if a.HistoryCap <= 0 {
		return &ConfigurationError{Field: "assistant.history_cap", Reason: "must be positive"}
	}
	if a.CacheBackend != "memory" && a.CacheBackend != "redis" {
		return &ConfigurationError{Field: "assistant.cache_backend", Reason: "must be memory or redis"}
	}
	if c.Memory.Backend != "chromem" && c.Memory.Backend != "mem0" && c.Memory.Backend != "none" {
		return &ConfigurationError{Field: "memory.backend", Reason: "must be chromem, mem0 or none"}
	}

	return nil
}

// APIKeyEnvVar returns the environment variable holding the API key of the
// given provider.
func APIKeyEnvVar(provider ProviderType) string {
	switch provider {
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderGoogle:
		return "GEMINI_API_KEY"
	default:
		return ""
	}
}

// RequireEnv returns the value of the named variable or a ConfigurationError.
func RequireEnv(name string) (string, error) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return "", &ConfigurationError{Field: name, Reason: "environment variable is not set"}
	}
	return v, nil
}
