package config

import "time"

// DefaultModels maps each provider to the model used when none is configured.
var DefaultModels = map[ProviderType]string{
	ProviderGoogle: "gemini-2.5-flash",
	ProviderOpenAI: "gpt-4o-mini",
	ProviderOllama: "llama3",
}

// DefaultEmbeddingModels maps each embedding provider to its default model.
var DefaultEmbeddingModels = map[ProviderType]string{
	ProviderGoogle: "gemini-embedding-001",
	ProviderOpenAI: "text-embedding-3-small",
	ProviderOllama: "nomic-embed-text",
}

// DefaultConfig returns a Config with the production defaults.
func DefaultConfig() *Config {
	return &Config{
		Provider:          ProviderGoogle,
		Model:             DefaultModels[ProviderGoogle],
		EmbeddingProvider: ProviderGoogle,
		EmbeddingModel:    DefaultEmbeddingModels[ProviderGoogle],
		DataDir:           ".clinrag",
		LogMode:           "dev",
		Generation: GenerationConfig{
			Temperature: 0.7,
			MaxTokens:   4096,
			TopK:        3,
		},
		Retrieval: RetrievalConfig{
			MaxResults:        5,
			MinRelevanceScore: 0.7,
			FileStore:         FileStoreDrive,
			Include:           []string{"**/*.pdf", "**/*.txt", "**/*.md"},
			Extractor:         ExtractorDocumentAI,
			Embeddings:        true,
			DocumentAI: DocumentAIConfig{
				Location: "us",
			},
		},
		Splitter: SplitterConfig{
			SectionSize:          500,
			CriteriaMaxSize:      2000,
			CriteriaEndMinSize:   300,
			CriteriaBlockMinSize: 100,
			ShortParagraph:       200,
		},
		Scoring: ScoringConfig{
			Phrase:            0.6,
			Word:              0.1,
			WordOccurrenceCap: 5,
			Code:              0.2,
			Criteria:          0.3,
			Lettered:          0.2,
			Numbered:          0.1,
			Vector:            0.7,
		},
		Assistant: AssistantConfig{
			Temperature:       0.7,
			MaxTokens:         2048,
			MaxResponseLength: 500,
			CacheTTL:          time.Hour,
			CacheBackend:      "memory",
			HistoryCap:        20,
			MaxFunctionErrors: 3,
			RetryAttempts:     3,
			RetryBaseDelay:    500 * time.Millisecond,
			MemoryEnabled:     true,
			MemoryMinLength:   10,
			MemoryLimit:       5,
			MemoryQueueSize:   64,
			MemoryWorkers:     2,
		},
		Memory: MemoryConfig{
			Backend:   "chromem",
			CacheTTL:  5 * time.Minute,
			CacheSize: 100,
		},
		Server: ServerConfig{
			Port: 8080,
		},
	}
}
