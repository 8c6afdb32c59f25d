package config

import "time"

// ProviderType identifies an LLM or embedding provider.
type ProviderType string

const (
	ProviderGoogle ProviderType = "google"
	ProviderOpenAI ProviderType = "openai"
	ProviderOllama ProviderType = "ollama"
)

// FileStoreType selects where the DSM-5 corpus is listed and downloaded from.
type FileStoreType string

const (
	FileStoreDrive FileStoreType = "drive"
	FileStoreGCS   FileStoreType = "gcs"
	FileStoreLocal FileStoreType = "local"
)

// ExtractorType selects the text extraction backend.
type ExtractorType string

const (
	ExtractorDocumentAI ExtractorType = "documentai"
	ExtractorPlain      ExtractorType = "plain"
)

// Config is the top-level clinrag configuration, corresponding to .clinrag.yaml.
type Config struct {
	Provider          ProviderType     `yaml:"provider" koanf:"provider"`
	Model             string           `yaml:"model" koanf:"model"`
	EmbeddingProvider ProviderType     `yaml:"embedding_provider" koanf:"embedding_provider"`
	EmbeddingModel    string           `yaml:"embedding_model" koanf:"embedding_model"`
	DataDir           string           `yaml:"data_dir" koanf:"data_dir"`
	LogMode           string           `yaml:"log_mode" koanf:"log_mode"`
	Generation        GenerationConfig `yaml:"generation" koanf:"generation"`
	Retrieval         RetrievalConfig  `yaml:"retrieval" koanf:"retrieval"`
	Splitter          SplitterConfig   `yaml:"splitter" koanf:"splitter"`
	Scoring           ScoringConfig    `yaml:"scoring" koanf:"scoring"`
	Assistant         AssistantConfig  `yaml:"assistant" koanf:"assistant"`
	Memory            MemoryConfig     `yaml:"memory" koanf:"memory"`
	Server            ServerConfig     `yaml:"server" koanf:"server"`
}

// GenerationConfig fixes the sampling parameters for report generation.
type GenerationConfig struct {
	Temperature       float64 `yaml:"temperature" koanf:"temperature"`
	MaxTokens         int     `yaml:"max_tokens" koanf:"max_tokens"`
	TopK              int     `yaml:"top_k" koanf:"top_k"`
	RequestsPerMinute int     `yaml:"requests_per_minute" koanf:"requests_per_minute"`
}

// RetrievalConfig controls DSM-5 acquisition and ranking.
type RetrievalConfig struct {
	MaxResults        int              `yaml:"max_results" koanf:"max_results"`
	MinRelevanceScore float64          `yaml:"min_relevance_score" koanf:"min_relevance_score"`
	FileStore         FileStoreType    `yaml:"file_store" koanf:"file_store"`
	Folder            string           `yaml:"folder" koanf:"folder"`
	Include           []string         `yaml:"include" koanf:"include"`
	Extractor         ExtractorType    `yaml:"extractor" koanf:"extractor"`
	Embeddings        bool             `yaml:"embeddings" koanf:"embeddings"`
	DocumentAI        DocumentAIConfig `yaml:"documentai" koanf:"documentai"`
}

// DocumentAIConfig names the Document AI processor used for PDF extraction.
type DocumentAIConfig struct {
	ProjectID   string `yaml:"project_id" koanf:"project_id"`
	Location    string `yaml:"location" koanf:"location"`
	ProcessorID string `yaml:"processor_id" koanf:"processor_id"`
}

// SplitterConfig holds the section-splitting thresholds, in characters.
type SplitterConfig struct {
	SectionSize          int `yaml:"section_size" koanf:"section_size"`
	CriteriaMaxSize      int `yaml:"criteria_max_size" koanf:"criteria_max_size"`
	CriteriaEndMinSize   int `yaml:"criteria_end_min_size" koanf:"criteria_end_min_size"`
	CriteriaBlockMinSize int `yaml:"criteria_block_min_size" koanf:"criteria_block_min_size"`
	ShortParagraph       int `yaml:"short_paragraph" koanf:"short_paragraph"`
}

// ScoringConfig holds the relevance-scoring weights.
type ScoringConfig struct {
	Phrase            float64 `yaml:"phrase" koanf:"phrase"`
	Word              float64 `yaml:"word" koanf:"word"`
	WordOccurrenceCap int     `yaml:"word_occurrence_cap" koanf:"word_occurrence_cap"`
	Code              float64 `yaml:"code" koanf:"code"`
	Criteria          float64 `yaml:"criteria" koanf:"criteria"`
	Lettered          float64 `yaml:"lettered" koanf:"lettered"`
	Numbered          float64 `yaml:"numbered" koanf:"numbered"`
	Vector            float64 `yaml:"vector" koanf:"vector"`
}

// AssistantConfig controls the conversational assistant.
type AssistantConfig struct {
	Temperature       float64       `yaml:"temperature" koanf:"temperature"`
	MaxTokens         int           `yaml:"max_tokens" koanf:"max_tokens"`
	MaxResponseLength int           `yaml:"max_response_length" koanf:"max_response_length"`
	CacheTTL          time.Duration `yaml:"cache_ttl" koanf:"cache_ttl"`
	CacheBackend      string        `yaml:"cache_backend" koanf:"cache_backend"`
	HistoryCap        int           `yaml:"history_cap" koanf:"history_cap"`
	MaxFunctionErrors int           `yaml:"max_function_errors" koanf:"max_function_errors"`
	BreakerCooldown   time.Duration `yaml:"breaker_cooldown" koanf:"breaker_cooldown"`
	RetryAttempts     int           `yaml:"retry_attempts" koanf:"retry_attempts"`
	RetryBaseDelay    time.Duration `yaml:"retry_base_delay" koanf:"retry_base_delay"`
	MemoryEnabled     bool          `yaml:"memory_enabled" koanf:"memory_enabled"`
	MemoryMinLength   int           `yaml:"memory_min_length" koanf:"memory_min_length"`
	MemoryLimit       int           `yaml:"memory_limit" koanf:"memory_limit"`
	MemoryQueueSize   int           `yaml:"memory_queue_size" koanf:"memory_queue_size"`
	MemoryWorkers     int           `yaml:"memory_workers" koanf:"memory_workers"`
}

// MemoryConfig selects the long-term memory backend.
type MemoryConfig struct {
	Backend   string        `yaml:"backend" koanf:"backend"`
	CacheTTL  time.Duration `yaml:"cache_ttl" koanf:"cache_ttl"`
	CacheSize int           `yaml:"cache_size" koanf:"cache_size"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port            int  `yaml:"port" koanf:"port"`
	AllowAllOrigins bool `yaml:"allow_all_origins" koanf:"allow_all_origins"`
}
