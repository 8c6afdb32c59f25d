package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ziadkadry99/clinrag/internal/assistant"
	"github.com/ziadkadry99/clinrag/internal/config"
	"github.com/ziadkadry99/clinrag/internal/db"
	"github.com/ziadkadry99/clinrag/internal/embeddings"
	"github.com/ziadkadry99/clinrag/internal/extract"
	"github.com/ziadkadry99/clinrag/internal/filestore"
	"github.com/ziadkadry99/clinrag/internal/llm"
	"github.com/ziadkadry99/clinrag/internal/logger"
	"github.com/ziadkadry99/clinrag/internal/memory"
	"github.com/ziadkadry99/clinrag/internal/records"
	"github.com/ziadkadry99/clinrag/internal/report"
	"github.com/ziadkadry99/clinrag/internal/retrieval"
	"github.com/ziadkadry99/clinrag/internal/tools"
)

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `clinrag init` to create a config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*logger.Logger, error) {
	if verbose {
		os.Setenv("LOG_LEVEL", "debug")
	}
	return logger.New(cfg.LogMode)
}

// app holds the components shared by the commands. Members a command does
// not ask for stay nil.
type app struct {
	cfg       *config.Config
	log       *logger.Logger
	client    *llm.Client
	retriever report.Retriever
	agent     *report.Agent
	db        *db.DB
	tools     *tools.Dispatcher
	memory    memory.Store
	writer    *assistant.MemoryWriter
	assistant *assistant.Service

	closers []func() error
}

type appParts struct {
	report    bool
	assistant bool
	database  bool
	stage     func(report.Stage)
}

func buildApp(ctx context.Context, parts appParts) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	a := &app{cfg: cfg, log: log}

	provider, err := llm.NewProviderFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating LLM provider: %w", err)
	}

	if parts.report {
		a.client = llm.NewClient(provider, llm.GenerationConfig{
			Model:       cfg.Model,
			Temperature: cfg.Generation.Temperature,
			MaxTokens:   cfg.Generation.MaxTokens,
			TopK:        cfg.Generation.TopK,
		})
		a.retriever = a.newRetriever(ctx)
		opts := []report.AgentOption{report.WithRetrievalOptions(retrieval.Options{
			MaxResults:        cfg.Retrieval.MaxResults,
			MinRelevanceScore: cfg.Retrieval.MinRelevanceScore,
		})}
		if parts.stage != nil {
			opts = append(opts, report.WithStageObserver(parts.stage))
		}
		a.agent, err = report.NewAgent(a.retriever, a.client, log, opts...)
		if err != nil {
			a.Close()
			return nil, err
		}
	}

	if parts.database || parts.assistant {
		a.db, err = db.Open(filepath.Join(cfg.DataDir, "clinrag.db"))
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("opening database: %w", err)
		}
		a.closers = append(a.closers, a.db.Close)
		a.tools = tools.NewDispatcher(records.NewStore(a.db), time.Local, log)
	}

	if parts.assistant {
		if err := a.buildAssistant(ctx, provider); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

// newRetriever returns nil when the DSM-5 source cannot be opened; reports
// are then written without DSM-5 context.
func (a *app) newRetriever(ctx context.Context) report.Retriever {
	rc := a.cfg.Retrieval
	store, folder, err := filestore.NewFromConfig(ctx, rc)
	if err != nil {
		a.log.Warn("DSM-5 source unavailable, reports will use model knowledge only", "error", err)
		return nil
	}
	extractor, closeExtractor, err := extract.NewFromConfig(ctx, rc)
	if err != nil {
		a.log.Warn("text extraction unavailable", "extractor", string(rc.Extractor), "error", err)
		extractor = nil
	} else {
		a.closers = append(a.closers, closeExtractor)
	}
	var opts []retrieval.RetrieverOption
	if rc.Embeddings {
		embedder, err := embeddings.NewFromConfig(a.cfg)
		if err != nil {
			a.log.Warn("embeddings unavailable, DSM-5 ranking is keyword-only", "error", err)
		} else {
			opts = append(opts, retrieval.WithEmbedder(embedder))
		}
	}
	return retrieval.NewKnowledgeRetriever(
		store, extractor, folder,
		retrieval.NewSplitter(retrieval.SplitterOptionsFromConfig(a.cfg.Splitter)),
		retrieval.NewScorer(retrieval.WeightsFromConfig(a.cfg.Scoring)),
		retrieval.Options{MaxResults: rc.MaxResults, MinRelevanceScore: rc.MinRelevanceScore},
		a.log,
		opts...,
	)
}

func (a *app) buildAssistant(ctx context.Context, provider llm.Provider) error {
	ac := a.cfg.Assistant
	chat := llm.NewClient(provider, llm.GenerationConfig{
		Model:       a.cfg.Model,
		Temperature: ac.Temperature,
		MaxTokens:   ac.MaxTokens,
	})

	cache, err := assistant.NewCache(ctx, ac, a.log)
	if err != nil {
		return fmt.Errorf("creating reply cache: %w", err)
	}
	if c, ok := cache.(interface{ Close() error }); ok {
		a.closers = append(a.closers, c.Close)
	}

	a.memory, err = memory.NewFromConfig(a.cfg, a.log)
	if err != nil {
		return fmt.Errorf("creating memory store: %w", err)
	}
	a.writer = assistant.NewMemoryWriter(a.memory, ac.MemoryQueueSize, ac.MemoryWorkers, a.log)
	a.closers = append(a.closers, a.writer.Close)

	a.assistant, err = assistant.NewService(chat, a.log,
		assistant.WithSettings(assistant.SettingsFromConfig(ac)),
		assistant.WithTools(tools.Declarations()),
		assistant.WithMemory(a.memory, a.writer),
		assistant.WithCache(cache),
		assistant.WithBreaker(assistant.NewBreaker(ac.MaxFunctionErrors, ac.BreakerCooldown, time.Now)),
	)
	return err
}

// Close releases components in reverse order of creation. The memory writer
// drains before the database closes.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("closing component", "error", err)
		}
	}
	a.closers = nil
	a.log.Sync()
}
