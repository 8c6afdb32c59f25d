// Package report orchestrates clinical report generation: query building,
// DSM-5 retrieval, prompt assembly and generation.
package report

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/ziadkadry99/clinrag/internal/config"
	"github.com/ziadkadry99/clinrag/internal/logger"
	"github.com/ziadkadry99/clinrag/internal/prompt"
	"github.com/ziadkadry99/clinrag/internal/retrieval"
)

// Retriever finds DSM-5 passages for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, opts retrieval.Options) (retrieval.Outcome, error)
}

// Generator produces report text from a prompt.
type Generator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
	ModelName() string
}

// Agent generates clinical reports. A nil retriever means no DSM-5 source is
// configured; reports are then written from model knowledge alone.
type Agent struct {
	retriever Retriever
	generator Generator
	retrieval retrieval.Options
	now       func() time.Time
	log       *logger.Logger
	onStage   func(Stage)
}

// AgentOption customizes an Agent.
type AgentOption func(*Agent)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) AgentOption {
	return func(a *Agent) { a.now = now }
}

// WithStageObserver registers a callback invoked on every stage transition.
func WithStageObserver(fn func(Stage)) AgentOption {
	return func(a *Agent) { a.onStage = fn }
}

// WithRetrievalOptions overrides the retriever's default ranking limits.
func WithRetrievalOptions(opts retrieval.Options) AgentOption {
	return func(a *Agent) { a.retrieval = opts }
}

// NewAgent creates a report agent.
func NewAgent(r Retriever, g Generator, log *logger.Logger, opts ...AgentOption) (*Agent, error) {
	if g == nil {
		return nil, &config.ConfigurationError{Field: "generator", Reason: "a text generator is required for report generation"}
	}
	if log == nil {
		log = logger.Nop()
	}
	a := &Agent{
		retriever: r,
		generator: g,
		now:       time.Now,
		log:       log.With("component", "report"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

func (a *Agent) enter(s Stage) {
	a.log.Debug("report stage", "stage", string(s))
	if a.onStage != nil {
		a.onStage(s)
	}
}

// GenerateReport runs the whole workflow. Retrieval failures degrade to a
// report without DSM-5 context; only a generation failure is returned, as a
// *WorkflowError.
func (a *Agent) GenerateReport(ctx context.Context, data WizardReportData, opts Options) (*Result, error) {
	start := a.now()

	a.enter(PreparingQuery)
	query := BuildQuery(data)

	a.enter(RetrievingContext)
	outcome := a.retrieve(ctx, query)

	a.enter(PreparingPrompt)
	p := prompt.Assemble(outcome, data.ReportType, data.PatientData())

	a.enter(GeneratingReport)
	text, err := a.generator.GenerateText(ctx, p.Text)
	if err != nil {
		a.log.Error("report generation failed", "patient_id", data.PatientID, "error", err)
		return nil, &WorkflowError{Stage: GeneratingReport, Err: err}
	}
	end := a.now()

	a.enter(Done)
	a.log.Info("report generated",
		"patient_id", data.PatientID,
		"report_type", string(data.ReportType),
		"using_dsm5", p.UsingDSM5,
		"duration", end.Sub(start),
	)

	return &Result{
		ReportText: text,
		Query:      query,
		Prompt:     p.Text,
		Metadata: Metadata{
			GenerationTime:  end.Sub(start).Milliseconds(),
			ModelName:       a.generator.ModelName(),
			QueryLength:     utf8.RuneCountInString(query),
			PromptLength:    utf8.RuneCountInString(p.Text),
			ReportLength:    utf8.RuneCountInString(text),
			RetrievalCount:  p.RetrievalCount,
			StartTime:       start.UTC(),
			EndTime:         end.UTC(),
			UsingDSM5:       p.UsingDSM5,
			DSM5FileDetails: p.File,
			Options:         opts,
		},
	}, nil
}

func (a *Agent) retrieve(ctx context.Context, query string) retrieval.Outcome {
	if a.retriever == nil {
		a.enter(DegradedRetrieval)
		a.log.Warn("no DSM-5 retriever configured, continuing with model knowledge only")
		return retrieval.SourceMissing{}
	}
	outcome, err := a.retriever.Retrieve(ctx, query, a.retrieval)
	if err != nil {
		a.enter(DegradedRetrieval)
		a.log.Warn("DSM-5 retrieval failed, continuing with model knowledge only", "error", err)
		return retrieval.Failed{Err: err}
	}
	return outcome
}
