// Package progress renders report workflow progress on the terminal.
package progress

import (
	"fmt"
	"io"
	"os"

	"github.com/schollz/progressbar/v3"

	"github.com/ziadkadry99/clinrag/internal/report"
)

// Reporter provides progress feedback during report generation.
type Reporter interface {
	Start(total int)
	Update(current int, message string)
	Finish()
}

// NewReporter returns a TerminalReporter if running in an interactive terminal,
// or a CIReporter if the CI environment variable is set.
func NewReporter() Reporter {
	if os.Getenv("CI") != "" || os.Getenv("GITHUB_ACTIONS") != "" {
		return &CIReporter{w: os.Stderr}
	}
	return &TerminalReporter{}
}

// TerminalReporter displays a progress bar in the terminal.
type TerminalReporter struct {
	bar *progressbar.ProgressBar
}

func (r *TerminalReporter) Start(total int) {
	r.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("Generando informe"),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

func (r *TerminalReporter) Update(current int, message string) {
	if r.bar != nil {
		r.bar.Describe(message)
		_ = r.bar.Set(current)
	}
}

func (r *TerminalReporter) Finish() {
	if r.bar != nil {
		_ = r.bar.Finish()
	}
}

// CIReporter prints line-by-line progress suitable for CI logs.
type CIReporter struct {
	w     io.Writer
	total int
}

func (r *CIReporter) Start(total int) {
	r.total = total
	fmt.Fprintf(r.out(), "Starting report generation (%d steps)\n", total)
}

func (r *CIReporter) Update(current int, message string) {
	fmt.Fprintf(r.out(), "[%d/%d] %s\n", current, r.total, message)
}

func (r *CIReporter) Finish() {
	fmt.Fprintln(r.out(), "Report generation complete")
}

func (r *CIReporter) out() io.Writer {
	if r.w == nil {
		return os.Stderr
	}
	return r.w
}

var stageSteps = map[report.Stage]struct {
	step    int
	message string
}{
	report.PreparingQuery:    {1, "Preparando consulta"},
	report.RetrievingContext: {2, "Buscando en el DSM-5"},
	report.DegradedRetrieval: {2, "Continuando sin contexto DSM-5"},
	report.PreparingPrompt:   {3, "Preparando instrucciones"},
	report.GeneratingReport:  {4, "Generando informe"},
	report.Done:              {5, "Informe listo"},
}

// StageCount is the number of steps a report run reports.
const StageCount = 5

// StageObserver adapts a Reporter to report.WithStageObserver. Unknown
// stages are ignored; Done finishes the reporter.
func StageObserver(r Reporter) func(report.Stage) {
	started := false
	return func(s report.Stage) {
		if !started {
			r.Start(StageCount)
			started = true
		}
		st, ok := stageSteps[s]
		if !ok {
			return
		}
		r.Update(st.step, st.message)
		if s == report.Done {
			r.Finish()
		}
	}
}
