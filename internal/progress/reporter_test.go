package progress

import (
	"bytes"
	"strings"
	"testing"

	"github.com/ziadkadry99/clinrag/internal/report"
)

func TestStageObserver(t *testing.T) {
	var buf bytes.Buffer
	observe := StageObserver(&CIReporter{w: &buf})

	for _, s := range []report.Stage{
		report.PreparingQuery,
		report.RetrievingContext,
		report.PreparingPrompt,
		report.GeneratingReport,
		report.Done,
	} {
		observe(s)
	}

	out := buf.String()
	for _, want := range []string{
		"Starting report generation (5 steps)",
		"[1/5] Preparando consulta",
		"[2/5] Buscando en el DSM-5",
		"[4/5] Generando informe",
		"[5/5] Informe listo",
		"Report generation complete",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Count(out, "Starting report generation") != 1 {
		t.Error("reporter started more than once")
	}
}

func TestStageObserverIgnoresUnknown(t *testing.T) {
	var buf bytes.Buffer
	observe := StageObserver(&CIReporter{w: &buf})
	observe(report.Stage("other"))

	if strings.Contains(buf.String(), "[") {
		t.Errorf("unexpected update: %s", buf.String())
	}
}
