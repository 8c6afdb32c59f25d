package prompt

import (
	"embed"
	"strings"
)

//go:embed templates/*.md
var templateFS embed.FS

func mustTemplate(name string) string {
	data, err := templateFS.ReadFile("templates/" + name)
	if err != nil {
		panic("prompt: missing embedded template " + name)
	}
	return string(data)
}

var (
	baseTemplate       = mustTemplate("base.md")
	evaluationTemplate = mustTemplate("evaluacion-psicologica.md")
	followUpTemplate   = mustTemplate("seguimiento-terapeutico.md")
)

// TemplateFor returns the instruction template of a report type. Only the
// psychological evaluation and therapeutic follow-up have dedicated
// templates; the rest share the base one, which takes the section list
// through {{reportStructure}}.
func TemplateFor(t ReportType) string {
	switch t {
	case PsychologicalEvaluation:
		return evaluationTemplate
	case TherapeuticFollowUp:
		return followUpTemplate
	default:
		return baseTemplate
	}
}

// Fill replaces {{key}} placeholders in a single pass, so placeholder-like
// text inside a value is left alone.
func Fill(template string, values map[string]string) string {
	pairs := make([]string, 0, 2*len(values))
	for key, value := range values {
		pairs = append(pairs, "{{"+key+"}}", value)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}
