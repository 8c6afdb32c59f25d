package report

import (
	"regexp"
	"strings"
)

const (
	criteriaTerms = "criterios diagnósticos criterio A criterio B criterio C criterio D"
	defaultQuery  = "evaluación psicológica general criterios diagnósticos"
)

var diagnosticCodeRe = regexp.MustCompile(`(?i)[A-Z]\d+(\.\d+)?`)

// BuildQuery turns wizard data into a retrieval query. Criteria, reasons
// and areas come first, then the first diagnostic code of each criterion,
// then fixed terms that steer ranking toward criteria sections. Wizard data
// with no clinical text gets the generic default query.
func BuildQuery(data WizardReportData) string {
	parts := []string{
		strings.Join(data.ICDCriteria, " "),
		strings.Join(data.ConsultationReasons, " "),
		strings.Join(data.EvaluationAreas, " "),
	}
	query := strings.TrimSpace(strings.Join(parts, " "))
	if query == "" {
		return defaultQuery
	}

	var codes []string
	for _, c := range data.ICDCriteria {
		if m := diagnosticCodeRe.FindString(c); m != "" {
			codes = append(codes, m)
		}
	}

	if len(codes) > 0 {
		query = query + " " + strings.Join(codes, " ") + " " + criteriaTerms
	} else {
		query = query + " " + criteriaTerms
	}
	return query
}
