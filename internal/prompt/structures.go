package prompt

import (
	"fmt"
	"strings"
)

// ReportType names one of the six clinical report kinds.
type ReportType string

const (
	PsychologicalEvaluation      ReportType = "evaluacion-psicologica"
	TherapeuticFollowUp          ReportType = "seguimiento-terapeutico"
	NeuropsychologicalEvaluation ReportType = "evaluacion-neuropsicologica"
	FamilyReport                 ReportType = "informe-familiar"
	EducationalReport            ReportType = "informe-educativo"
	TherapeuticDischarge         ReportType = "alta-terapeutica"
)

// ReportTypes lists every supported type in wizard order.
var ReportTypes = []ReportType{
	PsychologicalEvaluation,
	TherapeuticFollowUp,
	NeuropsychologicalEvaluation,
	FamilyReport,
	EducationalReport,
	TherapeuticDischarge,
}

var structures = map[ReportType][]string{
	PsychologicalEvaluation: {
		"DATOS DE IDENTIFICACIÓN",
		"MOTIVO DE CONSULTA",
		"METODOLOGÍA DE EVALUACIÓN",
		"RESULTADOS DE LA EVALUACIÓN",
		"DIAGNÓSTICO",
		"CONCLUSIONES",
		"RECOMENDACIONES",
	},
	TherapeuticFollowUp: {
		"DATOS DE IDENTIFICACIÓN",
		"ANTECEDENTES",
		"EVOLUCIÓN DEL TRATAMIENTO",
		"ESTADO ACTUAL",
		"OBJETIVOS TERAPÉUTICOS",
		"PLAN DE CONTINUIDAD",
	},
	NeuropsychologicalEvaluation: {
		"DATOS DE IDENTIFICACIÓN",
		"MOTIVO DE CONSULTA",
		"HISTORIA CLÍNICA RELEVANTE",
		"PRUEBAS ADMINISTRADAS",
		"RESULTADOS POR DOMINIO COGNITIVO",
		"DIAGNÓSTICO",
		"CONCLUSIONES",
		"RECOMENDACIONES",
	},
	FamilyReport: {
		"DATOS DE IDENTIFICACIÓN",
		"MOTIVO DE CONSULTA FAMILIAR",
		"COMPOSICIÓN FAMILIAR",
		"DINÁMICA FAMILIAR",
		"FACTORES DE RIESGO Y PROTECCIÓN",
		"CONCLUSIONES",
		"INTERVENCIÓN SUGERIDA",
	},
	EducationalReport: {
		"DATOS DE IDENTIFICACIÓN",
		"MOTIVO DE EVALUACIÓN ESCOLAR",
		"HISTORIA ACADÉMICA",
		"EVALUACIONES APLICADAS",
		"RESULTADOS",
		"DIAGNÓSTICO EDUCATIVO",
		"RECOMENDACIONES ESCOLARES",
	},
	TherapeuticDischarge: {
		"DATOS DE IDENTIFICACIÓN",
		"DIAGNÓSTICO INICIAL",
		"RESUMEN DEL PROCESO TERAPÉUTICO",
		"LOGROS TERAPÉUTICOS",
		"ESTADO ACTUAL",
		"RECOMENDACIONES DE SEGUIMIENTO",
	},
}

// Valid reports whether t is one of the six known types.
func (t ReportType) Valid() bool {
	_, ok := structures[t]
	return ok
}

// Sections returns the headings for t. Unknown types get the psychological
// evaluation headings.
func Sections(t ReportType) []string {
	if s, ok := structures[t]; ok {
		return s
	}
	return structures[PsychologicalEvaluation]
}

// FormatReportStructure renders the headings as a numbered list.
func FormatReportStructure(t ReportType) string {
	sections := Sections(t)
	lines := make([]string, len(sections))
	for i, s := range sections {
		lines[i] = fmt.Sprintf("%d. %s", i+1, s)
	}
	return strings.Join(lines, "\n")
}
