// Package prompt builds the report-generation prompt from retrieved DSM-5
// context and the wizard's patient data.
package prompt

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ziadkadry99/clinrag/internal/retrieval"
)

const (
	noContextNotice = "No se encontró información relevante en la base de conocimientos DSM-5."
	criteriaBanner  = "SECCIÓN DE CRITERIOS DIAGNÓSTICOS - CITA TEXTUALMENTE ESTOS CRITERIOS EN EL INFORME\n\n"
)

var separator = strings.Repeat("-", 80)

// CitationInstructions is appended to every context block.
const CitationInstructions = "\n\nIMPORTANTE: Cuando menciones diagnósticos basados en el DSM-5, debes OBLIGATORIAMENTE:\n\n" +
	"1. Incluir los códigos específicos de los criterios (por ejemplo, A.1, A.2, B.1, etc.)\n" +
	"2. Citar TEXTUALMENTE los criterios del DSM-5 que aparecen en el contexto proporcionado\n" +
	"3. Explicar detalladamente cómo los síntomas específicos del paciente cumplen con cada criterio\n" +
	"4. Incluir TODOS los criterios relevantes (A, B, C, etc.) aunque no todos estén presentes en el paciente\n\n" +
	"Esto es un requisito indispensable para la validez clínica del informe. NO omitas ninguno de estos elementos."

// PatientData is the patient and assessment block of a report prompt.
type PatientData struct {
	Name                string
	Age                 int
	Gender              string
	DateOfBirth         string
	AssessmentDate      string
	ClinicianName       string
	ClinicName          string
	ConsultationReasons []string
	EvaluationAreas     []string
	Criteria            []string
	IsPrimaryDiagnosis  bool
	TemplateFields      map[string]any
}

// Prompt is an assembled generation prompt.
type Prompt struct {
	Text           string
	UsingDSM5      bool
	File           *retrieval.FileDetails
	RetrievalCount int
}

// Assemble renders context, patient data and section structure into the
// report template, then appends the DSM-5 disclosure when DSM-5 passages
// were used.
func Assemble(outcome retrieval.Outcome, reportType ReportType, data PatientData) Prompt {
	results := retrieval.Results(outcome)
	using := retrieval.UsesDSM5(outcome)
	file := fileOf(results)

	text := Fill(TemplateFor(reportType), map[string]string{
		"context":         FormatContext(outcome) + CitationInstructions,
		"patientData":     FormatPatientData(data),
		"reportStructure": FormatReportStructure(reportType),
	})
	if using {
		text += DisclosureInstruction(file)
	}

	p := Prompt{Text: text, UsingDSM5: using, RetrievalCount: len(results)}
	if using {
		p.File = file
	}
	return p
}

// FormatContext renders an outcome as numbered sources. Criteria-looking
// passages get a verbatim-quotation banner.
func FormatContext(outcome retrieval.Outcome) string {
	results := retrieval.Results(outcome)
	if len(results) == 0 {
		return noContextNotice
	}

	var header string
	file := fileOf(results)
	switch {
	case retrieval.UsesDSM5(outcome) && file != nil && file.FileName != "":
		header = fmt.Sprintf("INFORMACIÓN DEL DSM-5 (%s) Y OTRAS FUENTES CLÍNICAS:\n", file.FileName)
	case retrieval.UsesDSM5(outcome):
		header = "INFORMACIÓN DEL DSM-5 Y OTRAS FUENTES CLÍNICAS:\n"
	default:
		header = "INFORMACIÓN DE FUENTES CLÍNICAS:\n"
	}

	blocks := make([]string, len(results))
	for i, r := range results {
		source := r.Source
		if r.FileDetails != nil {
			source = fmt.Sprintf("%s [Archivo: %s]", r.Source, r.FileDetails.FileName)
		}
		content := r.Content
		if looksLikeCriteria(content) {
			content = criteriaBanner + content
		}
		blocks[i] = fmt.Sprintf("\nFUENTE %d: %s\n%s\n%s\n%s\n", i+1, source, separator, content, separator)
	}
	return header + strings.Join(blocks, "\n")
}

func looksLikeCriteria(content string) bool {
	lower := strings.ToLower(content)
	return strings.Contains(lower, "criterios diagnósticos") ||
		strings.Contains(lower, "criterio a") ||
		strings.Contains(lower, "criterio b")
}

func fileOf(results []retrieval.Result) *retrieval.FileDetails {
	for _, r := range results {
		if r.FileDetails != nil {
			return r.FileDetails
		}
	}
	return nil
}

// DisclosureInstruction tells the model to state that the DSM-5 was consulted.
func DisclosureInstruction(file *retrieval.FileDetails) string {
	var b strings.Builder
	b.WriteString("\n\n## IMPORTANTE\n")
	b.WriteString("Este informe ha sido generado utilizando información del Manual Diagnóstico y Estadístico de los Trastornos Mentales (DSM-5) como fuente de referencia. ")
	if file != nil {
		fmt.Fprintf(&b, "El archivo utilizado es \"%s\" (ID: %s). ", file.FileName, file.FileID)
	}
	b.WriteString("Menciona explícitamente en la sección de METODOLOGÍA DE EVALUACIÓN o DIAGNÓSTICO que se ha consultado el DSM-5 como parte del proceso. ")
	b.WriteString("En la sección de DIAGNÓSTICO, OBLIGATORIAMENTE debes: ")
	b.WriteString("\n1. Incluir los códigos específicos de los criterios diagnósticos (por ejemplo, A.1, A.2, B.1, etc.) ")
	b.WriteString("\n2. Citar TEXTUALMENTE los criterios del DSM-5 que aparecen en el contexto proporcionado ")
	b.WriteString("\n3. Explicar detalladamente cómo los síntomas específicos del paciente cumplen con cada criterio ")
	b.WriteString("\n4. Incluir TODOS los criterios relevantes (A, B, C, etc.) aunque no todos estén presentes en el paciente ")
	b.WriteString("\n\nNO omitas ninguno de estos elementos, ya que son indispensables para la validez clínica del informe.")
	return b.String()
}

// FormatPatientData renders the patient block. Missing optional fields get
// "No especificado" placeholders; template fields are listed by key.
func FormatPatientData(d PatientData) string {
	var b strings.Builder
	b.WriteString("\nINFORMACIÓN DEL PACIENTE:\n")
	fmt.Fprintf(&b, "- Nombre: %s\n", d.Name)
	fmt.Fprintf(&b, "- Edad: %s\n", orDefault(ageText(d.Age), "No especificada"))
	fmt.Fprintf(&b, "- Género: %s\n", orDefault(d.Gender, "No especificado"))
	fmt.Fprintf(&b, "- Fecha de nacimiento: %s\n", orDefault(d.DateOfBirth, "No especificada"))

	b.WriteString("\nINFORMACIÓN DE LA EVALUACIÓN:\n")
	fmt.Fprintf(&b, "- Fecha de evaluación: %s\n", d.AssessmentDate)
	fmt.Fprintf(&b, "- Profesional: %s\n", d.ClinicianName)
	fmt.Fprintf(&b, "- Centro: %s\n", d.ClinicName)

	b.WriteString("\nMOTIVOS DE CONSULTA:\n")
	b.WriteString(bullets(d.ConsultationReasons, "- No especificados"))
	b.WriteString("\n\nÁREAS EVALUADAS:\n")
	b.WriteString(bullets(d.EvaluationAreas, "- No especificadas"))
	b.WriteString("\n\nCRITERIOS DIAGNÓSTICOS:\n")
	b.WriteString(bullets(d.Criteria, "- No especificados"))
	b.WriteString("\n")
	if d.IsPrimaryDiagnosis {
		b.WriteString("- Diagnóstico primario confirmado")
	}

	b.WriteString("\n\nINFORMACIÓN ADICIONAL:\n")
	keys := make([]string, 0, len(d.TemplateFields))
	for k := range d.TemplateFields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	extra := make([]string, 0, len(keys))
	for _, k := range keys {
		extra = append(extra, fmt.Sprintf("- %s: %v", k, d.TemplateFields[k]))
	}
	b.WriteString(bullets(extra, "- No hay información adicional"))
	b.WriteString("\n")
	return b.String()
}

func bullets(items []string, empty string) string {
	var lines []string
	for _, item := range items {
		if strings.HasPrefix(item, "- ") {
			lines = append(lines, item)
			continue
		}
		lines = append(lines, "- "+item)
	}
	if len(lines) == 0 {
		return empty
	}
	return strings.Join(lines, "\n")
}

func ageText(age int) string {
	if age <= 0 {
		return ""
	}
	return fmt.Sprint(age)
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
