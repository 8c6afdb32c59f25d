package report

import (
	"fmt"
	"time"

	"github.com/ziadkadry99/clinrag/internal/prompt"
	"github.com/ziadkadry99/clinrag/internal/retrieval"
)

// WizardReportData is everything the report wizard collected about one
// assessment. The agent never mutates it.
type WizardReportData struct {
	PatientID          string `json:"patientId" yaml:"patientId"`
	PatientName        string `json:"patientName" yaml:"patientName"`
	PatientAge         int    `json:"patientAge,omitempty" yaml:"patientAge"`
	PatientGender      string `json:"patientGender,omitempty" yaml:"patientGender"`
	PatientDateOfBirth string `json:"patientDateOfBirth,omitempty" yaml:"patientDateOfBirth"`

	ClinicianName  string `json:"clinicianName" yaml:"clinicianName"`
	ClinicName     string `json:"clinicName" yaml:"clinicName"`
	AssessmentDate string `json:"assessmentDate" yaml:"assessmentDate"`

	ReportType prompt.ReportType `json:"reportType" yaml:"reportType"`

	ConsultationReasons []string       `json:"consultationReasons,omitempty" yaml:"consultationReasons"`
	EvaluationAreas     []string       `json:"evaluationAreas,omitempty" yaml:"evaluationAreas"`
	ICDCriteria         []string       `json:"icdCriteria,omitempty" yaml:"icdCriteria"`
	IsPrimaryDiagnosis  bool           `json:"isPrimaryDiagnosis,omitempty" yaml:"isPrimaryDiagnosis"`
	TemplateFields      map[string]any `json:"templateFields,omitempty" yaml:"templateFields"`

	IncludeRecommendations *bool  `json:"includeRecommendations,omitempty" yaml:"includeRecommendations"`
	IncludeTreatmentPlan   *bool  `json:"includeTreatmentPlan,omitempty" yaml:"includeTreatmentPlan"`
	Language               string `json:"language,omitempty" yaml:"language"`
}

// PatientData projects the wizard fields the prompt renders.
func (w WizardReportData) PatientData() prompt.PatientData {
	return prompt.PatientData{
		Name:                w.PatientName,
		Age:                 w.PatientAge,
		Gender:              w.PatientGender,
		DateOfBirth:         w.PatientDateOfBirth,
		AssessmentDate:      w.AssessmentDate,
		ClinicianName:       w.ClinicianName,
		ClinicName:          w.ClinicName,
		ConsultationReasons: w.ConsultationReasons,
		EvaluationAreas:     w.EvaluationAreas,
		Criteria:            w.ICDCriteria,
		IsPrimaryDiagnosis:  w.IsPrimaryDiagnosis,
		TemplateFields:      w.TemplateFields,
	}
}

// Style is the requested register of the report.
type Style string

const (
	StyleClinical    Style = "clinical"
	StyleEducational Style = "educational"
	StyleConcise     Style = "concise"
)

// Options are caller preferences recorded alongside the report.
type Options struct {
	IncludeRecommendations bool   `json:"includeRecommendations"`
	IncludeTreatmentPlan   bool   `json:"includeTreatmentPlan"`
	Language               string `json:"language"`
	ReportStyle            Style  `json:"reportStyle"`
}

// DefaultOptions returns the options used when a caller sends none.
func DefaultOptions() Options {
	return Options{
		IncludeRecommendations: true,
		IncludeTreatmentPlan:   true,
		Language:               "es",
		ReportStyle:            StyleClinical,
	}
}

// Stage is a step of the report workflow.
type Stage string

const (
	PreparingQuery    Stage = "preparing_query"
	RetrievingContext Stage = "retrieving_context"
	DegradedRetrieval Stage = "degraded_retrieval"
	PreparingPrompt   Stage = "preparing_prompt"
	GeneratingReport  Stage = "generating_report"
	Done              Stage = "done"
)

// Metadata describes how a report was produced.
type Metadata struct {
	GenerationTime  int64                  `json:"generationTime"`
	ModelName       string                 `json:"modelName"`
	QueryLength     int                    `json:"queryLength"`
	PromptLength    int                    `json:"promptLength"`
	ReportLength    int                    `json:"reportLength"`
	RetrievalCount  int                    `json:"retrievalCount"`
	StartTime       time.Time              `json:"startTime"`
	EndTime         time.Time              `json:"endTime"`
	UsingDSM5       bool                   `json:"usingDSM5"`
	DSM5FileDetails *retrieval.FileDetails `json:"dsm5FileDetails,omitempty"`
	Options         Options                `json:"options"`
}

// Result is the outcome of one GenerateReport call.
type Result struct {
	ReportText string   `json:"reportText"`
	Metadata   Metadata `json:"metadata"`
	Query      string   `json:"-"`
	Prompt     string   `json:"-"`
}

// WorkflowError wraps a failure that aborted report generation.
type WorkflowError struct {
	Stage Stage
	Err   error
}

func (e *WorkflowError) Error() string {
	return fmt.Sprintf("failed to generate clinical report (%s): %v", e.Stage, e.Err)
}

func (e *WorkflowError) Unwrap() error { return e.Err }
