package report

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ziadkadry99/clinrag/internal/retrieval"
)

// RegisterRoutes mounts report generation and DSM-5 retrieval endpoints.
// retriever may be nil when no DSM-5 source is configured.
func RegisterRoutes(r chi.Router, agent *Agent, retriever Retriever) {
	r.Post("/api/reports/generate", handleGenerate(agent))
	r.Post("/api/dsm5/retrieve", handleRetrieve(retriever))
}

type generateRequest struct {
	WizardData             WizardReportData `json:"wizardData"`
	IncludeRecommendations *bool            `json:"includeRecommendations,omitempty"`
	IncludeTreatmentPlan   *bool            `json:"includeTreatmentPlan,omitempty"`
	Language               string           `json:"language,omitempty"`
	ReportStyle            Style            `json:"reportStyle,omitempty"`
	Format                 string           `json:"format,omitempty"`
}

type generateResponse struct {
	*Result
	HTML string `json:"html,omitempty"`
}

// OptionsFor merges request-level preferences over the wizard's own and the
// defaults.
func OptionsFor(data WizardReportData, includeRecs, includePlan *bool, language string, style Style) Options {
	opts := DefaultOptions()
	if data.IncludeRecommendations != nil {
		opts.IncludeRecommendations = *data.IncludeRecommendations
	}
	if data.IncludeTreatmentPlan != nil {
		opts.IncludeTreatmentPlan = *data.IncludeTreatmentPlan
	}
	if data.Language != "" {
		opts.Language = data.Language
	}
	if includeRecs != nil {
		opts.IncludeRecommendations = *includeRecs
	}
	if includePlan != nil {
		opts.IncludeTreatmentPlan = *includePlan
	}
	if language != "" {
		opts.Language = language
	}
	if style != "" {
		opts.ReportStyle = style
	}
	return opts
}

func handleGenerate(agent *Agent) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.WizardData.PatientName == "" {
			writeError(w, http.StatusBadRequest, "missing required field: wizardData.patientName")
			return
		}

		opts := OptionsFor(req.WizardData, req.IncludeRecommendations, req.IncludeTreatmentPlan, req.Language, req.ReportStyle)
		result, err := agent.GenerateReport(r.Context(), req.WizardData, opts)
		if err != nil {
			var wfErr *WorkflowError
			if errors.As(err, &wfErr) {
				writeError(w, http.StatusBadGateway, err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		resp := generateResponse{Result: result}
		if req.Format == "html" {
			page, err := RenderHTML(result, "Informe clínico - "+req.WizardData.PatientName)
			if err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			resp.HTML = page
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

type retrieveRequest struct {
	Query             string  `json:"query"`
	MaxResults        int     `json:"maxResults"`
	MinRelevanceScore float64 `json:"minRelevanceScore"`
}

type retrieveResponse struct {
	Success   bool               `json:"success"`
	Results   []retrieval.Result `json:"results"`
	UsingDSM5 bool               `json:"usingDSM5"`
}

func handleRetrieve(retriever Retriever) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req retrieveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Query == "" {
			writeError(w, http.StatusBadRequest, "query is required")
			return
		}
		if retriever == nil {
			writeError(w, http.StatusServiceUnavailable, "DSM-5 retrieval is not configured")
			return
		}

		outcome, err := retriever.Retrieve(r.Context(), req.Query, retrieval.Options{
			MaxResults:        req.MaxResults,
			MinRelevanceScore: req.MinRelevanceScore,
		})
		if err != nil {
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, retrieveResponse{
			Success:   true,
			Results:   retrieval.Results(outcome),
			UsingDSM5: retrieval.UsesDSM5(outcome),
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
