package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ziadkadry99/clinrag/internal/llm"
	"github.com/ziadkadry99/clinrag/internal/report"
	"github.com/ziadkadry99/clinrag/internal/retrieval"
	"github.com/ziadkadry99/clinrag/internal/tools"
)

func (s *Server) handleSearchDSM5(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: query"), nil
	}
	if s.deps.Retriever == nil {
		return mcp.NewToolResultError("DSM-5 retrieval is not configured. Set retrieval.source in .clinrag.yaml."), nil
	}

	limit := request.GetInt("limit", 5)
	if limit <= 0 {
		limit = 5
	}

	outcome, err := s.deps.Retriever.Retrieve(ctx, query, retrieval.Options{MaxResults: limit})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("retrieval failed: %v", err)), nil
	}
	return mcp.NewToolResultText(formatResults(retrieval.Results(outcome))), nil
}

func (s *Server) handleGenerateReport(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := request.RequireString("wizard_json")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: wizard_json"), nil
	}
	if s.deps.Agent == nil {
		return mcp.NewToolResultError("report generation is not configured"), nil
	}

	var data report.WizardReportData
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid wizard_json: %v", err)), nil
	}
	if data.PatientName == "" {
		return mcp.NewToolResultError("wizard_json.patientName is required"), nil
	}

	result, err := s.deps.Agent.GenerateReport(ctx, data, report.OptionsFor(data, nil, nil, "", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var sb strings.Builder
	sb.WriteString(result.ReportText)
	if result.Metadata.UsingDSM5 {
		fmt.Fprintf(&sb, "\n\n---\nDSM-5 passages used: %d", result.Metadata.RetrievalCount)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (s *Server) handleSearchPatients(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: query"), nil
	}
	args := map[string]any{"query": query}
	if limit := request.GetInt("limit", 0); limit > 0 {
		args["limit"] = limit
	}
	return s.execute(ctx, tools.FuncSearchPatients, args)
}

func (s *Server) handleScheduleSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := map[string]any{}
	for _, key := range []struct{ mcp, tool string }{
		{"patient_id", "patientId"},
		{"date", "date"},
		{"time", "time"},
	} {
		v, err := request.RequireString(key.mcp)
		if err != nil {
			return mcp.NewToolResultError("missing required parameter: " + key.mcp), nil
		}
		args[key.tool] = v
	}
	if d := request.GetInt("duration", 0); d > 0 {
		args["duration"] = d
	}
	if notes := request.GetString("notes", ""); notes != "" {
		args["notes"] = notes
	}
	return s.execute(ctx, tools.FuncScheduleSession, args)
}

func (s *Server) execute(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	if s.deps.Tools == nil {
		return mcp.NewToolResultError("practice tools are not configured"), nil
	}
	res := s.deps.Tools.Execute(ctx, s.deps.UserID, llm.FunctionCall{Name: name, Args: args})
	body, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return nil, err
	}
	if !res.Success {
		return mcp.NewToolResultError(string(body)), nil
	}
	return mcp.NewToolResultText(string(body)), nil
}

// formatResults renders passages for an AI agent: score, source, content.
func formatResults(results []retrieval.Result) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d passage(s):\n", len(results))
	for i, r := range results {
		fmt.Fprintf(&sb, "\n--- Passage %d ---\n", i+1)
		fmt.Fprintf(&sb, "Source: %s\n", r.Source)
		fmt.Fprintf(&sb, "Relevance: %.0f%%\n\n", r.RelevanceScore*100)
		sb.WriteString(r.Content)
		sb.WriteString("\n")
	}
	return sb.String()
}
