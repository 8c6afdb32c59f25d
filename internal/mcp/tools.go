package mcp

import "github.com/mark3labs/mcp-go/mcp"

var searchDSM5Tool = mcp.NewTool("search_dsm5",
	mcp.WithDescription("Search the DSM-5 manual for passages relevant to a clinical query. Diagnostic criteria sections rank first."),
	mcp.WithString("query",
		mcp.Required(),
		mcp.Description("Clinical query, e.g. a disorder name or diagnostic code"),
	),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of passages to return (default 5)"),
	),
)

var generateReportTool = mcp.NewTool("generate_report",
	mcp.WithDescription("Generate a clinical report grounded in DSM-5 from wizard data."),
	mcp.WithString("wizard_json",
		mcp.Required(),
		mcp.Description("Report wizard data as a JSON object (patientName, reportType, consultationReasons, ...)"),
	),
)

var searchPatientsTool = mcp.NewTool("search_patients",
	mcp.WithDescription("Search the practice's patients by name, email or phone."),
	mcp.WithString("query",
		mcp.Required(),
		mcp.Description("Search text; * lists every patient"),
	),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of patients to return (default 10)"),
	),
)

var scheduleSessionTool = mcp.NewTool("schedule_session",
	mcp.WithDescription("Book a therapy session with a patient."),
	mcp.WithString("patient_id",
		mcp.Required(),
		mcp.Description("Patient identifier"),
	),
	mcp.WithString("date",
		mcp.Required(),
		mcp.Description("Session date, YYYY-MM-DD"),
	),
	mcp.WithString("time",
		mcp.Required(),
		mcp.Description("Start time, HH:MM (24h)"),
	),
	mcp.WithNumber("duration",
		mcp.Description("Duration in minutes, 15 to 180 (default 60)"),
	),
	mcp.WithString("notes",
		mcp.Description("Optional notes"),
	),
)
