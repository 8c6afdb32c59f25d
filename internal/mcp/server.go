// Package mcp exposes DSM-5 retrieval, report generation and the practice
// tools to MCP clients over stdio.
package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/server"

	"github.com/ziadkadry99/clinrag/internal/llm"
	"github.com/ziadkadry99/clinrag/internal/report"
	"github.com/ziadkadry99/clinrag/internal/tools"
)

// Version is set via ldflags at build time.
var Version = "dev"

// ToolExecutor runs practice tools on behalf of a user.
type ToolExecutor interface {
	Execute(ctx context.Context, userID string, call llm.FunctionCall) tools.Result
}

// Deps are the components tools delegate to. A nil member makes its tools
// report an error instead of failing registration.
type Deps struct {
	Retriever report.Retriever
	Agent     *report.Agent
	Tools     ToolExecutor

	// UserID owns the records the practice tools read and write.
	UserID string
}

// Server wraps an MCP server.
type Server struct {
	deps Deps
	mcp  *server.MCPServer
}

// NewServer creates an MCP server with every tool registered.
func NewServer(deps Deps) *Server {
	s := &Server{deps: deps}
	s.mcp = server.NewMCPServer(
		"clinrag",
		Version,
		server.WithToolCapabilities(false),
	)
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	s.mcp.AddTool(searchDSM5Tool, s.handleSearchDSM5)
	s.mcp.AddTool(generateReportTool, s.handleGenerateReport)
	s.mcp.AddTool(searchPatientsTool, s.handleSearchPatients)
	s.mcp.AddTool(scheduleSessionTool, s.handleScheduleSession)
}

// Serve starts the MCP server on stdio. Stdout is used for MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
