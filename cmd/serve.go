package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	mcpserver "github.com/ziadkadry99/clinrag/internal/mcp"
)

var serveUser string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server for AI agent integration",
	Long:  `Starts a Model Context Protocol (MCP) server on stdio, exposing DSM-5 search, report generation, patient search and session scheduling to AI agents.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(context.Background(), appParts{report: true, database: true})
		if err != nil {
			return err
		}
		defer a.Close()

		mcpserver.Version = Version

		fmt.Fprintf(os.Stderr, "clinrag MCP server started on stdio (dsm5=%s, user=%s)\n", dsm5Source(a), serveUser)

		srv := mcpserver.NewServer(mcpserver.Deps{
			Retriever: a.retriever,
			Agent:     a.agent,
			Tools:     a.tools,
			UserID:    serveUser,
		})
		return srv.Serve()
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveUser, "user", "local", "Owner of the patients and sessions the tools act on")
	rootCmd.AddCommand(serveCmd)
}
