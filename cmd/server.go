package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/clinrag/internal/server"
)

var (
	serverPort  int
	serverSweep time.Duration
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the HTTP API",
	Long: `Starts the clinrag HTTP API: report generation, DSM-5 search, the HopeAI
assistant (HTTP and websocket streaming), chat sessions, AI suggestions and
long-term memory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := buildApp(ctx, appParts{report: true, assistant: true, database: true})
		if err != nil {
			return err
		}
		defer a.Close()

		port := a.cfg.Server.Port
		if cmd.Flags().Changed("port") {
			port = serverPort
		}

		srv := server.New(server.Config{
			Port:          port,
			AllowAll:      a.cfg.Server.AllowAllOrigins,
			SweepInterval: serverSweep,
		}, server.Deps{
			DB:        a.db,
			Agent:     a.agent,
			Retriever: a.retriever,
			Assistant: a.assistant,
			Tools:     a.tools,
			Memory:    a.memory,
			Log:       a.log,
		})

		fmt.Fprintf(os.Stderr, "clinrag server %s starting on port %d\n", Version, port)
		fmt.Fprintf(os.Stderr, "  Database: %s\n", a.db.Path())
		fmt.Fprintf(os.Stderr, "  DSM-5 source: %s\n", dsm5Source(a))
		fmt.Fprintf(os.Stderr, "  Memory: %v\n", a.memory.Available())

		return srv.Start(ctx)
	},
}

func dsm5Source(a *app) string {
	if a.retriever == nil {
		return "none (model knowledge only)"
	}
	return fmt.Sprintf("%s %s", a.cfg.Retrieval.FileStore, a.cfg.Retrieval.Folder)
}

func init() {
	serverCmd.Flags().IntVar(&serverPort, "port", 8080, "Port to listen on (overrides server.port)")
	serverCmd.Flags().DurationVar(&serverSweep, "sweep-interval", 10*time.Minute, "How often expired cached replies are cleared (0 disables)")
	rootCmd.AddCommand(serverCmd)
}
