package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "clinrag",
	Short: "DSM-5 grounded clinical reports and a practice assistant",
	Long: `clinrag generates clinical reports grounded in the DSM-5 manual and runs
HopeAI, a conversational assistant for therapists that can search patients,
schedule sessions and remember earlier conversations. It exposes an HTTP API,
an MCP server for AI agents and a terminal chat.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", ".clinrag.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
