package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ziadkadry99/clinrag/internal/progress"
	"github.com/ziadkadry99/clinrag/internal/report"
)

var (
	reportInput    string
	reportOutput   string
	reportHTML     bool
	reportLanguage string
	reportStyle    string
	reportNoRecs   bool
	reportNoPlan   bool
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate a DSM-5 grounded clinical report from wizard data",
	Long: `Reads report wizard data from a YAML or JSON file, retrieves the relevant
DSM-5 passages and writes the generated report as markdown (or HTML with
--html) to stdout or --output.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(reportInput)
		if err != nil {
			return fmt.Errorf("reading wizard data: %w", err)
		}
		var data report.WizardReportData
		if err := yaml.Unmarshal(raw, &data); err != nil {
			return fmt.Errorf("parsing wizard data %s: %w", reportInput, err)
		}
		if data.PatientName == "" {
			return fmt.Errorf("wizard data %s: patientName is required", reportInput)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := buildApp(ctx, appParts{
			report: true,
			stage:  progress.StageObserver(progress.NewReporter()),
		})
		if err != nil {
			return err
		}
		defer a.Close()

		opts := report.OptionsFor(data, negFlag(cmd, "no-recommendations", reportNoRecs),
			negFlag(cmd, "no-treatment-plan", reportNoPlan), reportLanguage, report.Style(reportStyle))

		result, err := a.agent.GenerateReport(ctx, data, opts)
		if err != nil {
			return err
		}

		out := result.ReportText
		if reportHTML {
			out, err = report.RenderHTML(result, "Informe clínico: "+data.PatientName)
			if err != nil {
				return err
			}
		}

		if reportOutput == "" {
			fmt.Println(out)
		} else if err := os.WriteFile(reportOutput, []byte(out), 0o644); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}

		md := result.Metadata
		fmt.Fprintf(os.Stderr, "Report generated with %s (DSM-5: %v, passages: %d)\n", md.ModelName, md.UsingDSM5, md.RetrievalCount)
		return nil
	},
}

// negFlag turns a --no-x flag into an include override, nil when unset.
func negFlag(cmd *cobra.Command, name string, v bool) *bool {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	include := !v
	return &include
}

func init() {
	reportCmd.Flags().StringVarP(&reportInput, "input", "i", "wizard.yaml", "Wizard data file (YAML or JSON)")
	reportCmd.Flags().StringVarP(&reportOutput, "output", "o", "", "Write the report to this file instead of stdout")
	reportCmd.Flags().BoolVar(&reportHTML, "html", false, "Render the report as a standalone HTML page")
	reportCmd.Flags().StringVar(&reportLanguage, "language", "", "Report language (default from wizard data, else es)")
	reportCmd.Flags().StringVar(&reportStyle, "style", "", "Report style: clinical, educational or concise")
	reportCmd.Flags().BoolVar(&reportNoRecs, "no-recommendations", false, "Omit recommendations")
	reportCmd.Flags().BoolVar(&reportNoPlan, "no-treatment-plan", false, "Omit the treatment plan")
	rootCmd.AddCommand(reportCmd)
}
