package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/clinrag/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize clinrag configuration with an interactive wizard",
	Long:  `Runs an interactive wizard to choose the generation provider and the DSM-5 location, and writes the config file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := config.RunWizard(cfgFile)
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
