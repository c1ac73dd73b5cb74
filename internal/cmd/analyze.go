package cmd

import (
	"github.com/spf13/cobra"
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze the source prefix without transferring anything",
	Long: `Analyze the source prefix without transferring anything.
The inventory is listed and the object count, the total size and the
prefix count the auto-resolution would pick are reported.`,
	Run: func(cmd *cobra.Command, args []string) {
		handleCommonFlags(cmd)
		runnerConfig.AnalyzeOnly = true
		runRebalance()
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	defineCommonFlags(analyzeCmd)
	defineRunFlags(analyzeCmd)
}
