package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jeffrey-won-personal/github-issue-trend-analyzer/internal/cli"
)

var rootCmd = &cobra.Command{
	Use:   "analyzer",
	Short: "GitHub issue trend analyzer",
	Long: `Analyzer runs a multi-stage pipeline over a repository's issue history:
data retrieval, quality gating, trend analysis, insight generation and
report generation. It serves an HTTP API with live progress streaming
or runs a single analysis from the command line.`,
}

func main() {
	cli.SetupCLI(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
