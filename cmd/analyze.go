/*
Copyright © 2026 JACOB ARTHURS
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/pgplan-project/pgplan/internal/analyzer"
	"github.com/pgplan-project/pgplan/internal/parse"
	"github.com/pgplan-project/pgplan/internal/render"

	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [file]",
	Short: "Analyze a single query plan",
	Long: `Analyze a single PostgreSQL query plan and provide optimization insights.

Input can be a text, JSON, or YAML EXPLAIN output file.
Use "-" to read from stdin. If no file is provided, enters interactive mode.

For a raw SQL query, use "pgplan capture" to run EXPLAIN live first.`,
	Example: `  # Analyze from file
  pgplan analyze plan.json

  # Read from stdin
  cat plan.json | pgplan analyze -

  # Interactive mode
  pgplan analyze`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		if format != "text" && format != "json" {
			return fmt.Errorf("invalid output format %q: must be \"text\" or \"json\"", format)
		}

		var file string
		if len(args) > 0 {
			file = args[0]
		}

		data, err := readInput(file, "")
		if err != nil {
			return err
		}

		p, err := parse.ParseSource(string(data), file, "")
		if err != nil {
			return err
		}

		result := analyzer.Analyze(p)

		switch format {
		case "json":
			return render.RenderJSON(os.Stdout, result)
		default:
			return render.RenderAnalysisText(os.Stdout, result)
		}
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringP("format", "f", "text", "Output format: text, json")
}
