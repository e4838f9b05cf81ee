/*
Copyright © 2026 JACOB ARTHURS
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/pgplan-project/pgplan/internal/comparator"
	"github.com/pgplan-project/pgplan/internal/parse"
	"github.com/pgplan-project/pgplan/internal/render"

	"github.com/spf13/cobra"
)

var compareCmd = &cobra.Command{
	Use:   "compare [file1] [file2]",
	Short: "Compare two query plans",
	Long: `Compare two PostgreSQL query plans node-by-node, reporting cost, timing,
row-estimate, and buffer-usage deltas.

Inputs are text, JSON, or YAML EXPLAIN output files. Files don't need to be
the same format. Either file (but not both) can be "-" to read from stdin.
If no files are provided, enters interactive mode for both.`,
	Example: `  # Compare two plan files
  pgplan compare old.json new.json

  # Read one plan from stdin
  cat old.json | pgplan compare - new.json

  # Interactive mode
  pgplan compare`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		threshold, _ := cmd.Flags().GetFloat64("threshold")

		if format != "text" && format != "json" {
			return fmt.Errorf("invalid output format %q: must be \"text\" or \"json\"", format)
		}

		var file1, file2 string
		if len(args) > 0 {
			file1 = args[0]
		}
		if len(args) > 1 {
			file2 = args[1]
		}
		if file1 == "-" && file2 == "-" {
			return fmt.Errorf("only one file may be read from stdin")
		}

		data1, err := readInput(file1, "first ")
		if err != nil {
			return err
		}
		old, err := parse.ParseSource(string(data1), file1, "")
		if err != nil {
			return err
		}

		data2, err := readInput(file2, "second ")
		if err != nil {
			return err
		}
		new, err := parse.ParseSource(string(data2), file2, "")
		if err != nil {
			return err
		}

		c := &comparator.Comparator{Threshold: threshold}
		result := c.Compare(old, new)

		switch format {
		case "json":
			return render.RenderJSON(os.Stdout, result)
		default:
			return render.RenderComparisonText(os.Stdout, result)
		}
	},
}

func init() {
	rootCmd.AddCommand(compareCmd)
	compareCmd.Flags().StringP("format", "f", "text", "Output format: text, json")
	compareCmd.Flags().Float64("threshold", comparator.SignificanceThresholdPct, "Percent-change threshold below which a node is reported as unchanged")
}
