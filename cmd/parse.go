/*
Copyright © 2026 JACOB ARTHURS
*/
package cmd

import (
	"os"

	"github.com/pgplan-project/pgplan/internal/parse"
	"github.com/pgplan-project/pgplan/internal/render"

	"github.com/spf13/cobra"
)

var parseCmd = &cobra.Command{
	Use:   "parse [file]",
	Short: "Parse a query plan into its enriched tree, without analysis",
	Long: `Run only ParseSource against the input and print the resulting enriched
plan tree as JSON. Useful for inspecting node IDs, derived metrics, and CTE
relocation without the analyzer's heuristics in the way.`,
	Example: `  pgplan parse plan.json
  cat plan.json | pgplan parse -`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
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

		return render.RenderPlanJSON(os.Stdout, p)
	},
}

func init() {
	rootCmd.AddCommand(parseCmd)
}
