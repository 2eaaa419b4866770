package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gherkit/gherkit/internal/steps"
)

var stepsCmd = &cobra.Command{
	Use:   "steps",
	Short: "List the step vocabulary available to feature files.",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		for _, def := range steps.NewSuite("", nil).Definitions() {
			fmt.Fprintf(w, "%s\t%s\n", def.Pattern, def.Doc)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(stepsCmd)
}
