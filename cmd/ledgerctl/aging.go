package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var agingCmd = &cobra.Command{
	Use:   "aging",
	Short: "Recompute days overdue and status of every open obligation",
	Long: `Recompute days overdue and status of every open obligation as of a date.

Running it twice for the same date changes nothing the second time, so it is
safe to schedule daily.`,
	Example: `  ledgerctl aging
  ledgerctl aging --as-of 2024-06-30`,
	RunE: runAging,
}

func init() {
	rootCmd.AddCommand(agingCmd)
	agingCmd.Flags().String("as-of", "", "aging date (YYYY-MM-DD, default: today)")
}

func runAging(cmd *cobra.Command, args []string) error {
	asOf, err := dateFlag(cmd, "as-of", time.Now())
	if err != nil {
		return err
	}
	a, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	changed, err := a.Outstanding.RecomputeAging(cmd.Context(), asOf)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d obligations updated as of %s\n", changed, asOf.Format(time.DateOnly))
	return nil
}
