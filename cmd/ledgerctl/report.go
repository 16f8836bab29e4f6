package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var trialBalanceCmd = &cobra.Command{
	Use:     "trial-balance",
	Short:   "Print the trial balance for a window",
	Example: `  ledgerctl trial-balance --start 2024-01-01 --end 2024-01-31 --json`,
	RunE:    runTrialBalance,
}

func init() {
	rootCmd.AddCommand(trialBalanceCmd)
	addWindowFlags(trialBalanceCmd)
	trialBalanceCmd.Flags().Bool("json", false, "print JSON instead of a table")
}

func runTrialBalance(cmd *cobra.Command, args []string) error {
	start, end, err := windowFlags(cmd)
	if err != nil {
		return err
	}
	a, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	tb, err := a.Reports.TrialBalance(cmd.Context(), start, end)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(tb)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "CODE\tACCOUNT\tDEBIT\tCREDIT\t")
	for _, r := range tb.Rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n", r.AccountCode, r.AccountName, r.TotalDebit.StringFixed(2), r.TotalCredit.StringFixed(2))
	}
	fmt.Fprintf(tw, "\tTOTAL\t%s\t%s\t\n", tb.TotalDebit.StringFixed(2), tb.TotalCredit.StringFixed(2))
	if err := tw.Flush(); err != nil {
		return err
	}
	if !tb.IsBalanced {
		return fmt.Errorf("trial balance does not balance: debit %s, credit %s", tb.TotalDebit, tb.TotalCredit)
	}
	return nil
}
