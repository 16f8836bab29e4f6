package main

import (
	"fmt"

	"github.com/spf13/cobra"

	ledger "github.com/xxz807/finscale/accounting/internal/ledger/domain"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Run integrity checks on the ledger and the subledgers",
	Long: `Check that the trial balance balances, that Assets equal Liabilities plus
Equity for the window, and that every subledger balance equals the sum of its
entries. Mismatches are reported, never repaired. Exits non-zero on failure.`,
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
	addWindowFlags(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	start, end, err := windowFlags(cmd)
	if err != nil {
		return err
	}
	w, err := ledger.NewWindow(start, end)
	if err != nil {
		return err
	}
	a, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Verify(cmd.Context(), w); err != nil {
		return fmt.Errorf("integrity check failed:\n%w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "all integrity checks passed")
	return nil
}
