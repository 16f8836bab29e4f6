package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// dateFlag reads a YYYY-MM-DD flag; empty means fallback.
func dateFlag(cmd *cobra.Command, name string, fallback time.Time) (time.Time, error) {
	s, _ := cmd.Flags().GetString(name)
	if s == "" {
		return fallback, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s, use YYYY-MM-DD: %w", name, err)
	}
	return t, nil
}

// windowFlags reads --start/--end, defaulting to the current month.
func windowFlags(cmd *cobra.Command) (start, end time.Time, err error) {
	now := time.Now().UTC()
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	if start, err = dateFlag(cmd, "start", first); err != nil {
		return
	}
	end, err = dateFlag(cmd, "end", first.AddDate(0, 1, -1))
	return
}

func addWindowFlags(cmd *cobra.Command) {
	cmd.Flags().String("start", "", "window start (YYYY-MM-DD, default: first day of this month)")
	cmd.Flags().String("end", "", "window end (YYYY-MM-DD, default: last day of this month)")
}
