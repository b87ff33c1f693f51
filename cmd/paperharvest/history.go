package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/paperharvest/internal/runlog"
	"github.com/pdiddy/paperharvest/pkg/types"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent harvest runs",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().Int("limit", 20, "number of runs to show")
	historyCmd.Flags().String("source", "", "show only runs of this source (requires --year)")
	historyCmd.Flags().Int("year", 0, "show only runs of this year (requires --source)")

	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	dataDir, _ := rootCmd.PersistentFlags().GetString("data-dir")
	limit, _ := cmd.Flags().GetInt("limit")
	sourceName, _ := cmd.Flags().GetString("source")
	year, _ := cmd.Flags().GetInt("year")

	ledger, err := runlog.Open(dataDir)
	if err != nil {
		return err
	}
	defer ledger.Close()

	var runs []runlog.Run
	switch {
	case sourceName != "" && year != 0:
		runs, err = ledger.ForPartition(cmd.Context(), types.Partition{Source: sourceName, Year: year})
	case sourceName != "" || year != 0:
		return fmt.Errorf("--source and --year must be given together")
	default:
		runs, err = ledger.Recent(cmd.Context(), limit)
	}
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no harvest runs recorded")
		return nil
	}

	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			fmt.Sprintf("%s_%d", r.Source, r.Year),
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String(),
			fmt.Sprintf("%d", r.Reused),
			fmt.Sprintf("%d", r.Retried),
			fmt.Sprintf("%d", r.Parsed),
			fmt.Sprintf("%d", r.Skipped),
			r.Outcome,
		})
	}
	fmt.Println(renderTable(
		[]string{"Partition", "Started", "Took", "Reused", "Retried", "Parsed", "Skipped", "Outcome"},
		rows, 3, 4, 5, 6, 7))
	return nil
}
