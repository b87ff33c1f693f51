package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/paperharvest/internal/source"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List supported proceedings sources and their politeness policies",
	Run:   runSources,
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
}

func runSources(cmd *cobra.Command, args []string) {
	rows := make([][]string, 0)
	for _, entry := range source.All() {
		policy := entry.Policy.WithDefaults()
		rows = append(rows, []string{
			entry.Name,
			entry.DisplayName,
			entry.BaseURL,
			policy.MinDelay.String(),
			fmt.Sprintf("%d", policy.MaxRetries),
			policy.CooldownDefault.Round(time.Second).String(),
		})
	}
	fmt.Println(renderTable(
		[]string{"Source", "Conference", "Site", "Delay", "Retries", "Cooldown"},
		rows, 4, 5, 6))
}
