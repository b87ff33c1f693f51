package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/paperharvest/internal/checkpoint"
	"github.com/pdiddy/paperharvest/internal/download"
	"github.com/pdiddy/paperharvest/internal/harvest"
	"github.com/pdiddy/paperharvest/internal/logging"
	"github.com/pdiddy/paperharvest/internal/runlog"
	"github.com/pdiddy/paperharvest/internal/source"
	"github.com/pdiddy/paperharvest/internal/transport"
	"github.com/pdiddy/paperharvest/pkg/types"

	// Registered source adapters.
	_ "github.com/pdiddy/paperharvest/internal/source/mlr"
	_ "github.com/pdiddy/paperharvest/internal/source/neurips"
)

const defaultPause = 2 * time.Second

var harvestCmd = &cobra.Command{
	Use:   "harvest <source> <year> [year...]",
	Short: "Harvest one or more proceedings years from a source",
	Long: `Harvest crawls the given source for each requested year: it lists the
papers, parses each abstract page, downloads PDFs, and checkpoints progress
so an interrupted run can resume. Press Ctrl-C to stop; accumulated records
are flushed before exit.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runHarvest,
}

func init() {
	harvestCmd.Flags().Bool("no-pdfs", false, "skip PDF downloads, metadata only")
	harvestCmd.Flags().Bool("no-resume", false, "ignore prior checkpoints and refetch everything")
	harvestCmd.Flags().Int("batch-size", 0, "records between checkpoint writes (default 10)")
	harvestCmd.Flags().String("policies", "", "YAML file with per-source policy overrides")
	harvestCmd.Flags().Duration("pause", defaultPause, "pause between years")

	rootCmd.AddCommand(harvestCmd)
}

func runHarvest(cmd *cobra.Command, args []string) error {
	sourceName := args[0]
	years := make([]int, 0, len(args)-1)
	for _, raw := range args[1:] {
		year, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("invalid year %q", raw)
		}
		years = append(years, year)
	}

	if policiesPath, _ := cmd.Flags().GetString("policies"); policiesPath != "" {
		pf, err := source.LoadPolicyFile(policiesPath)
		if err != nil {
			return err
		}
		if err := source.ApplyPolicyFile(pf); err != nil {
			return err
		}
	}

	entry, ok := source.Lookup(sourceName)
	if !ok {
		return fmt.Errorf("unknown source %q (known: %s)", sourceName, strings.Join(source.Names(), ", "))
	}

	verbose, _ := rootCmd.PersistentFlags().GetBool("verbose")
	logger, err := logging.New(verbose)
	if err != nil {
		return err
	}
	defer logger.Sync()

	dataDir, _ := rootCmd.PersistentFlags().GetString("data-dir")
	noPDFs, _ := cmd.Flags().GetBool("no-pdfs")
	noResume, _ := cmd.Flags().GetBool("no-resume")
	batchSize, _ := cmd.Flags().GetInt("batch-size")
	pause, _ := cmd.Flags().GetDuration("pause")

	cfg := types.HarvestConfig{
		DataDir:      dataDir,
		BatchSize:    batchSize,
		DownloadPDFs: !noPDFs,
		Resume:       !noResume,
	}.WithDefaults()

	client := transport.New(entry.Policy, logger)
	adapter := entry.New(client, logger)
	store := checkpoint.NewStore(cfg.DataDir, logger)
	fetcher := download.NewFetcher(client, logger)
	harvester := harvest.New(adapter, store, fetcher, cfg, logger)

	ledger, err := runlog.Open(cfg.DataDir)
	if err != nil {
		return err
	}
	defer ledger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for i, year := range years {
		partition := types.Partition{Source: sourceName, Year: year}
		started := time.Now()

		res, runErr := harvester.Run(ctx, partition)
		recordRun(ledger, partition, started, res, runErr)

		fmt.Printf("%s: %d reused, %d retried, %d parsed, %d skipped\n",
			partition, res.ReusedComplete, res.DocumentRetried, res.NewlyParsed, res.SkippedFailed)

		if runErr != nil {
			return runErr
		}
		if i < len(years)-1 {
			select {
			case <-ctx.Done():
				return harvest.ErrInterrupted
			case <-time.After(pause):
			}
		}
	}
	return nil
}

// recordRun appends the run to the ledger. Ledger failures are reported but
// never mask the harvest outcome.
func recordRun(ledger *runlog.Store, p types.Partition, started time.Time, res harvest.Result, runErr error) {
	outcome := "ok"
	switch {
	case errors.Is(runErr, harvest.ErrInterrupted):
		outcome = "interrupted"
	case runErr != nil:
		outcome = "failed"
	}

	err := ledger.Record(context.Background(), runlog.Run{
		Source:     p.Source,
		Year:       p.Year,
		StartedAt:  started,
		FinishedAt: time.Now(),
		Reused:     res.ReusedComplete,
		Retried:    res.DocumentRetried,
		Parsed:     res.NewlyParsed,
		Skipped:    res.SkippedFailed,
		Outcome:    outcome,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "warning: run ledger write failed:", err)
	}
}
