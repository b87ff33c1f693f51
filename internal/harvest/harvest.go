// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package harvest drives one source/year partition end-to-end: listing,
// diffing against the prior checkpoint, parsing, document download, and
// periodic checkpointing.
package harvest

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/pdiddy/paperharvest/internal/download"
	"github.com/pdiddy/paperharvest/internal/source"
	"github.com/pdiddy/paperharvest/pkg/types"
)

// ErrInterrupted reports a run cut short by cancellation. The checkpoint
// has already been flushed when this is returned.
var ErrInterrupted = errors.New("harvest interrupted")

// Store persists per-partition checkpoints.
type Store interface {
	Load(p types.Partition) []types.Paper
	Save(p types.Partition, papers []types.Paper) error
}

// Fetcher downloads one document to a local path.
type Fetcher interface {
	FetchDocument(ctx context.Context, url, dest string) bool
}

// Result summarizes one partition run.
type Result struct {
	ReusedComplete  int
	DocumentRetried int
	NewlyParsed     int
	SkippedFailed   int
	Papers          []types.Paper
}

// Harvester orchestrates a single source adapter over its partitions.
type Harvester struct {
	adapter source.Adapter
	store   Store
	fetcher Fetcher
	cfg     types.HarvestConfig
	logger  *zap.Logger
}

// New builds a harvester. The config's zero values are filled with defaults.
func New(adapter source.Adapter, store Store, fetcher Fetcher, cfg types.HarvestConfig, logger *zap.Logger) *Harvester {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Harvester{
		adapter: adapter,
		store:   store,
		fetcher: fetcher,
		cfg:     cfg.WithDefaults(),
		logger:  logger,
	}
}

// Run harvests one partition. Item-level failures (unparseable pages,
// vanished documents) are skipped and counted; checkpoint write failures
// abort the run. On cancellation the accumulated records are flushed
// before ErrInterrupted is returned.
func (h *Harvester) Run(ctx context.Context, p types.Partition) (Result, error) {
	var prior []types.Paper
	if h.cfg.Resume {
		prior = h.store.Load(p)
	}

	pageURLs, err := h.adapter.ItemIDs(ctx, p)
	if err != nil {
		return Result{}, fmt.Errorf("listing %s: %w", p, err)
	}

	pl := buildPlan(prior, pageURLs)
	h.logger.Info("harvest plan",
		zap.String("partition", p.String()),
		zap.Int("listed", len(pageURLs)),
		zap.Int("reused", len(pl.Reuse)),
		zap.Int("retries", len(pl.Retry)),
		zap.Int("new", len(pl.New)))

	res := Result{ReusedComplete: len(pl.Reuse)}
	papers := append([]types.Paper(nil), pl.Reuse...)
	sinceSave := 0

	// Retries first: they are document-only, so they are cheap and clear
	// the oldest debt before new parsing begins.
	for _, rec := range pl.Retry {
		if ctx.Err() != nil {
			return h.interrupted(p, papers, res)
		}
		paper := rec
		h.downloadDocument(ctx, p, &paper)
		papers = append(papers, paper)
		res.DocumentRetried++
		sinceSave++
		if sinceSave >= h.cfg.BatchSize {
			if err := h.store.Save(p, papers); err != nil {
				return res, fmt.Errorf("checkpointing %s: %w", p, err)
			}
			sinceSave = 0
		}
	}

	for _, pageURL := range pl.New {
		if ctx.Err() != nil {
			return h.interrupted(p, papers, res)
		}

		paper, err := h.adapter.ParseItem(ctx, pageURL)
		if err != nil {
			if ctx.Err() != nil {
				return h.interrupted(p, papers, res)
			}
			h.logger.Warn("skipping item",
				zap.String("page", pageURL),
				zap.Error(err))
			res.SkippedFailed++
			continue
		}
		paper.Source = p.Source
		paper.Year = p.Year

		h.downloadDocument(ctx, p, paper)
		papers = append(papers, *paper)
		res.NewlyParsed++
		sinceSave++

		if sinceSave >= h.cfg.BatchSize {
			if err := h.store.Save(p, papers); err != nil {
				return res, fmt.Errorf("checkpointing %s: %w", p, err)
			}
			sinceSave = 0
			h.logger.Info("checkpoint written",
				zap.String("partition", p.String()),
				zap.Int("records", len(papers)))
		}
	}

	if err := h.store.Save(p, papers); err != nil {
		return res, fmt.Errorf("checkpointing %s: %w", p, err)
	}
	res.Papers = papers

	h.logger.Info("harvest complete",
		zap.String("partition", p.String()),
		zap.Int("reused", res.ReusedComplete),
		zap.Int("retried", res.DocumentRetried),
		zap.Int("parsed", res.NewlyParsed),
		zap.Int("skipped", res.SkippedFailed))
	return res, nil
}

// interrupted flushes what was accumulated so a resumed run picks up here.
func (h *Harvester) interrupted(p types.Partition, papers []types.Paper, res Result) (Result, error) {
	if err := h.store.Save(p, papers); err != nil {
		return res, fmt.Errorf("checkpointing %s after interrupt: %w", p, err)
	}
	res.Papers = papers
	h.logger.Warn("harvest interrupted",
		zap.String("partition", p.String()),
		zap.Int("records", len(papers)))
	return res, ErrInterrupted
}

// downloadDocument fetches the paper's document if one is wanted and
// missing. A failed fetch leaves the record retryable on the next run.
func (h *Harvester) downloadDocument(ctx context.Context, p types.Partition, paper *types.Paper) {
	if !h.cfg.DownloadPDFs || !paper.NeedsDocumentRetry() {
		return
	}
	dest := download.DocumentPath(h.cfg.DataDir, p, paper)
	if h.fetcher.FetchDocument(ctx, paper.PDFURL, dest) {
		paper.PDFDownloaded = true
		paper.PDFPath = dest
	}
}
