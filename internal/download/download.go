// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package download materializes PDF artifacts referenced by harvested
// records. Downloads are idempotent: an artifact already on disk is never
// re-fetched, so re-runs detect prior work from the filesystem alone.
package download

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/paperharvest/internal/transport"
	"github.com/pdiddy/paperharvest/pkg/types"
)

// Fetcher downloads documents through a shared transport.
type Fetcher struct {
	client *transport.Client
	logger *zap.Logger
}

// NewFetcher wires a Fetcher. A nil logger disables logging.
func NewFetcher(client *transport.Client, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{client: client, logger: logger}
}

// FetchDocument downloads url to dest, creating parent directories as
// needed. It returns true if the file is present when it returns, and
// false on any transport or I/O failure; it never panics and never leaves
// a truncated file behind. An existing file short-circuits with no
// network call.
func (f *Fetcher) FetchDocument(ctx context.Context, url, dest string) bool {
	if _, err := os.Stat(dest); err == nil {
		f.logger.Debug("document already on disk", zap.String("path", dest))
		return true
	}

	resp, err := f.client.Get(ctx, url)
	if err != nil {
		f.logger.Warn("document fetch failed",
			zap.String("url", url),
			zap.Error(err))
		return false
	}
	defer resp.Body.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		f.logger.Error("creating document directory",
			zap.String("path", filepath.Dir(dest)),
			zap.Error(err))
		return false
	}

	n, err := writeAtomic(dest, resp.Body)
	if err != nil {
		f.logger.Warn("document write failed",
			zap.String("url", url),
			zap.String("path", dest),
			zap.Error(err))
		return false
	}

	f.logger.Info("document downloaded",
		zap.String("path", dest),
		zap.Int64("bytes", n))
	return true
}

// writeAtomic streams body into a temp file next to dest and renames it
// into place, so an interrupted write leaves nothing at dest.
func writeAtomic(dest string, body io.Reader) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".harvest-*.tmp")
	if err != nil {
		return 0, fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	n, copyErr := io.Copy(tmp, body)
	closeErr := tmp.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("writing download: %w", copyErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("closing temp file: %w", closeErr)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("renaming temp file: %w", err)
	}
	return n, nil
}

var unsafeChars = regexp.MustCompile(`[<>:"/\\|?*]`)

// SanitizeFilename replaces filesystem-unsafe characters and bounds the
// length so derived names are valid on common filesystems.
func SanitizeFilename(name string) string {
	name = unsafeChars.ReplaceAllString(name, "_")
	if len(name) > 100 {
		name = name[:100]
	}
	return strings.TrimSpace(name)
}

// PaperFilename derives the document filename for a record from its ID and
// sanitized title. The derivation is deterministic so re-runs can find
// existing downloads without consulting the checkpoint.
func PaperFilename(paper *types.Paper) string {
	id := paper.ID
	if id == "" {
		id = "unknown"
	}
	title := SanitizeFilename(paper.Title)
	if len(title) > 50 {
		title = strings.TrimSpace(title[:50])
	}
	if title == "" {
		return id + ".pdf"
	}
	return id + "_" + title + ".pdf"
}

// DocumentPath returns where a record's document belongs under dataDir:
// papers/<source>/<year>/<filename>.
func DocumentPath(dataDir string, partition types.Partition, paper *types.Paper) string {
	return filepath.Join(dataDir, "papers", partition.Source,
		strconv.Itoa(partition.Year), PaperFilename(paper))
}
