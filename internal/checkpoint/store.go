// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package checkpoint persists the per-partition record list that makes runs
// resumable. Each partition owns one JSON file plus a sibling backup from
// the previous save; a save replaces the whole file or fails leaving the
// prior copy intact.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"github.com/pdiddy/paperharvest/pkg/types"
)

const backupSuffix = ".bak"

// Store reads and writes partition checkpoints under a base directory.
type Store struct {
	dataDir string
	logger  *zap.Logger
}

// NewStore builds a Store rooted at dataDir. A nil logger disables logging.
func NewStore(dataDir string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{dataDir: dataDir, logger: logger}
}

// Path returns the checkpoint file for a partition:
// <dataDir>/metadata/<source>/<source>_<year>.json.
func (s *Store) Path(p types.Partition) string {
	return filepath.Join(s.dataDir, "metadata", p.Source, p.Key()+".json")
}

// Load returns the partition's prior records. A missing or corrupt
// checkpoint yields an empty list: corruption is treated as absence, never
// half-applied.
func (s *Store) Load(p types.Partition) []types.Paper {
	path := s.Path(p)
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("checkpoint unreadable, starting fresh",
				zap.String("path", path),
				zap.Error(err))
		}
		return nil
	}

	var papers []types.Paper
	if err := json.Unmarshal(data, &papers); err != nil {
		s.logger.Warn("checkpoint corrupt, starting fresh",
			zap.String("path", path),
			zap.Error(err))
		return nil
	}

	s.logger.Info("loaded checkpoint",
		zap.String("partition", p.Key()),
		zap.Int("records", len(papers)))
	return papers
}

// Save replaces the partition checkpoint with records. An existing file is
// first moved to the backup path, so a failure mid-save leaves at least one
// readable copy on disk. A file lock serializes writers for the partition.
func (s *Store) Save(p types.Partition, papers []types.Paper) error {
	path := s.Path(p)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating checkpoint directory: %w", err)
	}

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("locking checkpoint %s: %w", p.Key(), err)
	}
	defer lock.Unlock()

	data, err := json.MarshalIndent(papers, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding checkpoint: %w", err)
	}

	if err := s.backupExisting(path); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing checkpoint %s: %w", path, err)
	}

	s.logger.Info("saved checkpoint",
		zap.String("partition", p.Key()),
		zap.Int("records", len(papers)))
	return nil
}

// backupExisting moves an existing checkpoint aside before the overwrite.
func (s *Store) backupExisting(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("checking checkpoint %s: %w", path, err)
	}
	backup := path + backupSuffix
	if err := os.Rename(path, backup); err != nil {
		return fmt.Errorf("backing up checkpoint %s: %w", path, err)
	}
	return nil
}
