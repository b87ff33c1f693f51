// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package checkpoint

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/pdiddy/paperharvest/pkg/types"
)

var testPartition = types.Partition{Source: "neurips", Year: 2023}

func samplePapers() []types.Paper {
	return []types.Paper{
		{ID: "a1", Title: "First", PageURL: "https://example.com/a1", Source: "neurips", Year: 2023},
		{ID: "b2", Title: "Second", PageURL: "https://example.com/b2", Source: "neurips", Year: 2023,
			PDFURL: "https://example.com/b2.pdf", PDFDownloaded: true, PDFPath: "/tmp/b2.pdf"},
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := NewStore(t.TempDir(), nil)

	if err := s.Save(testPartition, samplePapers()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got := s.Load(testPartition)
	if len(got) != 2 {
		t.Fatalf("len(Load) = %d, want 2", len(got))
	}
	if got[0].ID != "a1" || got[1].ID != "b2" {
		t.Errorf("IDs = %q, %q", got[0].ID, got[1].ID)
	}
	if !got[1].PDFDownloaded {
		t.Error("PDFDownloaded not preserved")
	}
}

func TestLoadMissingReturnsEmpty(t *testing.T) {
	s := NewStore(t.TempDir(), nil)
	if got := s.Load(testPartition); len(got) != 0 {
		t.Errorf("Load of missing checkpoint = %d records, want 0", len(got))
	}
}

func TestLoadCorruptReturnsEmpty(t *testing.T) {
	s := NewStore(t.TempDir(), nil)
	path := s.Path(testPartition)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := s.Load(testPartition); len(got) != 0 {
		t.Errorf("Load of corrupt checkpoint = %d records, want 0", len(got))
	}
}

func TestSaveKeepsBackupOfPriorContent(t *testing.T) {
	s := NewStore(t.TempDir(), nil)

	first := samplePapers()[:1]
	if err := s.Save(testPartition, first); err != nil {
		t.Fatalf("first Save: %v", err)
	}
	if err := s.Save(testPartition, samplePapers()); err != nil {
		t.Fatalf("second Save: %v", err)
	}

	backup, err := os.ReadFile(s.Path(testPartition) + backupSuffix)
	if err != nil {
		t.Fatalf("reading backup: %v", err)
	}
	var prior []types.Paper
	if err := json.Unmarshal(backup, &prior); err != nil {
		t.Fatalf("backup not parseable: %v", err)
	}
	if len(prior) != 1 || prior[0].ID != "a1" {
		t.Errorf("backup holds %d records, want the prior single record", len(prior))
	}

	if got := s.Load(testPartition); len(got) != 2 {
		t.Errorf("current checkpoint = %d records, want 2", len(got))
	}
}

func TestCrashBetweenBackupAndWriteLeavesReadableCopy(t *testing.T) {
	s := NewStore(t.TempDir(), nil)
	if err := s.Save(testPartition, samplePapers()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Simulate a crash after the backup step but before the new write.
	path := s.Path(testPartition)
	if err := s.backupExisting(path); err != nil {
		t.Fatalf("backupExisting: %v", err)
	}

	data, err := os.ReadFile(path + backupSuffix)
	if err != nil {
		t.Fatalf("no readable copy left on disk: %v", err)
	}
	var papers []types.Paper
	if err := json.Unmarshal(data, &papers); err != nil {
		t.Fatalf("surviving copy not parseable: %v", err)
	}
	if len(papers) != 2 {
		t.Errorf("surviving copy = %d records, want 2", len(papers))
	}
}

func TestCheckpointIsHumanReadable(t *testing.T) {
	s := NewStore(t.TempDir(), nil)
	if err := s.Save(testPartition, samplePapers()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, err := os.ReadFile(s.Path(testPartition))
	if err != nil {
		t.Fatal(err)
	}
	// Indented JSON: fields appear on their own lines.
	if !json.Valid(data) {
		t.Fatal("checkpoint is not valid JSON")
	}
	if !containsLine(data, `  {`) {
		t.Error("checkpoint should be indented")
	}
}

func containsLine(data []byte, line string) bool {
	for _, l := range splitLines(string(data)) {
		if l == line {
			return true
		}
	}
	return false
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	return append(lines, s[start:])
}
