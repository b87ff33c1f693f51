// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "fmt"

// Partition identifies one unit of harvest work: a (source, year) pair.
// Partitions are immutable and key the per-partition checkpoint file.
type Partition struct {
	// Source is the registered source name (e.g. "neurips", "icml").
	Source string `json:"source" yaml:"source"`

	// Year is the proceedings year being harvested.
	Year int `json:"year" yaml:"year"`
}

// Key returns the stable string form used for checkpoint and artifact paths.
func (p Partition) Key() string {
	return fmt.Sprintf("%s_%d", p.Source, p.Year)
}

func (p Partition) String() string {
	return fmt.Sprintf("%s %d", p.Source, p.Year)
}

// Paper holds the persisted metadata (and optional PDF reference) for one
// harvested item. Papers are keyed by ID within a partition; PageURL is the
// source-assigned identifier used for resume matching and must be stable
// across runs.
type Paper struct {
	// ID is a slug derived from the source item identifier
	// (e.g. the NeurIPS abstract hash).
	ID string `json:"id" yaml:"id"`

	// Title is the paper title. A record without a title is unusable.
	Title string `json:"title" yaml:"title"`

	// Authors lists the paper authors in source order.
	Authors []string `json:"authors" yaml:"authors"`

	// Abstract is the paper abstract.
	Abstract string `json:"abstract" yaml:"abstract"`

	// PageURL is the item page this record was parsed from.
	PageURL string `json:"url" yaml:"url"`

	// PDFURL is the document location, when the source exposes one.
	PDFURL string `json:"pdf_url,omitempty" yaml:"pdf_url,omitempty"`

	// PDFPath is the local path of the downloaded document. Set only once
	// the file is confirmed on disk.
	PDFPath string `json:"pdf_path,omitempty" yaml:"pdf_path,omitempty"`

	// PDFDownloaded reports whether the document was materialized. When
	// true, PDFPath is always set.
	PDFDownloaded bool `json:"pdf_downloaded" yaml:"pdf_downloaded"`

	// Source and Year tie the record back to its partition.
	Source string `json:"source" yaml:"source"`
	Year   int    `json:"year" yaml:"year"`

	// Extra carries arbitrary source-supplied metadata fields.
	Extra map[string]string `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// NeedsDocumentRetry reports whether a future run should re-attempt the
// document download: a PDF URL is known but the file never landed.
func (p *Paper) NeedsDocumentRetry() bool {
	return p.PDFURL != "" && !p.PDFDownloaded
}

// Complete reports whether the record requires no further work: either the
// document is on disk or the source exposes no document at all.
func (p *Paper) Complete() bool {
	return p.PDFDownloaded || p.PDFURL == ""
}
