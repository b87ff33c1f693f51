// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package source defines the adapter surface that publication sources
// implement and the registry the CLI selects them from. The orchestrator
// only ever sees this interface; everything source-specific (listing-page
// layout, item-page extraction) lives behind it.
package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/pdiddy/paperharvest/pkg/types"
)

// Adapter is one publication source. ItemIDs must be stable across runs:
// resume matching relies on re-listing returning identifiers consistent
// with those seen before.
type Adapter interface {
	// Name returns the registered source name.
	Name() string

	// ItemIDs returns the ordered item identifiers (page URLs) for a
	// partition. It may paginate through the shared transport.
	ItemIDs(ctx context.Context, p types.Partition) ([]string, error)

	// ParseItem fetches and parses one item page into a record. A page
	// missing required fields yields a *ParseError.
	ParseItem(ctx context.Context, pageURL string) (*types.Paper, error)
}

// ParseError reports that an item page could not be turned into a usable
// record. The orchestrator skips the item and keeps going.
type ParseError struct {
	PageURL string
	Reason  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing %s: %s", e.PageURL, e.Reason)
}

// IsParseError reports whether err is (or wraps) a ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
