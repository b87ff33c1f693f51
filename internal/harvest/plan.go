// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package harvest

import "github.com/pdiddy/paperharvest/pkg/types"

// plan is the diff of a fresh listing against prior checkpoint records.
// Retries run before new items: they are cheap (document fetch only) and
// bound the work lost if the run is cut short.
type plan struct {
	// Reuse holds prior records that are already complete.
	Reuse []types.Paper
	// Retry holds prior records whose document fetch failed last time.
	// They are not re-parsed.
	Retry []types.Paper
	// New holds page URLs with no prior record, in listing order.
	New []string
}

// buildPlan classifies every freshly listed page. Prior records are keyed
// by page URL so the diff stays linear; records whose pages dropped out of
// the listing are not carried forward.
func buildPlan(prior []types.Paper, pageURLs []string) plan {
	known := make(map[string]types.Paper, len(prior))
	for _, p := range prior {
		known[p.PageURL] = p
	}

	var pl plan
	for _, pageURL := range pageURLs {
		p, ok := known[pageURL]
		switch {
		case !ok:
			pl.New = append(pl.New, pageURL)
		case p.Complete():
			pl.Reuse = append(pl.Reuse, p)
		default:
			pl.Retry = append(pl.Retry, p)
		}
	}
	return pl
}
