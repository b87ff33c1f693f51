// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/pdiddy/paperharvest/internal/transport"
	"github.com/pdiddy/paperharvest/pkg/types"
)

// Factory builds an adapter bound to a transport and logger.
type Factory func(client *transport.Client, logger *zap.Logger) Adapter

// Entry describes one registered source: its default politeness policy and
// how to construct its adapter.
type Entry struct {
	// Name is the key used on the command line (e.g. "neurips").
	Name string

	// DisplayName is the human-readable source name (e.g. "NeurIPS").
	DisplayName string

	// BaseURL is the source's root URL, shown in listings.
	BaseURL string

	// Policy holds the source's default transport policy. Sources differ:
	// some proceedings sites tolerate fast crawls, others rate-limit hard.
	Policy types.SourcePolicy

	// New constructs the adapter.
	New Factory
}

var (
	registryMu sync.RWMutex
	registry   = map[string]Entry{}
)

// Register adds a source entry. Adapter packages call this from init;
// duplicate names panic early rather than shadowing silently.
func Register(e Entry) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if e.Name == "" || e.New == nil {
		panic("source: Register with empty name or nil factory")
	}
	if _, dup := registry[e.Name]; dup {
		panic(fmt.Sprintf("source: duplicate registration for %q", e.Name))
	}
	registry[e.Name] = e
}

// Lookup returns the entry for a source name.
func Lookup(name string) (Entry, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	e, ok := registry[name]
	return e, ok
}

// Names returns the registered source names, sorted.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns every registered entry, sorted by name.
func All() []Entry {
	registryMu.RLock()
	defer registryMu.RUnlock()
	entries := make([]Entry, 0, len(registry))
	for _, e := range registry {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries
}

// SetPolicy replaces the default policy for a registered source, used when
// a policy override file adjusts per-source constants.
func SetPolicy(name string, policy types.SourcePolicy) error {
	registryMu.Lock()
	defer registryMu.Unlock()
	e, ok := registry[name]
	if !ok {
		return fmt.Errorf("unknown source %q", name)
	}
	e.Policy = policy
	registry[name] = e
	return nil
}
