// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/paperharvest/pkg/types"
)

// PolicyFile is the on-disk shape of per-source policy overrides. Sources
// publish different tolerances, so operators tune these without rebuilding.
//
//	sources:
//	  neurips:
//	    min_delay: 500ms
//	    max_retries: 5
type PolicyFile struct {
	Sources map[string]PolicyOverride `yaml:"sources"`
}

// PolicyOverride adjusts individual fields of a source's default policy.
// Durations use Go syntax ("500ms", "2m"); unset fields keep the default.
type PolicyOverride struct {
	MinDelay    string `yaml:"min_delay,omitempty"`
	Timeout     string `yaml:"timeout,omitempty"`
	MaxRetries  *int   `yaml:"max_retries,omitempty"`
	BackoffBase string `yaml:"backoff_base,omitempty"`
	BackoffCap  string `yaml:"backoff_cap,omitempty"`
	Cooldown    string `yaml:"cooldown,omitempty"`
	UserAgent   string `yaml:"user_agent,omitempty"`
}

// Apply merges the override into a base policy.
func (o PolicyOverride) Apply(base types.SourcePolicy) (types.SourcePolicy, error) {
	set := func(dst *time.Duration, raw, field string) error {
		if raw == "" {
			return nil
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", field, raw, err)
		}
		*dst = d
		return nil
	}
	if err := set(&base.MinDelay, o.MinDelay, "min_delay"); err != nil {
		return base, err
	}
	if err := set(&base.Timeout, o.Timeout, "timeout"); err != nil {
		return base, err
	}
	if err := set(&base.BackoffBase, o.BackoffBase, "backoff_base"); err != nil {
		return base, err
	}
	if err := set(&base.BackoffCap, o.BackoffCap, "backoff_cap"); err != nil {
		return base, err
	}
	if err := set(&base.CooldownDefault, o.Cooldown, "cooldown"); err != nil {
		return base, err
	}
	if o.MaxRetries != nil {
		base.MaxRetries = *o.MaxRetries
	}
	if o.UserAgent != "" {
		base.UserAgent = o.UserAgent
	}
	return base, nil
}

// LoadPolicyFile parses a YAML override file.
func LoadPolicyFile(path string) (PolicyFile, error) {
	var pf PolicyFile
	data, err := os.ReadFile(path)
	if err != nil {
		return pf, fmt.Errorf("reading policy file: %w", err)
	}
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return pf, fmt.Errorf("parsing policy file %s: %w", path, err)
	}
	return pf, nil
}

// ApplyPolicyFile merges every override in the file into the registry.
// Overrides naming unregistered sources are an error so typos surface.
func ApplyPolicyFile(pf PolicyFile) error {
	for name, override := range pf.Sources {
		entry, ok := Lookup(name)
		if !ok {
			return fmt.Errorf("policy override for unknown source %q", name)
		}
		merged, err := override.Apply(entry.Policy)
		if err != nil {
			return fmt.Errorf("source %q: %w", name, err)
		}
		if err := SetPolicy(name, merged); err != nil {
			return err
		}
	}
	return nil
}
