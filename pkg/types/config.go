// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// SourcePolicy holds the politeness and failure-recovery constants for one
// publication source. Policies differ per source and are injected into the
// transport per partition rather than hard-coded.
type SourcePolicy struct {
	// MinDelay is the minimum spacing between consecutive requests to the
	// source. No two fetches through one transport begin closer together.
	MinDelay time.Duration `json:"min_delay" yaml:"min_delay"`

	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// MaxRetries bounds retry attempts for transient failures.
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// BackoffBase is the unit for exponential backoff sleeps
	// (base * 2^attempt). Tests shrink it to avoid real waits.
	BackoffBase time.Duration `json:"backoff_base" yaml:"backoff_base"`

	// BackoffCap bounds a single backoff sleep.
	BackoffCap time.Duration `json:"backoff_cap" yaml:"backoff_cap"`

	// CooldownDefault is the rate-limit cooldown applied when a 429
	// response carries no Retry-After hint.
	CooldownDefault time.Duration `json:"cooldown_default" yaml:"cooldown_default"`

	// UserAgent is the User-Agent header sent with every request.
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// WithDefaults fills unset policy fields with conservative values.
func (sp SourcePolicy) WithDefaults() SourcePolicy {
	if sp.MinDelay <= 0 {
		sp.MinDelay = 1 * time.Second
	}
	if sp.Timeout <= 0 {
		sp.Timeout = 30 * time.Second
	}
	if sp.MaxRetries <= 0 {
		sp.MaxRetries = 3
	}
	if sp.BackoffBase <= 0 {
		sp.BackoffBase = 1 * time.Second
	}
	if sp.BackoffCap <= 0 {
		sp.BackoffCap = 30 * time.Second
	}
	if sp.CooldownDefault <= 0 {
		sp.CooldownDefault = 60 * time.Second
	}
	if sp.UserAgent == "" {
		sp.UserAgent = "paperharvest/0.1"
	}
	return sp
}

// HarvestConfig holds settings for one orchestrated partition run.
type HarvestConfig struct {
	// DataDir is the base directory holding metadata/ and papers/.
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// BatchSize is the number of newly completed records between periodic
	// checkpoint writes (default 10). An interruption loses at most one
	// batch of progress.
	BatchSize int `json:"batch_size" yaml:"batch_size"`

	// DownloadPDFs controls whether documents are fetched alongside
	// metadata.
	DownloadPDFs bool `json:"download_pdfs" yaml:"download_pdfs"`

	// Resume controls whether a prior checkpoint seeds the run.
	Resume bool `json:"resume" yaml:"resume"`
}

// WithDefaults fills unset harvest fields.
func (hc HarvestConfig) WithDefaults() HarvestConfig {
	if hc.DataDir == "" {
		hc.DataDir = "data"
	}
	if hc.BatchSize <= 0 {
		hc.BatchSize = 10
	}
	return hc
}
