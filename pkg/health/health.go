// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mosaic Contributors

// Package health holds the serializable health snapshot shared by
// providers and the doctor command.
package health

import "time"

// Metrics is a point-in-time view of a provider's recent call outcomes.
type Metrics struct {
	Provider      string     `json:"provider" yaml:"provider"`
	Available     bool       `json:"available" yaml:"available"`
	FailureCount  int64      `json:"failure_count" yaml:"failure_count"`
	SuccessCount  int64      `json:"success_count" yaml:"success_count"`
	LastError     string     `json:"last_error,omitempty" yaml:"last_error,omitempty"`
	LastFailureAt *time.Time `json:"last_failure_at,omitempty" yaml:"last_failure_at,omitempty"`
	CooldownUntil *time.Time `json:"cooldown_until,omitempty" yaml:"cooldown_until,omitempty"`
}

// Status renders a short label for terminal output.
func (m Metrics) Status() string {
	if m.Available {
		return "healthy"
	}
	return "cooling down"
}
