// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mosaic Contributors

package provider

import (
	"sync"
	"time"

	mosaicerr "github.com/mosaic-dev/mosaic/pkg/errors"
	"github.com/mosaic-dev/mosaic/pkg/health"
)

// DefaultHealthCooldown is how long a provider stays unhealthy after a
// failed call.
const DefaultHealthCooldown = 30 * time.Second

// HealthTracker records call outcomes for one provider. A provider is
// healthy until RecordFailure, then unhealthy until the cooldown elapses or
// a call succeeds.
type HealthTracker struct {
	mu           sync.RWMutex
	provider     string
	healthy      bool
	failedAt     time.Time
	cooldown     time.Duration
	failureCount int64
	successCount int64
	lastError    string
	nowFunc      func() time.Time
}

// NewHealthTracker creates a tracker that starts healthy.
func NewHealthTracker(providerName string, cooldown time.Duration) (*HealthTracker, error) {
	if cooldown <= 0 {
		return nil, mosaicerr.Errorf(mosaicerr.CodeConfigValidateInvalidValue,
			"health tracker cooldown must be positive, got %s", cooldown)
	}
	return &HealthTracker{
		provider: providerName,
		healthy:  true,
		cooldown: cooldown,
		nowFunc:  time.Now,
	}, nil
}

// MustHealthTracker is NewHealthTracker with DefaultHealthCooldown.
func MustHealthTracker(providerName string) *HealthTracker {
	h, err := NewHealthTracker(providerName, DefaultHealthCooldown)
	if err != nil {
		panic(err)
	}
	return h
}

// caller holds h.mu
func (h *HealthTracker) isHealthyLocked() bool {
	if h.healthy {
		return true
	}
	return h.nowFunc().Sub(h.failedAt) >= h.cooldown
}

func (h *HealthTracker) IsHealthy() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.isHealthyLocked()
}

func (h *HealthTracker) RecordSuccess() {
	h.mu.Lock()
	h.healthy = true
	h.successCount++
	h.mu.Unlock()
}

func (h *HealthTracker) RecordFailure(err error) {
	h.mu.Lock()
	h.healthy = false
	h.failedAt = h.nowFunc()
	h.failureCount++
	if err != nil {
		h.lastError = err.Error()
	}
	h.mu.Unlock()
}

// SetNowFunc overrides the time source (for testing).
func (h *HealthTracker) SetNowFunc(fn func() time.Time) {
	h.mu.Lock()
	h.nowFunc = fn
	h.mu.Unlock()
}

// HealthMetrics returns a point-in-time snapshot.
func (h *HealthTracker) HealthMetrics() health.Metrics {
	h.mu.RLock()
	defer h.mu.RUnlock()

	m := health.Metrics{
		Provider:     h.provider,
		FailureCount: h.failureCount,
		SuccessCount: h.successCount,
		LastError:    h.lastError,
		Available:    h.isHealthyLocked(),
	}
	if h.failureCount > 0 {
		t := h.failedAt
		m.LastFailureAt = &t
	}
	if !h.healthy {
		end := h.failedAt.Add(h.cooldown)
		m.CooldownUntil = &end
	}
	return m
}
