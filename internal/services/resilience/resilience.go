// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package resilience

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

const (
	MaxRetries     = 3
	InitialBackoff = 100 * time.Millisecond
	MaxBackoff     = 2 * time.Second
)

// CircuitBreaker stops calls to a failing backend. After maxFailures
// consecutive failures it opens for resetTimeout, then lets one call through
// to probe the backend again.
type CircuitBreaker struct {
	mu           sync.Mutex
	failures     int
	openedAt     time.Time
	probing      bool
	maxFailures  int
	resetTimeout time.Duration
	now          func() time.Time
}

func NewCircuitBreaker(maxFailures int, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		now:          time.Now,
	}
}

// Allow reports whether a call may proceed. Every allowed call must be
// followed by RecordSuccess, RecordFailure or Abandon.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.failures < cb.maxFailures {
		return true
	}
	if cb.probing || cb.now().Sub(cb.openedAt) < cb.resetTimeout {
		return false
	}
	cb.probing = true
	return true
}

// IsOpen reports whether calls are currently rejected.
func (cb *CircuitBreaker) IsOpen() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.failures < cb.maxFailures {
		return false
	}
	return cb.probing || cb.now().Sub(cb.openedAt) < cb.resetTimeout
}

func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.probing = false
	if cb.failures >= cb.maxFailures {
		cb.openedAt = cb.now()
	}
}

func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	cb.probing = false
}

// Abandon ends an allowed call that says nothing about the backend's health.
func (cb *CircuitBreaker) Abandon() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.probing = false
}

// RetryWithBackoff calls fn up to MaxRetries times with jittered exponential
// backoff between attempts.
func RetryWithBackoff(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	backoff := InitialBackoff

	for i := 0; i < MaxRetries; i++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if i == MaxRetries-1 {
			break
		}

		// 50-150% jitter
		wait := time.Duration(float64(backoff) * (0.5 + rand.Float64()))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}

		backoff *= 2
		if backoff > MaxBackoff {
			backoff = MaxBackoff
		}
	}

	return fmt.Errorf("failed after %d attempts: %w", MaxRetries, err)
}
