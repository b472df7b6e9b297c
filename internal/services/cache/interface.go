// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package cache

import (
	"context"
	"errors"
	"time"
)

var (
	ErrKeyNotFound = errors.New("cache: key not found")
	ErrClosed      = errors.New("cache: store is closed")
)

const (
	PrefixOAuthState = "oauth:state:"
	PrefixRevoked    = "session:revoked:"
	PrefixRate       = "rate:"

	DefaultTimeout  = 5 * time.Second
	DefaultTTL      = 15 * time.Minute
	CleanupInterval = 1 * time.Minute
)

// Store defines the caching operations.
// Implementations must be safe for concurrent use.
type Store interface {
	Get(ctx context.Context, key string, value interface{}) error
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, key string) error
	// Take reads and removes a key in one step, so a value can be consumed once.
	Take(ctx context.Context, key string, value interface{}) error
	// RecordHit adds one hit at time at to the sliding window stored under key,
	// drops hits older than window and returns the hits left in the window.
	RecordHit(ctx context.Context, key string, at time.Time, window time.Duration) (int64, error)
	Close() error
}

// Ensure implementations satisfy Store
var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*RedisStore)(nil)
)
