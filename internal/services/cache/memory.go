// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// MemoryStore implements Store with process-local maps
type MemoryStore struct {
	mu      sync.Mutex
	items   map[string]memoryItem
	windows map[string][]time.Time
	closed  bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type memoryItem struct {
	value      []byte
	expiration time.Time
}

// NewMemoryStore creates a new in-memory cache instance
func NewMemoryStore() *MemoryStore {
	ctx, cancel := context.WithCancel(context.Background())

	store := &MemoryStore{
		items:   make(map[string]memoryItem),
		windows: make(map[string][]time.Time),
		cancel:  cancel,
	}

	store.wg.Add(1)
	go func() {
		defer store.wg.Done()
		store.cleanupLoop(ctx)
	}()

	return store
}

func (s *MemoryStore) Get(ctx context.Context, key string, value interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.lookupLocked(key)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, value)
}

func (s *MemoryStore) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if expiration <= 0 {
		expiration = DefaultTTL
	}

	data, err := json.Marshal(value)
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("Failed to marshal value for cache")
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	s.items[key] = memoryItem{value: data, expiration: time.Now().Add(expiration)}
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	delete(s.items, key)
	return nil
}

func (s *MemoryStore) Take(ctx context.Context, key string, value interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.lookupLocked(key)
	if err != nil {
		return err
	}
	delete(s.items, key)
	return json.Unmarshal(data, value)
}

func (s *MemoryStore) RecordHit(ctx context.Context, key string, at time.Time, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}

	hits := pruneHits(s.windows[key], at.Add(-window))
	hits = append(hits, at)
	s.windows[key] = hits

	return int64(len(hits)), nil
}

// Close stops the cleanup goroutine and drops all entries
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.closed = true
	s.items = make(map[string]memoryItem)
	s.windows = make(map[string][]time.Time)
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	return nil
}

func (s *MemoryStore) lookupLocked(key string) ([]byte, error) {
	if s.closed {
		return nil, ErrClosed
	}
	item, ok := s.items[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	if time.Now().After(item.expiration) {
		delete(s.items, key)
		return nil, ErrKeyNotFound
	}
	return item.value, nil
}

// pruneHits drops hits strictly older than windowStart. hits is sorted.
func pruneHits(hits []time.Time, windowStart time.Time) []time.Time {
	i := 0
	for i < len(hits) && hits[i].Before(windowStart) {
		i++
	}
	return append(hits[:0], hits[i:]...)
}

func (s *MemoryStore) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep(time.Now())
		case <-ctx.Done():
			return
		}
	}
}

func (s *MemoryStore) sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, item := range s.items {
		if now.After(item.expiration) {
			delete(s.items, key)
		}
	}

	// rate windows are never longer than a day
	dayAgo := now.Add(-24 * time.Hour)
	for key, hits := range s.windows {
		hits = pruneHits(hits, dayAgo)
		if len(hits) == 0 {
			delete(s.windows, key)
			continue
		}
		s.windows[key] = hits
	}
}
