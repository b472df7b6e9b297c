// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package cache

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	RetryAttempts = 2
	RetryDelay    = 50 * time.Millisecond
)

// RedisStore implements Store on top of a Redis server
type RedisStore struct {
	client *redis.Client
	closed bool
	mu     sync.RWMutex
}

// NewRedisStore wraps an existing client
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// withRetry runs op up to RetryAttempts times, each under DefaultTimeout.
// redis.Nil is returned immediately since retrying a miss is pointless.
func (s *RedisStore) withRetry(ctx context.Context, op func(ctx context.Context) error) error {
	if s.isClosed() {
		return ErrClosed
	}

	var lastErr error
	for i := 0; i < RetryAttempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		timeoutCtx, cancel := context.WithTimeout(ctx, DefaultTimeout)
		err := op(timeoutCtx)
		cancel()

		if err == nil || err == redis.Nil {
			return err
		}
		lastErr = err

		if i < RetryAttempts-1 {
			time.Sleep(RetryDelay)
		}
	}
	return lastErr
}

func (s *RedisStore) Get(ctx context.Context, key string, value interface{}) error {
	var data []byte
	err := s.withRetry(ctx, func(ctx context.Context) error {
		var err error
		data, err = s.client.Get(ctx, key).Bytes()
		return err
	})
	if err == redis.Nil {
		return ErrKeyNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, value)
}

func (s *RedisStore) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if expiration <= 0 {
		expiration = DefaultTTL
	}

	data, err := json.Marshal(value)
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("Failed to marshal value for cache")
		return err
	}

	return s.withRetry(ctx, func(ctx context.Context) error {
		return s.client.Set(ctx, key, data, expiration).Err()
	})
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.withRetry(ctx, func(ctx context.Context) error {
		return s.client.Del(ctx, key).Err()
	})
}

func (s *RedisStore) Take(ctx context.Context, key string, value interface{}) error {
	var data []byte
	err := s.withRetry(ctx, func(ctx context.Context) error {
		var err error
		data, err = s.client.GetDel(ctx, key).Bytes()
		return err
	})
	if err == redis.Nil {
		return ErrKeyNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, value)
}

// RecordHit keeps the window as a sorted set scored by unix nanoseconds.
func (s *RedisStore) RecordHit(ctx context.Context, key string, at time.Time, window time.Duration) (int64, error) {
	windowStart := at.Add(-window).UnixNano()

	var count int64
	err := s.withRetry(ctx, func(ctx context.Context) error {
		var card *redis.IntCmd
		_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.ZRemRangeByScore(ctx, key, "-inf", "("+strconv.FormatInt(windowStart, 10))
			pipe.ZAdd(ctx, key, &redis.Z{
				Score:  float64(at.UnixNano()),
				Member: uuid.NewString(),
			})
			card = pipe.ZCard(ctx, key)
			pipe.Expire(ctx, key, window)
			return nil
		})
		if err != nil {
			return err
		}
		count = card.Val()
		return nil
	})
	return count, err
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.closed = true
	s.mu.Unlock()

	return s.client.Close()
}
