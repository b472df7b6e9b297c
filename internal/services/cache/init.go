// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/quizzer/internal/config"
	"github.com/autobrr/quizzer/internal/services/resilience"
)

// CacheType represents the type of cache to use
type CacheType string

const (
	CacheTypeRedis  CacheType = "redis"
	CacheTypeMemory CacheType = "memory"
)

func cacheType(cfg config.CacheConfig) CacheType {
	switch strings.ToLower(cfg.Type) {
	case "redis":
		return CacheTypeRedis
	case "memory", "":
		return CacheTypeMemory
	default:
		log.Warn().Str("type", cfg.Type).Msg("Unknown cache type specified, defaulting to memory cache")
		return CacheTypeMemory
	}
}

func redisOptions(cfg config.RedisConfig) *redis.Options {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 6379
	}

	return &redis.Options{
		Addr:            fmt.Sprintf("%s:%d", host, port),
		PoolSize:        10,
		MinIdleConns:    2,
		MaxRetries:      RetryAttempts,
		MinRetryBackoff: RetryDelay,
		MaxRetryBackoff: time.Second,
		ReadTimeout:     DefaultTimeout,
		WriteTimeout:    DefaultTimeout,
		IdleTimeout:     time.Minute,
	}
}

// InitCache initializes a cache instance based on configuration. A Redis
// backend must answer a ping before it is used.
func InitCache(ctx context.Context, cfg config.CacheConfig) (Store, error) {
	switch cacheType(cfg) {
	case CacheTypeRedis:
		opts := redisOptions(cfg.Redis)
		client := redis.NewClient(opts)

		err := resilience.RetryWithBackoff(ctx, func(ctx context.Context) error {
			pingCtx, cancel := context.WithTimeout(ctx, DefaultTimeout)
			defer cancel()
			return client.Ping(pingCtx).Err()
		})
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("redis at %s unreachable: %w", opts.Addr, err)
		}

		log.Debug().Str("addr", opts.Addr).Msg("Initialized Redis cache")
		return NewRedisStore(client), nil

	default:
		log.Debug().Msg("Initialized memory cache")
		return NewMemoryStore(), nil
	}
}
