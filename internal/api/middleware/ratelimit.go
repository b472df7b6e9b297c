// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/quizzer/internal/services/cache"
)

type RateLimiter struct {
	cache     cache.Store
	window    time.Duration
	limit     int
	keyPrefix string
	reject    RejectFunc
}

// NewRateLimiter creates a new rate limiter with the specified configuration
func NewRateLimiter(store cache.Store, window time.Duration, limit int, keyPrefix string) *RateLimiter {
	if window == 0 {
		window = time.Minute
	}
	if limit == 0 {
		limit = 60
	}
	return &RateLimiter{
		cache:     store,
		window:    window,
		limit:     limit,
		keyPrefix: keyPrefix,
	}
}

// WithReject makes browser requests over the limit render through fn
// instead of receiving JSON.
func (rl *RateLimiter) WithReject(fn RejectFunc) *RateLimiter {
	rl.reject = fn
	return rl
}

// RateLimit returns a Gin middleware function that implements a sliding
// window rate limit per client IP. Cache failures let the request through.
func (rl *RateLimiter) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		if clientIP == "" {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Could not determine client IP"})
			return
		}

		key := cache.PrefixRate + rl.keyPrefix + clientIP
		now := time.Now()

		ctx, cancel := context.WithTimeout(c.Request.Context(), cache.DefaultTimeout)
		count, err := rl.cache.RecordHit(ctx, key, now, rl.window)
		cancel()
		if err != nil {
			log.Error().Err(err).Str("key", key).Msg("Failed to record rate limit hit")
			c.Next()
			return
		}

		reset := now.Add(rl.window).Unix()
		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", rl.limit))
		c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", reset))

		if count > int64(rl.limit) {
			retryAfter := int64(rl.window.Seconds())
			c.Header("Retry-After", fmt.Sprintf("%d", retryAfter))
			c.Header("X-RateLimit-Remaining", "0")

			log.Warn().Str("ip", clientIP).Str("path", c.Request.URL.Path).Int64("count", count).Msg("rate limit exceeded")
			reject(c, rl.reject, http.StatusTooManyRequests,
				fmt.Sprintf("Too many attempts, please try again in %d seconds.", retryAfter),
				gin.H{
					"error":       "Rate limit exceeded",
					"limit":       rl.limit,
					"window":      rl.window.String(),
					"retry_after": retryAfter,
				})
			return
		}

		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", int64(rl.limit)-count))
		c.Next()
	}
}
