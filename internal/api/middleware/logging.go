// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package middleware

import (
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// List of parameter names to redact
var sensitiveParams = []string{
	"apiKey",
	"api_key",
	"key",
	"token",
	"password",
	"secret",
	"code",
	"state",
}

// Logger returns a gin middleware for logging HTTP requests with zerolog
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		// Process request
		c.Next()

		path := c.Request.URL.Path
		if query := redactQuery(c.Request.URL.RawQuery); query != "" {
			path = path + "?" + query
		}

		status := c.Writer.Status()

		var event *zerolog.Event
		switch {
		case len(c.Errors) > 0:
			event = log.Error().Err(c.Errors.Last())
		case status >= 500:
			event = log.Error()
		case status >= 400:
			event = log.Warn()
		case strings.HasPrefix(path, "/static/") || path == "/health":
			event = log.Debug()
		default:
			event = log.Info()
		}

		event.
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("ip", c.ClientIP()).
			Int("bytes", c.Writer.Size()).
			Msg("HTTP Request")
	}
}

// redactQuery replaces the values of sensitive query parameters
func redactQuery(query string) string {
	if query == "" {
		return ""
	}

	parsed, err := url.ParseQuery(query)
	if err != nil {
		return "[UNPARSEABLE]"
	}

	for param := range parsed {
		for _, sensitive := range sensitiveParams {
			if strings.Contains(strings.ToLower(param), strings.ToLower(sensitive)) {
				parsed.Set(param, "[REDACTED]")
			}
		}
	}
	return parsed.Encode()
}
