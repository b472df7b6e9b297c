// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

const StaticMaxAge = "public, max-age=86400"

// CacheControl marks rendered pages as uncacheable, since they carry
// per-user content and CSRF tokens, and lets browsers cache static assets.
func CacheControl() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/static/") {
			c.Header("Cache-Control", StaticMaxAge)
		} else {
			c.Header("Cache-Control", "no-store")
			c.Header("Pragma", "no-cache")
		}
		c.Next()
	}
}
