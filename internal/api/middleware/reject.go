// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package middleware

import "github.com/gin-gonic/gin"

// RejectFunc writes the page for a request a middleware refused.
type RejectFunc func(c *gin.Context, status int, message string)

// reject aborts the request. Clients that accept HTML get fn's page, the
// rest get body as JSON.
func reject(c *gin.Context, fn RejectFunc, status int, message string, body gin.H) {
	if fn != nil && c.NegotiateFormat(gin.MIMEHTML, gin.MIMEJSON) == gin.MIMEHTML {
		fn(c, status, message)
		c.Abort()
		return
	}
	c.AbortWithStatusJSON(status, body)
}
