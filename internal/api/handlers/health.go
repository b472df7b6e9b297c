// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Health reports that the process is serving requests and whether quiz
// generation is currently paused.
func (h *Handler) Health(c *gin.Context) {
	generator := "available"
	if !h.generator.Available() {
		generator = "paused"
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "generator": generator})
}
