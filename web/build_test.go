// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package web

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadTemplates(t *testing.T) {
	tmpl, err := LoadTemplates()
	require.NoError(t, err)

	for _, name := range []string{"page.html", "create-account", "sign-in"} {
		assert.NotNil(t, tmpl.Lookup(name), name)
	}
}

func TestParagraphs(t *testing.T) {
	assert.Equal(t, []string{"1. one\na) x", "2. two"}, paragraphs("1. one\r\na) x\r\n\r\n\n2. two\n\n"))
	assert.Empty(t, paragraphs("  \n\n "))
}

func TestServeStatic(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	ServeStatic(r)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/static/style.css", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/css; charset=utf-8", w.Header().Get("Content-Type"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/static/missing.css", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/static/../build.go", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
