// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package web

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
)

var (
	//go:embed templates/*.html
	Templates embed.FS

	//go:embed all:static
	Static embed.FS

	StaticDirFS = MustSubFS(Static, "static")
)

// MustSubFS creates sub FS from current filesystem or panic on failure.
func MustSubFS(currentFs fs.FS, fsRoot string) fs.FS {
	subFs, err := fs.Sub(currentFs, fsRoot)
	if err != nil {
		panic(fmt.Errorf("can not create sub FS, invalid root given, err: %w", err))
	}
	return subFs
}

var funcs = template.FuncMap{
	"paragraphs": paragraphs,
	"title":      title,
}

func title(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// paragraphs splits model output on blank lines so it renders as separate
// blocks while staying escaped.
func paragraphs(text string) []string {
	var out []string
	for _, p := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// LoadTemplates parses the embedded page templates.
func LoadTemplates() (*template.Template, error) {
	tmpl, err := template.New("").Funcs(funcs).ParseFS(Templates, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return tmpl, nil
}

// ServeStatic registers the embedded static assets under /static.
func ServeStatic(r *gin.Engine) {
	r.GET("/static/*filepath", func(c *gin.Context) {
		name := strings.TrimPrefix(path.Clean(c.Param("filepath")), "/")
		if name == "" || name == "." {
			c.Status(http.StatusNotFound)
			return
		}

		data, err := fs.ReadFile(StaticDirFS, name)
		if err != nil {
			c.Status(http.StatusNotFound)
			return
		}

		var contentType string
		switch strings.ToLower(path.Ext(name)) {
		case ".css":
			contentType = "text/css; charset=utf-8"
		case ".svg":
			contentType = "image/svg+xml"
		case ".png":
			contentType = "image/png"
		case ".ico":
			contentType = "image/x-icon"
		default:
			contentType = "application/octet-stream"
		}

		c.Header("X-Content-Type-Options", "nosniff")
		c.Data(http.StatusOK, contentType, data)
	})

	r.GET("/favicon.ico", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/static/favicon.svg")
	})
}
