// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const (
	csrfTokenLength   = 32
	csrfTokenHeader   = "X-CSRF-Token"
	csrfTokenCookie   = "csrf_token"
	csrfTokenField    = "csrf_token"
	csrfContextKey    = "csrf_token"
	csrfTokenDuration = 24 * time.Hour

	csrfRejectMessage = "This form has expired, please submit it again."
)

var (
	ErrTokenMissing  = errors.New("CSRF token missing")
	ErrTokenMismatch = errors.New("CSRF token mismatch")
)

// CSRFConfig holds configuration for CSRF protection
type CSRFConfig struct {
	// Secure indicates if the cookie should be sent only over HTTPS
	Secure bool
	// Cookie path
	Path string
	// Cookie max age in seconds
	MaxAge int
	// Methods that don't require CSRF validation
	ExemptMethods []string
	// Paths that don't require CSRF validation
	ExemptPaths []string
	// Reject renders refused browser requests. Nil answers with JSON.
	Reject RejectFunc
}

// DefaultCSRFConfig returns the default CSRF configuration
func DefaultCSRFConfig() *CSRFConfig {
	return &CSRFConfig{
		Path:          "/",
		MaxAge:        int(csrfTokenDuration.Seconds()),
		ExemptMethods: []string{"GET", "HEAD", "OPTIONS"},
		ExemptPaths:   []string{"/health", "/static/"},
	}
}

// generateCSRFToken generates a random CSRF token
func generateCSRFToken() (string, error) {
	b := make([]byte, csrfTokenLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// CSRF returns a middleware that provides double-submit CSRF protection. The
// token lives in a cookie and every form post must echo it back in the
// csrf_token field or the X-CSRF-Token header.
func CSRF(config *CSRFConfig) gin.HandlerFunc {
	if config == nil {
		config = DefaultCSRFConfig()
	}

	return func(c *gin.Context) {
		for _, path := range config.ExemptPaths {
			if strings.HasPrefix(c.Request.URL.Path, path) {
				c.Next()
				return
			}
		}

		token, _ := c.Cookie(csrfTokenCookie)
		issue := func() bool {
			var err error
			token, err = generateCSRFToken()
			if err != nil {
				log.Error().Err(err).Msg("failed to generate csrf token")
				return false
			}
			c.SetSameSite(http.SameSiteStrictMode)
			c.SetCookie(csrfTokenCookie, token, config.MaxAge, config.Path, "", config.Secure, true)
			return true
		}
		fail := func(err error) {
			// the re-rendered page needs a token the next submit can use
			if config.Reject != nil && (token != "" || issue()) {
				c.Set(csrfContextKey, token)
			}
			reject(c, config.Reject, http.StatusForbidden, csrfRejectMessage, gin.H{"error": err.Error()})
		}

		method := strings.ToUpper(c.Request.Method)
		for _, m := range config.ExemptMethods {
			if method == m {
				if token == "" && !issue() {
					c.AbortWithStatus(http.StatusInternalServerError)
					return
				}
				c.Set(csrfContextKey, token)
				c.Next()
				return
			}
		}

		if token == "" {
			fail(ErrTokenMissing)
			return
		}

		submitted := c.GetHeader(csrfTokenHeader)
		if submitted == "" {
			submitted = c.PostForm(csrfTokenField)
		}
		if submitted == "" {
			fail(ErrTokenMissing)
			return
		}

		if subtle.ConstantTimeCompare([]byte(token), []byte(submitted)) != 1 {
			log.Warn().Str("ip", c.ClientIP()).Str("path", c.Request.URL.Path).Msg("csrf token mismatch")
			fail(ErrTokenMismatch)
			return
		}

		c.Set(csrfContextKey, token)
		c.Next()
	}
}

// CSRFToken returns the token forms rendered for this request must carry.
func CSRFToken(c *gin.Context) string {
	return c.GetString(csrfContextKey)
}
