// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/quizzer/internal/auth"
	"github.com/autobrr/quizzer/internal/credentials"
	"github.com/autobrr/quizzer/internal/services/cache"
)

const (
	authenticatorKey    = "authenticator"
	sessionKey          = "session"
	credentialsErrorKey = "credentials_error"
)

var errNoAuthenticator = errors.New("no authenticator for this request")

// SessionLoader loads the credential file at the start of every request,
// builds that request's authenticator and restores its session from the
// session cookie.
type SessionLoader struct {
	store *credentials.Store
	deps  auth.Deps
}

func NewSessionLoader(store *credentials.Store, deps auth.Deps) *SessionLoader {
	deps.Store = store
	return &SessionLoader{
		store: store,
		deps:  deps,
	}
}

func (m *SessionLoader) LoadSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		cfg, err := m.store.Load()
		if err != nil {
			log.Error().Err(err).Str("file", m.store.Path()).Msg("failed to load credentials")
			c.Set(credentialsErrorKey, err)
			SetSession(c, auth.Unset())
			c.Next()
			return
		}

		a := auth.New(cfg, m.deps)
		c.Set(authenticatorKey, a)

		session := auth.Unset()
		if value, err := c.Cookie(a.CookieName()); err == nil && value != "" {
			ctx, cancel := context.WithTimeout(c.Request.Context(), cache.DefaultTimeout)
			session = a.SessionFromCookie(ctx, value)
			cancel()

			if !session.Authenticated() {
				http.SetCookie(c.Writer, a.ClearCookie())
			}
		}

		SetSession(c, session)
		c.Next()
	}
}

// GetAuthenticator returns the authenticator of this request, or the
// credential error that prevented building one.
func GetAuthenticator(c *gin.Context) (*auth.Authenticator, error) {
	if v, ok := c.Get(credentialsErrorKey); ok {
		if err, ok := v.(error); ok {
			return nil, err
		}
	}
	if v, ok := c.Get(authenticatorKey); ok {
		if a, ok := v.(*auth.Authenticator); ok {
			return a, nil
		}
	}
	return nil, errNoAuthenticator
}

// GetSession returns the session of this request, never nil.
func GetSession(c *gin.Context) *auth.Session {
	if v, ok := c.Get(sessionKey); ok {
		if s, ok := v.(*auth.Session); ok && s != nil {
			return s
		}
	}
	return auth.FromContext(c.Request.Context())
}

// SetSession replaces the session of this request in both the gin and the
// request context.
func SetSession(c *gin.Context, s *auth.Session) {
	c.Set(sessionKey, s)
	c.Request = c.Request.WithContext(auth.WithSession(c.Request.Context(), s))
}
