// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/quizzer/internal/credentials"
	"github.com/autobrr/quizzer/internal/services/cache"
)

// Deps are the long-lived collaborators shared by every Authenticator.
type Deps struct {
	Store *credentials.Store
	Cache cache.Store

	// BaseURL is used to derive OAuth redirect URIs that are not configured.
	BaseURL string
	// SecureCookies marks issued cookies Secure.
	SecureCookies bool
	// BcryptCost defaults to DefaultBcryptCost.
	BcryptCost int
	// HTTPClient is used for OAuth token exchange and userinfo requests.
	HTTPClient *http.Client
	// Endpoints overrides the built-in provider endpoints, keyed by provider.
	Endpoints map[string]ProviderEndpoint
	// Now defaults to time.Now.
	Now func() time.Time
}

// Authenticator validates logins against one loaded credential config and
// manages the session cookie. Build one per request from a fresh Load.
type Authenticator struct {
	cfg  *credentials.Config
	deps Deps
}

func New(cfg *credentials.Config, deps Deps) *Authenticator {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.HTTPClient == nil {
		deps.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Authenticator{cfg: cfg, deps: deps}
}

// Config returns the credential config the authenticator currently works on.
func (a *Authenticator) Config() *credentials.Config {
	return a.cfg
}

func normalizeUsername(username string) string {
	return credentials.FoldUsername(username)
}

// Login checks username and password. A wrong username or password yields a
// failed session and no error; malformed input yields a failed session and a
// LoginError.
func (a *Authenticator) Login(ctx context.Context, username, password string) (*Session, error) {
	username = normalizeUsername(username)
	if username == "" || password == "" {
		return failed(), &LoginError{Message: "Username and password must not be empty"}
	}

	user, ok := a.cfg.User(username)
	if !ok || !CheckPassword(password, user.PasswordHash) {
		log.Warn().Str("username", username).Msg("login failed")
		return failed(), nil
	}

	log.Info().Str("username", username).Msg("login succeeded")
	return a.newSession(username, user.Name, user.Email, ProviderLocal), nil
}

func (a *Authenticator) newSession(username, name, email, provider string) *Session {
	return &Session{
		Status:    StatusAuthenticated,
		Username:  username,
		Name:      name,
		Email:     email,
		Provider:  provider,
		TokenID:   uuid.NewString(),
		ExpiresAt: a.deps.Now().Add(a.cookieLifetime()),
	}
}

func (a *Authenticator) cookieLifetime() time.Duration {
	return time.Duration(a.cfg.Cookie.ExpiryDays) * 24 * time.Hour
}

type sessionClaims struct {
	jwt.RegisteredClaims
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	Provider string `json:"provider"`
}

// IssueCookie signs s with the cookie key and wraps it in the session cookie.
func (a *Authenticator) IssueCookie(s *Session) (*http.Cookie, error) {
	if !s.Authenticated() {
		return nil, errors.New("cannot issue a cookie for an unauthenticated session")
	}

	now := a.deps.Now()
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.Username,
			ID:        s.TokenID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(s.ExpiresAt),
		},
		Name:     s.Name,
		Email:    s.Email,
		Provider: s.Provider,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(a.cfg.Cookie.Key))
	if err != nil {
		return nil, err
	}

	return &http.Cookie{
		Name:     a.cfg.Cookie.Name,
		Value:    token,
		Path:     "/",
		Expires:  s.ExpiresAt,
		MaxAge:   int(s.ExpiresAt.Sub(now).Seconds()),
		HttpOnly: true,
		Secure:   a.deps.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}, nil
}

// CookieName is the name of the session cookie.
func (a *Authenticator) CookieName() string {
	return a.cfg.Cookie.Name
}

// SessionFromCookie re-validates a session cookie value. Anything invalid,
// expired, revoked or pointing at a removed account yields an unset session.
func (a *Authenticator) SessionFromCookie(ctx context.Context, value string) *Session {
	if value == "" {
		return Unset()
	}

	claims := &sessionClaims{}
	_, err := jwt.ParseWithClaims(value, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(a.cfg.Cookie.Key), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.deps.Now), jwt.WithExpirationRequired())
	if err != nil {
		log.Debug().Err(err).Msg("rejected session cookie")
		return Unset()
	}

	if a.revoked(ctx, claims.ID) {
		log.Debug().Str("username", claims.Subject).Msg("session cookie was logged out")
		return Unset()
	}

	s := &Session{
		Status:    StatusAuthenticated,
		Username:  claims.Subject,
		Name:      claims.Name,
		Email:     claims.Email,
		Provider:  claims.Provider,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}

	if s.Provider == ProviderLocal {
		user, ok := a.cfg.User(s.Username)
		if !ok {
			log.Debug().Str("username", s.Username).Msg("session cookie for removed user")
			return Unset()
		}
		s.Name = user.Name
		s.Email = user.Email
	}

	return s
}

func (a *Authenticator) revoked(ctx context.Context, tokenID string) bool {
	if tokenID == "" || a.deps.Cache == nil {
		return false
	}

	var revoked bool
	err := a.deps.Cache.Get(ctx, cache.PrefixRevoked+tokenID, &revoked)
	if err == nil {
		return revoked
	}
	if !errors.Is(err, cache.ErrKeyNotFound) {
		log.Warn().Err(err).Msg("failed to check session revocation")
	}
	return false
}

// Logout revokes s until its natural expiry and returns the unset session
// together with a cookie that clears the browser's session cookie.
func (a *Authenticator) Logout(ctx context.Context, s *Session) (*Session, *http.Cookie) {
	if s.Authenticated() && s.TokenID != "" && a.deps.Cache != nil {
		if ttl := s.ExpiresAt.Sub(a.deps.Now()); ttl > 0 {
			if err := a.deps.Cache.Set(ctx, cache.PrefixRevoked+s.TokenID, true, ttl); err != nil {
				log.Error().Err(err).Str("username", s.Username).Msg("failed to revoke session")
			}
		}
		log.Info().Str("username", s.Username).Msg("logged out")
	}

	return Unset(), a.ClearCookie()
}

// ClearCookie returns a cookie that deletes the session cookie.
func (a *Authenticator) ClearCookie() *http.Cookie {
	return &http.Cookie{
		Name:     a.cfg.Cookie.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   a.deps.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
}
