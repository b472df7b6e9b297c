// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package auth

import (
	"context"
	"time"
)

// Status is the authentication tri-state of a browser session.
type Status int

const (
	StatusUnset Status = iota
	StatusAuthenticated
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusAuthenticated:
		return "authenticated"
	case StatusFailed:
		return "failed"
	default:
		return "unset"
	}
}

const ProviderLocal = "local"

// Session is the per-request view of who is signed in. It is rebuilt from
// the session cookie on every request and never shared between requests.
type Session struct {
	Status    Status
	Username  string
	Name      string
	Email     string
	Provider  string
	TokenID   string
	ExpiresAt time.Time
}

func (s *Session) Authenticated() bool {
	return s != nil && s.Status == StatusAuthenticated
}

// Local reports whether the session belongs to an account in the credential file.
func (s *Session) Local() bool {
	return s.Authenticated() && s.Provider == ProviderLocal
}

// Unset returns a fresh unauthenticated session.
func Unset() *Session {
	return &Session{Status: StatusUnset}
}

func failed() *Session {
	return &Session{Status: StatusFailed}
}

type sessionKey struct{}

// WithSession returns a copy of ctx carrying s.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// FromContext returns the session carried by ctx, or an unset session.
func FromContext(ctx context.Context) *Session {
	if s, ok := ctx.Value(sessionKey{}).(*Session); ok && s != nil {
		return s
	}
	return Unset()
}
