// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package auth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/microsoft"

	"github.com/autobrr/quizzer/internal/services/cache"
)

const (
	ProviderGoogle    = "google"
	ProviderMicrosoft = "microsoft"

	// GuestStateCookie ties a guest login to the browser that started it.
	GuestStateCookie = "quizzer_oauth_state"

	guestStatePath   = "/auth/callback"
	oauthStateTTL    = 5 * time.Minute
	guestCallTimeout = 10 * time.Second
)

// GuestCallback is what a provider redirects back with, plus the state
// cookie the browser presented.
type GuestCallback struct {
	Provider     string
	State        string
	BrowserState string
	Code         string
	Error        string
}

// ProviderEndpoint describes where a guest-login provider lives.
type ProviderEndpoint struct {
	Endpoint    oauth2.Endpoint
	UserInfoURL string
	Scopes      []string
}

func defaultEndpoint(provider, tenant string) (ProviderEndpoint, bool) {
	switch provider {
	case ProviderGoogle:
		return ProviderEndpoint{
			Endpoint:    google.Endpoint,
			UserInfoURL: "https://openidconnect.googleapis.com/v1/userinfo",
			Scopes:      []string{"openid", "email", "profile"},
		}, true
	case ProviderMicrosoft:
		if tenant == "" {
			tenant = "common"
		}
		return ProviderEndpoint{
			Endpoint:    microsoft.AzureADEndpoint(tenant),
			UserInfoURL: "https://graph.microsoft.com/oidc/userinfo",
			Scopes:      []string{"openid", "email", "profile"},
		}, true
	}
	return ProviderEndpoint{}, false
}

type oauthState struct {
	Provider string    `json:"provider"`
	Created  time.Time `json:"created"`
}

type userInfo struct {
	Email             string `json:"email"`
	Name              string `json:"name"`
	PreferredUsername string `json:"preferred_username"`
}

// GuestProviders lists the configured guest-login providers in a stable order.
func (a *Authenticator) GuestProviders() []string {
	var out []string
	for name := range a.cfg.OAuth2 {
		if _, ok := a.endpoint(name); ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func (a *Authenticator) endpoint(provider string) (ProviderEndpoint, bool) {
	if ep, ok := a.deps.Endpoints[provider]; ok {
		return ep, true
	}
	p := a.cfg.OAuth2[provider]
	if p == nil {
		return ProviderEndpoint{}, false
	}
	return defaultEndpoint(provider, p.Tenant)
}

func (a *Authenticator) oauthConfig(provider string) (*oauth2.Config, ProviderEndpoint, error) {
	p := a.cfg.OAuth2[provider]
	ep, ok := a.endpoint(provider)
	if p == nil || !ok {
		return nil, ProviderEndpoint{}, &LoginError{Message: fmt.Sprintf("Guest login with %q is not configured", provider)}
	}

	redirect := p.RedirectURI
	if redirect == "" {
		redirect = a.deps.BaseURL + "/auth/callback/" + provider
	}

	return &oauth2.Config{
		ClientID:     p.ClientID,
		ClientSecret: p.ClientSecret,
		RedirectURL:  redirect,
		Scopes:       ep.Scopes,
		Endpoint:     ep.Endpoint,
	}, ep, nil
}

// BeginGuestLogin stores a single-use state and returns the provider's
// authorization URL together with the cookie that must accompany the
// callback.
func (a *Authenticator) BeginGuestLogin(ctx context.Context, provider string) (string, *http.Cookie, error) {
	conf, _, err := a.oauthConfig(provider)
	if err != nil {
		return "", nil, err
	}
	if a.deps.Cache == nil {
		return "", nil, &LoginError{Message: "Guest login is unavailable"}
	}

	state := uuid.NewString()
	if err := a.deps.Cache.Set(ctx, cache.PrefixOAuthState+state, oauthState{
		Provider: provider,
		Created:  a.deps.Now(),
	}, oauthStateTTL); err != nil {
		return "", nil, &LoginError{Message: "Guest login is unavailable", Err: err}
	}

	return conf.AuthCodeURL(state), a.guestStateCookie(state, int(oauthStateTTL.Seconds())), nil
}

// ClearGuestStateCookie expires the cookie set by BeginGuestLogin.
func (a *Authenticator) ClearGuestStateCookie() *http.Cookie {
	return a.guestStateCookie("", -1)
}

func (a *Authenticator) guestStateCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     GuestStateCookie,
		Value:    value,
		Path:     guestStatePath,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   a.deps.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
}

// CompleteGuestLogin finishes the provider callback.
func (a *Authenticator) CompleteGuestLogin(ctx context.Context, cb GuestCallback) (*Session, error) {
	provider, state, code, providerErr := cb.Provider, cb.State, cb.Code, cb.Error

	conf, ep, err := a.oauthConfig(provider)
	if err != nil {
		return failed(), err
	}
	if a.deps.Cache == nil {
		return failed(), &LoginError{Message: "Guest login is unavailable"}
	}

	var stored oauthState
	if state == "" {
		return failed(), &LoginError{Message: "Invalid guest login state"}
	}
	if subtle.ConstantTimeCompare([]byte(state), []byte(cb.BrowserState)) != 1 {
		// a state seen outside its own browser is spent
		if err := a.deps.Cache.Delete(ctx, cache.PrefixOAuthState+state); err != nil {
			log.Error().Err(err).Msg("failed to discard oauth state")
		}
		log.Warn().Str("provider", provider).Msg("guest login state does not match the browser")
		return failed(), &LoginError{Message: "Invalid guest login state"}
	}
	if err := a.deps.Cache.Take(ctx, cache.PrefixOAuthState+state, &stored); err != nil {
		if !errors.Is(err, cache.ErrKeyNotFound) {
			log.Error().Err(err).Msg("failed to read oauth state")
		}
		return failed(), &LoginError{Message: "Invalid guest login state", Err: err}
	}
	if stored.Provider != provider {
		return failed(), &LoginError{Message: "Invalid guest login state"}
	}

	if providerErr != "" {
		log.Warn().Str("provider", provider).Str("error", providerErr).Msg("guest login rejected by provider")
		return failed(), &LoginError{Message: fmt.Sprintf("Guest login failed: %s", providerErr)}
	}
	if code == "" {
		return failed(), &LoginError{Message: "Guest login failed: missing authorization code"}
	}

	ctx, cancel := context.WithTimeout(ctx, guestCallTimeout)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.deps.HTTPClient)

	token, err := conf.Exchange(ctx, code)
	if err != nil {
		log.Error().Err(err).Str("provider", provider).Msg("failed to exchange oauth code")
		return failed(), &LoginError{Message: "Guest login failed: could not exchange token", Err: err}
	}

	info, err := fetchUserInfo(ctx, conf.Client(ctx, token), ep.UserInfoURL)
	if err != nil {
		log.Error().Err(err).Str("provider", provider).Msg("failed to fetch guest user info")
		return failed(), &LoginError{Message: "Guest login failed: could not read user profile", Err: err}
	}

	email := strings.TrimSpace(info.Email)
	if email == "" {
		email = strings.TrimSpace(info.PreferredUsername)
	}
	if email == "" {
		return failed(), &LoginError{Message: "Guest login failed: provider returned no email"}
	}
	name := strings.TrimSpace(info.Name)
	if name == "" {
		name = email
	}

	log.Info().Str("provider", provider).Str("email", email).Msg("guest login succeeded")
	return a.newSession(strings.ToLower(email), name, email, provider), nil
}

func fetchUserInfo(ctx context.Context, client *http.Client, url string) (*userInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("userinfo returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var info userInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode userinfo: %w", err)
	}
	return &info, nil
}
