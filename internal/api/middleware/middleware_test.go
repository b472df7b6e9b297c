// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/autobrr/quizzer/internal/auth"
	"github.com/autobrr/quizzer/internal/credentials"
	"github.com/autobrr/quizzer/internal/services/cache"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRedactQuery(t *testing.T) {
	got := redactQuery("code=abc&state=xyz&page=2&api_key=k")
	values, err := url.ParseQuery(got)
	require.NoError(t, err)

	assert.Equal(t, "[REDACTED]", values.Get("code"))
	assert.Equal(t, "[REDACTED]", values.Get("state"))
	assert.Equal(t, "[REDACTED]", values.Get("api_key"))
	assert.Equal(t, "2", values.Get("page"))
	assert.Empty(t, redactQuery(""))
}

func TestSecure(t *testing.T) {
	r := gin.New()
	r.Use(Secure(nil))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	csp := w.Header().Get("Content-Security-Policy")
	assert.Contains(t, csp, "default-src 'self';")
	assert.Contains(t, csp, "frame-ancestors 'none';")
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Empty(t, w.Header().Get("Strict-Transport-Security"))
}

func TestCacheControl(t *testing.T) {
	r := gin.New()
	r.Use(CacheControl())
	r.GET("/static/style.css", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/view/sign-in", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/static/style.css", nil))
	assert.Equal(t, StaticMaxAge, w.Header().Get("Cache-Control"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/view/sign-in", nil))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func csrfRouter() *gin.Engine {
	r := gin.New()
	r.Use(CSRF(nil))
	r.GET("/form", func(c *gin.Context) { c.String(http.StatusOK, CSRFToken(c)) })
	r.POST("/submit", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	return r
}

func TestCSRF(t *testing.T) {
	r := csrfRouter()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/form", nil))
	require.Equal(t, http.StatusOK, w.Code)

	token := w.Body.String()
	require.NotEmpty(t, token)

	var cookie *http.Cookie
	for _, ck := range w.Result().Cookies() {
		if ck.Name == csrfTokenCookie {
			cookie = ck
		}
	}
	require.NotNil(t, cookie)
	assert.Equal(t, token, cookie.Value)
	assert.True(t, cookie.HttpOnly)

	post := func(field string, withCookie bool) int {
		form := url.Values{}
		if field != "" {
			form.Set(csrfTokenField, field)
		}
		req := httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		if withCookie {
			req.AddCookie(&http.Cookie{Name: csrfTokenCookie, Value: token})
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, post(token, true))
	assert.Equal(t, http.StatusForbidden, post("", true))
	assert.Equal(t, http.StatusForbidden, post("forged", true))
	assert.Equal(t, http.StatusForbidden, post(token, false))
}

func TestCSRF_HeaderAndExistingCookie(t *testing.T) {
	r := csrfRouter()

	req := httptest.NewRequest(http.MethodGet, "/form", nil)
	req.AddCookie(&http.Cookie{Name: csrfTokenCookie, Value: "existing"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "existing", w.Body.String())
	assert.Empty(t, w.Result().Cookies(), "an existing token is reused")

	req = httptest.NewRequest(http.MethodPost, "/submit", nil)
	req.AddCookie(&http.Cookie{Name: csrfTokenCookie, Value: "existing"})
	req.Header.Set(csrfTokenHeader, "existing")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func pageReject(c *gin.Context, status int, message string) {
	c.String(status, "page: %s token=%s", message, CSRFToken(c))
}

func TestCSRF_RejectRendersForBrowsers(t *testing.T) {
	config := DefaultCSRFConfig()
	config.Reject = pageReject
	r := gin.New()
	r.Use(CSRF(config))
	r.POST("/submit", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	submit := func(accept string, cookie string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader("csrf_token=stale"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		if accept != "" {
			req.Header.Set("Accept", accept)
		}
		if cookie != "" {
			req.AddCookie(&http.Cookie{Name: csrfTokenCookie, Value: cookie})
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	// a stale form field is answered with a page carrying the cookie's token
	w := submit("text/html,application/xhtml+xml", "current")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "page: "+csrfRejectMessage+" token=current", w.Body.String())

	// an expired cookie gets a fresh one
	w = submit("", "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	var fresh *http.Cookie
	for _, ck := range w.Result().Cookies() {
		if ck.Name == csrfTokenCookie {
			fresh = ck
		}
	}
	require.NotNil(t, fresh)
	assert.Equal(t, "page: "+csrfRejectMessage+" token="+fresh.Value, w.Body.String())

	w = submit("application/json", "current")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.JSONEq(t, `{"error":"CSRF token mismatch"}`, w.Body.String())
}

func TestRateLimit(t *testing.T) {
	store := cache.NewMemoryStore()
	defer store.Close()

	limiter := NewRateLimiter(store, 0, 2, "test:")
	r := gin.New()
	r.Use(limiter.RateLimit())
	r.POST("/signin/login", func(c *gin.Context) { c.Status(http.StatusOK) })

	hit := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/signin/login", nil)
		req.RemoteAddr = ip + ":1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, hit("10.0.0.1").Code)
	w := hit("10.0.0.1")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	w = hit("10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))

	// other clients have their own window
	assert.Equal(t, http.StatusOK, hit("10.0.0.2").Code)
}

func TestRateLimit_RejectRendersForBrowsers(t *testing.T) {
	store := cache.NewMemoryStore()
	defer store.Close()

	r := gin.New()
	r.Use(NewRateLimiter(store, 0, 1, "test:").WithReject(pageReject).RateLimit())
	r.POST("/signin/login", func(c *gin.Context) { c.Status(http.StatusOK) })

	hit := func(accept string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/signin/login", nil)
		req.Header.Set("Accept", accept)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	require.Equal(t, http.StatusOK, hit("text/html").Code)

	w := hit("text/html")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "page: Too many attempts, please try again in 60 seconds. token=", w.Body.String())
	assert.Equal(t, "60", w.Header().Get("Retry-After"))

	w = hit("application/json")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
	assert.Contains(t, w.Body.String(), "Rate limit exceeded")
}

func writeCredentials(t *testing.T) *credentials.Store {
	t.Helper()

	h, err := bcrypt.GenerateFromPassword([]byte("Secret#123"), bcrypt.MinCost)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf(`credentials:
  usernames:
    jsmith:
      name: John Smith
      email: jsmith@example.com
      password_hash: %q
cookie:
  name: quizzer_auth
  key: some_signature_key
  expiry_days: 30
`, string(h))), 0o600))
	return credentials.NewStore(path)
}

func sessionRouter(store *credentials.Store, mem cache.Store) *gin.Engine {
	r := gin.New()
	r.Use(NewSessionLoader(store, auth.Deps{Cache: mem}).LoadSession())
	r.GET("/", func(c *gin.Context) {
		_, err := GetAuthenticator(c)
		s := GetSession(c)
		c.JSON(http.StatusOK, gin.H{
			"status":    s.Status.String(),
			"username":  s.Username,
			"ready":     err == nil,
			"inContext": auth.FromContext(c.Request.Context()) == s,
		})
	})
	return r
}

func TestSessionLoader(t *testing.T) {
	store := writeCredentials(t)
	mem := cache.NewMemoryStore()
	defer mem.Close()

	cfg, err := store.Load()
	require.NoError(t, err)
	a := auth.New(cfg, auth.Deps{Store: store, Cache: mem})
	s, err := a.Login(context.Background(), "jsmith", "Secret#123")
	require.NoError(t, err)
	cookie, err := a.IssueCookie(s)
	require.NoError(t, err)

	r := sessionRouter(store, mem)

	t.Run("no cookie", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.JSONEq(t, `{"status":"unset","username":"","ready":true,"inContext":true}`, w.Body.String())
	})

	t.Run("valid cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(cookie)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.JSONEq(t, `{"status":"authenticated","username":"jsmith","ready":true,"inContext":true}`, w.Body.String())
	})

	t.Run("invalid cookie is cleared", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: "quizzer_auth", Value: "tampered"})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Contains(t, w.Body.String(), `"status":"unset"`)

		cookies := w.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, "quizzer_auth", cookies[0].Name)
		assert.Negative(t, cookies[0].MaxAge)
	})
}

func TestSessionLoader_MissingCredentials(t *testing.T) {
	store := credentials.NewStore(filepath.Join(t.TempDir(), "missing.yaml"))
	mem := cache.NewMemoryStore()
	defer mem.Close()

	var gotErr error
	r := gin.New()
	r.Use(NewSessionLoader(store, auth.Deps{Cache: mem}).LoadSession())
	r.GET("/", func(c *gin.Context) {
		a, err := GetAuthenticator(c)
		assert.Nil(t, a)
		gotErr = err
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.ErrorIs(t, gotErr, credentials.ErrNotFound)
}
