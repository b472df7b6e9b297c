// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/quizzer/internal/api/middleware"
	"github.com/autobrr/quizzer/internal/auth"
)

// GuestLogin redirects to the provider's login page.
func (h *Handler) GuestLogin(c *gin.Context) {
	data := &PageData{}

	a, err := middleware.GetAuthenticator(c)
	if err != nil {
		h.render(c, http.StatusInternalServerError, PageSignIn, data)
		return
	}

	provider := c.Param("provider")
	url, stateCookie, err := a.BeginGuestLogin(c.Request.Context(), provider)
	if err != nil {
		banner, status := errorBanner(err)
		data.Banners = append(data.Banners, banner)
		h.render(c, status, PageSignIn, data)
		return
	}
	http.SetCookie(c.Writer, stateCookie)

	log.Debug().Str("provider", provider).Msg("redirecting to guest login provider")
	c.Redirect(http.StatusFound, url)
}

// GuestCallback handles the redirect back from the provider.
func (h *Handler) GuestCallback(c *gin.Context) {
	data := &PageData{}

	a, err := middleware.GetAuthenticator(c)
	if err != nil {
		h.render(c, http.StatusInternalServerError, PageSignIn, data)
		return
	}

	providerErr := c.Query("error_description")
	if providerErr == "" {
		providerErr = c.Query("error")
	}

	browserState, _ := c.Cookie(auth.GuestStateCookie)
	http.SetCookie(c.Writer, a.ClearGuestStateCookie())

	session, err := a.CompleteGuestLogin(c.Request.Context(), auth.GuestCallback{
		Provider:     c.Param("provider"),
		State:        c.Query("state"),
		BrowserState: browserState,
		Code:         c.Query("code"),
		Error:        providerErr,
	})
	middleware.SetSession(c, session)
	if err != nil {
		banner, _ := errorBanner(err)
		data.Banners = append(data.Banners, banner)
		h.render(c, http.StatusUnauthorized, PageSignIn, data)
		return
	}

	if !h.setSessionCookie(c, a, data) {
		h.render(c, http.StatusInternalServerError, PageSignIn, data)
		return
	}
	c.Redirect(http.StatusSeeOther, "/view/"+PageSignIn)
}
