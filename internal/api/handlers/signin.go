// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/quizzer/internal/api/middleware"
	"github.com/autobrr/quizzer/internal/auth"
	"github.com/autobrr/quizzer/internal/quiz"
)

// Login handles the username/password form.
func (h *Handler) Login(c *gin.Context) {
	data := &PageData{}

	a, err := middleware.GetAuthenticator(c)
	if err != nil {
		h.render(c, http.StatusInternalServerError, PageSignIn, data)
		return
	}

	session, err := a.Login(c.Request.Context(), c.PostForm("username"), c.PostForm("password"))
	middleware.SetSession(c, session)
	if err != nil {
		banner, status := errorBanner(err)
		data.Banners = append(data.Banners, banner)
		h.render(c, status, PageSignIn, data)
		return
	}
	if !session.Authenticated() {
		h.render(c, http.StatusUnauthorized, PageSignIn, data)
		return
	}

	if !h.setSessionCookie(c, a, data) {
		h.render(c, http.StatusInternalServerError, PageSignIn, data)
		return
	}
	h.render(c, http.StatusOK, PageSignIn, data)
}

func (h *Handler) setSessionCookie(c *gin.Context, a *auth.Authenticator, data *PageData) bool {
	session := middleware.GetSession(c)

	cookie, err := a.IssueCookie(session)
	if err != nil {
		log.Error().Err(err).Str("username", session.Username).Msg("failed to issue session cookie")
		middleware.SetSession(c, auth.Unset())
		data.add(BannerError, "Login Error: could not create a session, please try again.")
		return false
	}
	http.SetCookie(c.Writer, cookie)
	return true
}

// Logout clears the session, whatever state it was in.
func (h *Handler) Logout(c *gin.Context) {
	data := &PageData{}

	a, err := middleware.GetAuthenticator(c)
	if err != nil {
		middleware.SetSession(c, auth.Unset())
		h.render(c, http.StatusInternalServerError, PageSignIn, data)
		return
	}

	session, cookie := a.Logout(c.Request.Context(), middleware.GetSession(c))
	http.SetCookie(c.Writer, cookie)
	middleware.SetSession(c, session)

	data.add(BannerInfo, "You have been logged out.")
	h.render(c, http.StatusOK, PageSignIn, data)
}

// GenerateQuiz handles the quiz form of a signed-in user.
func (h *Handler) GenerateQuiz(c *gin.Context) {
	data := &PageData{}
	session := middleware.GetSession(c)
	if !session.Authenticated() {
		h.render(c, http.StatusUnauthorized, PageSignIn, data)
		return
	}

	var req quiz.Request
	if err := c.ShouldBind(&req); err != nil {
		data.Quiz.Topic = c.PostForm("topic")
		data.add(BannerWarning, "Please provide the context and number of questions.")
		h.render(c, http.StatusBadRequest, PageSignIn, data)
		return
	}
	data.Quiz = QuizForm{Topic: req.Topic, Count: req.Count}

	result, err := h.generator.Generate(c.Request.Context(), req)
	if err != nil {
		banner, status := errorBanner(err)
		if quiz.KindOf(err) == quiz.KindInvalidRequest {
			banner.Kind = BannerWarning
		}
		data.Banners = append(data.Banners, banner)
		h.render(c, status, PageSignIn, data)
		return
	}

	data.Quiz.Result = result
	if !result.Matches() {
		data.add(BannerWarning, fmt.Sprintf(
			"You asked for %d questions but the generated quiz appears to contain %d. It is shown as returned.",
			result.Requested, result.Blocks))
	}
	h.render(c, http.StatusOK, PageSignIn, data)
}

// ResetPassword handles the password change form of a signed-in local user.
func (h *Handler) ResetPassword(c *gin.Context) {
	data := &PageData{}

	a, session, ok := h.localAccount(c, data)
	if !ok {
		return
	}

	err := a.ResetPassword(c.Request.Context(), session.Username,
		c.PostForm("current_password"), c.PostForm("new_password"), c.PostForm("repeat_password"))
	if err != nil {
		banner, status := errorBanner(err)
		data.Banners = append(data.Banners, banner)
		h.render(c, status, PageSignIn, data)
		return
	}

	data.add(BannerSuccess, "Password modified successfully")
	h.render(c, http.StatusOK, PageSignIn, data)
}

// UpdateDetails handles the name/email form of a signed-in local user.
func (h *Handler) UpdateDetails(c *gin.Context) {
	data := &PageData{}

	a, session, ok := h.localAccount(c, data)
	if !ok {
		return
	}

	field, value := c.PostForm("field"), c.PostForm("value")
	if err := a.UpdateUserDetails(c.Request.Context(), session.Username, field, value); err != nil {
		banner, status := errorBanner(err)
		data.Banners = append(data.Banners, banner)
		h.render(c, status, PageSignIn, data)
		return
	}

	if u, ok := a.Config().User(session.Username); ok {
		updated := *session
		updated.Name = u.Name
		updated.Email = u.Email
		middleware.SetSession(c, &updated)
	}

	data.add(BannerSuccess, "Entries updated successfully")
	h.render(c, http.StatusOK, PageSignIn, data)
}

// localAccount checks that the request belongs to a signed-in account from
// the credential file and renders the sign-in page otherwise.
func (h *Handler) localAccount(c *gin.Context, data *PageData) (*auth.Authenticator, *auth.Session, bool) {
	a, err := middleware.GetAuthenticator(c)
	if err != nil {
		h.render(c, http.StatusInternalServerError, PageSignIn, data)
		return nil, nil, false
	}

	session := middleware.GetSession(c)
	if !session.Authenticated() {
		h.render(c, http.StatusUnauthorized, PageSignIn, data)
		return nil, nil, false
	}
	if !session.Local() {
		data.add(BannerWarning, "Account settings are only available for registered accounts.")
		h.render(c, http.StatusForbidden, PageSignIn, data)
		return nil, nil, false
	}
	return a, session, true
}
