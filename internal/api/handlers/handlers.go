// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/autobrr/quizzer/internal/api/middleware"
	"github.com/autobrr/quizzer/internal/auth"
	"github.com/autobrr/quizzer/internal/quiz"
)

// QuizGenerator is the part of the quiz generator the pages use.
type QuizGenerator interface {
	Generate(ctx context.Context, req quiz.Request) (*quiz.Result, error)
	Available() bool
}

// Handler is the page controller: it owns the navigation and renders the
// selected view for every request.
type Handler struct {
	generator QuizGenerator
	nav       *Navigation
}

func NewHandler(generator QuizGenerator) *Handler {
	h := &Handler{generator: generator}
	h.nav = NewNavigation(
		Page{Label: "Create Your Account", Slug: PageCreateAccount, Render: h.renderCreateAccount},
		Page{Label: "Sign In", Slug: PageSignIn, Render: h.renderSignIn},
	)
	return h
}

// Index renders the default page.
func (h *Handler) Index(c *gin.Context) {
	h.render(c, http.StatusOK, "", nil)
}

// View renders the page named by the slug path parameter.
func (h *Handler) View(c *gin.Context) {
	h.render(c, http.StatusOK, c.Param("slug"), nil)
}

func (h *Handler) renderCreateAccount(c *gin.Context, data *PageData) {
	a := authenticator(c, data)
	if a == nil {
		return
	}
	data.RegistrationRestricted = a.Config().RegistrationRestricted()
}

func (h *Handler) renderSignIn(c *gin.Context, data *PageData) {
	a := authenticator(c, data)
	if a == nil {
		return
	}
	data.GuestProviders = a.GuestProviders()

	switch s := data.Session; s.Status {
	case auth.StatusAuthenticated:
		data.Banners = append([]Banner{{BannerSuccess, fmt.Sprintf("Welcome, %s!", s.Name)}}, data.Banners...)
	case auth.StatusFailed:
		if !data.hasErrors() {
			data.add(BannerError, "Invalid username or password.")
		}
	default:
		data.add(BannerWarning, "Please log in.")
	}
}

// Register handles the registration form.
func (h *Handler) Register(c *gin.Context) {
	var req auth.RegisterRequest
	if err := c.ShouldBind(&req); err != nil {
		data := &PageData{Register: RegisterForm{
			Username: c.PostForm("username"),
			Name:     c.PostForm("name"),
			Email:    c.PostForm("email"),
		}}
		data.add(BannerWarning, "Please fill in every registration field.")
		h.render(c, http.StatusBadRequest, PageCreateAccount, data)
		return
	}

	data := &PageData{Register: RegisterForm{Username: req.Username, Name: req.Name, Email: req.Email}}

	a, err := middleware.GetAuthenticator(c)
	if err != nil {
		h.render(c, http.StatusInternalServerError, PageCreateAccount, data)
		return
	}

	if _, _, _, err := a.RegisterUser(c.Request.Context(), req); err != nil {
		banner, status := errorBanner(err)
		data.Banners = append(data.Banners, banner)
		h.render(c, status, PageCreateAccount, data)
		return
	}

	data.Register = RegisterForm{}
	data.add(BannerSuccess, "User registered successfully!")
	h.render(c, http.StatusOK, PageCreateAccount, data)
}
