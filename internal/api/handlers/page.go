// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/quizzer/internal/api/middleware"
	"github.com/autobrr/quizzer/internal/auth"
	"github.com/autobrr/quizzer/internal/credentials"
	"github.com/autobrr/quizzer/internal/quiz"
)

type BannerKind string

const (
	BannerSuccess BannerKind = "success"
	BannerInfo    BannerKind = "info"
	BannerWarning BannerKind = "warning"
	BannerError   BannerKind = "error"
)

// Banner is an inline, coloured message shown above the page content.
type Banner struct {
	Kind BannerKind
	Text string
}

type RegisterForm struct {
	Username string
	Name     string
	Email    string
}

type QuizForm struct {
	Topic  string
	Count  int
	Result *quiz.Result
}

// PageData is everything the page template needs for one request.
type PageData struct {
	Title     string
	Page      string
	Nav       []NavItem
	CSRFToken string
	Session   *auth.Session
	Banners   []Banner

	// Ready is false when the credential file could not be loaded; no forms
	// are rendered then.
	Ready                  bool
	GuestProviders         []string
	RegistrationRestricted bool

	Register     RegisterForm
	Quiz         QuizForm
	MaxQuestions int
}

func (d *PageData) add(kind BannerKind, text string) {
	d.Banners = append(d.Banners, Banner{Kind: kind, Text: text})
}

func (d *PageData) hasErrors() bool {
	for _, b := range d.Banners {
		if b.Kind == BannerError {
			return true
		}
	}
	return false
}

// render selects the page for slug, lets it fill data and writes the HTML.
func (h *Handler) render(c *gin.Context, status int, slug string, data *PageData) {
	if data == nil {
		data = &PageData{}
	}

	page := h.nav.Select(slug)
	data.Title = page.Label
	data.Page = page.Slug
	data.Nav = h.nav.Items(page.Slug)
	data.CSRFToken = middleware.CSRFToken(c)
	data.Session = middleware.GetSession(c)
	data.MaxQuestions = quiz.MaxQuestions
	if data.Quiz.Count < 1 {
		data.Quiz.Count = 1
	}

	page.Render(c, data)

	if !data.Ready && status < http.StatusBadRequest {
		status = http.StatusInternalServerError
	}
	c.HTML(status, "page.html", data)
}

// Reject renders the page a refused form belongs to with an error banner.
// Middleware calls it for browser requests that never reach a handler.
func (h *Handler) Reject(c *gin.Context, status int, message string) {
	data := &PageData{}
	data.add(BannerError, message)

	slug := PageSignIn
	if c.Request.URL.Path == "/account/register" {
		slug = PageCreateAccount
		data.Register = RegisterForm{
			Username: c.PostForm("username"),
			Name:     c.PostForm("name"),
			Email:    c.PostForm("email"),
		}
	} else {
		data.Quiz.Topic = c.PostForm("topic")
	}

	h.render(c, status, slug, data)
	c.Abort()
}

// authenticator returns the request's authenticator. When the credential
// file is unusable it records the error banner and returns nil.
func authenticator(c *gin.Context, data *PageData) *auth.Authenticator {
	a, err := middleware.GetAuthenticator(c)
	if err != nil {
		data.add(BannerError, credentialsMessage(err))
		return nil
	}
	data.Ready = true
	return a
}

func credentialsMessage(err error) string {
	var (
		notFound   *credentials.NotFoundError
		formatErr  *credentials.FormatError
		invalidErr *credentials.ValidationError
	)
	switch {
	case errors.As(err, &notFound):
		return "Config file not found. Please create a valid credentials file."
	case errors.As(err, &formatErr):
		return "Error in YAML format: " + formatErr.Err.Error()
	case errors.As(err, &invalidErr):
		return capitalize(invalidErr.Error())
	default:
		return "Could not read the credentials file."
	}
}

// errorBanner converts an error from the auth or quiz flows into the banner
// shown to the user and the status code of the response.
func errorBanner(err error) (Banner, int) {
	var (
		loginErr    *auth.LoginError
		registerErr *auth.RegisterError
		resetErr    *auth.ResetError
		updateErr   *auth.UpdateError
		forgotErr   *auth.ForgotError
		credErr     *auth.CredentialsError
		genErr      *quiz.GenerationError
		ioErr       *credentials.IOError
	)

	switch {
	case errors.As(err, &registerErr):
		if registerErr.Duplicate {
			return Banner{BannerError, registerErr.Message}, http.StatusConflict
		}
		return Banner{BannerError, registerErr.Message}, http.StatusBadRequest
	case errors.As(err, &loginErr):
		return Banner{BannerError, "Login Error: " + loginErr.Message}, http.StatusBadRequest
	case errors.As(err, &resetErr):
		return Banner{BannerError, resetErr.Message}, http.StatusBadRequest
	case errors.As(err, &updateErr):
		return Banner{BannerError, updateErr.Message}, http.StatusBadRequest
	case errors.As(err, &forgotErr):
		return Banner{BannerError, forgotErr.Message}, http.StatusBadRequest
	case errors.As(err, &credErr):
		return Banner{BannerError, credErr.Message}, http.StatusForbidden
	case errors.As(err, &genErr):
		return Banner{BannerError, genErr.Message}, generationStatus(genErr.Kind)
	case errors.As(err, &ioErr):
		return Banner{BannerError, "Error saving config file, please try again."}, http.StatusInternalServerError
	case errors.Is(err, credentials.ErrConfig):
		return Banner{BannerError, credentialsMessage(err)}, http.StatusInternalServerError
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return Banner{BannerError, "The request was canceled."}, http.StatusRequestTimeout
	default:
		log.Error().Err(err).Msg("unexpected error")
		return Banner{BannerError, "Something went wrong, please try again."}, http.StatusInternalServerError
	}
}

func generationStatus(kind quiz.Kind) int {
	switch kind {
	case quiz.KindInvalidRequest:
		return http.StatusBadRequest
	case quiz.KindMissingAPIKey, quiz.KindBusy:
		return http.StatusServiceUnavailable
	case quiz.KindTimeout:
		return http.StatusGatewayTimeout
	case quiz.KindCanceled:
		return http.StatusRequestTimeout
	default:
		return http.StatusBadGateway
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
