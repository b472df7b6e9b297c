// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package routes

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/autobrr/quizzer/internal/api/handlers"
	"github.com/autobrr/quizzer/internal/api/middleware"
	"github.com/autobrr/quizzer/internal/auth"
	"github.com/autobrr/quizzer/internal/config"
	"github.com/autobrr/quizzer/internal/credentials"
	"github.com/autobrr/quizzer/internal/services/cache"
	"github.com/autobrr/quizzer/web"
)

// Dependencies are the long-lived services the routes share.
type Dependencies struct {
	Config      *config.Config
	Credentials *credentials.Store
	Cache       cache.Store
	Generator   handlers.QuizGenerator
}

// SetupRoutes configures all the routes for the application.
func SetupRoutes(r *gin.Engine, deps Dependencies) error {
	tmpl, err := web.LoadTemplates()
	if err != nil {
		return err
	}
	r.SetHTMLTemplate(tmpl)

	cfg := deps.Config
	secureCookies := strings.HasPrefix(cfg.Server.BaseURL, "https://")

	csrfConfig := middleware.DefaultCSRFConfig()
	csrfConfig.Secure = secureCookies

	r.Use(middleware.Logger())
	r.Use(gin.Recovery())
	r.Use(middleware.SetupCORS(cfg.Server.BaseURL))
	r.Use(middleware.Secure(nil))
	r.Use(middleware.CacheControl())

	sessions := middleware.NewSessionLoader(deps.Credentials, auth.Deps{
		Cache:         deps.Cache,
		BaseURL:       cfg.Server.BaseURL,
		SecureCookies: secureCookies,
	})

	h := handlers.NewHandler(deps.Generator)
	csrfConfig.Reject = h.Reject

	authRateLimiter := middleware.NewRateLimiter(deps.Cache, time.Minute, cfg.RateLimit.AuthPerMinute, "auth:").WithReject(h.Reject)
	quizRateLimiter := middleware.NewRateLimiter(deps.Cache, time.Minute, cfg.RateLimit.QuizPerMinute, "quiz:").WithReject(h.Reject)

	r.GET("/health", h.Health)
	web.ServeStatic(r)

	// refused forms render as pages, so the session loads before CSRF runs
	pages := r.Group("")
	pages.Use(sessions.LoadSession(), middleware.CSRF(csrfConfig))
	{
		pages.GET("/", h.Index)
		pages.GET("/view/:slug", h.View)

		account := pages.Group("")
		account.Use(authRateLimiter.RateLimit())
		{
			account.POST("/account/register", h.Register)
			account.POST("/signin/login", h.Login)
			account.POST("/signin/logout", h.Logout)
			account.POST("/signin/password", h.ResetPassword)
			account.POST("/signin/details", h.UpdateDetails)
			account.GET("/auth/guest/:provider", h.GuestLogin)
			account.GET("/auth/callback/:provider", h.GuestCallback)
		}

		pages.POST("/signin/quiz", quizRateLimiter.RateLimit(), h.GenerateQuiz)
	}

	return nil
}
