// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package commands

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/autobrr/quizzer/internal/api/routes"
	"github.com/autobrr/quizzer/internal/buildinfo"
	"github.com/autobrr/quizzer/internal/credentials"
	"github.com/autobrr/quizzer/internal/quiz"
	"github.com/autobrr/quizzer/internal/services/cache"
)

const shutdownTimeout = 10 * time.Second

func ServeCommand(opts *rootOptions) *cobra.Command {
	command := &cobra.Command{
		Use:   "serve",
		Short: "serve",
		Long:  `Start the web server`,
		Example: `  quizzer serve
  quizzer serve --config /etc/quizzer/quizzer.toml`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
	}

	command.RunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := opts.load()
		if err != nil {
			return err
		}

		log.Info().
			Str("version", buildinfo.Version).
			Str("commit", buildinfo.Commit).
			Str("build_date", buildinfo.Date).
			Msg("Starting quizzer")

		store := credentials.NewStore(cfg.Credentials.Path)
		if _, err := store.Load(); err != nil {
			// the pages report this to every visitor until the file is fixed
			log.Error().Err(err).Str("file", store.Path()).Msg("credentials file is not usable")
		}

		cacheStore, err := cache.InitCache(cmd.Context(), cfg.Cache)
		if err != nil {
			return errors.Wrap(err, "failed to initialize cache")
		}
		defer func() {
			if err := cacheStore.Close(); err != nil {
				log.Error().Err(err).Str("type", cfg.Cache.Type).Msg("Failed to close cache")
			}
		}()

		if os.Getenv("GIN_MODE") == "debug" {
			gin.SetMode(gin.DebugMode)
		} else {
			gin.SetMode(gin.ReleaseMode)
		}

		r := gin.New()
		if gin.Mode() == gin.DebugMode {
			err = r.SetTrustedProxies(nil)
		} else {
			err = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})
		}
		if err != nil {
			log.Error().Err(err).Msg("Failed to set trusted proxies")
		}

		generator := quiz.NewGenerator(cfg.Generator, quiz.GoogleAIFactory(cfg.Generator))
		if err := routes.SetupRoutes(r, routes.Dependencies{
			Config:      cfg,
			Credentials: store,
			Cache:       cacheStore,
			Generator:   generator,
		}); err != nil {
			return err
		}

		generationTimeout := time.Duration(cfg.Generator.TimeoutSeconds) * time.Second
		srv := &http.Server{
			Addr:         cfg.Server.ListenAddr,
			Handler:      r,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: generationTimeout + 15*time.Second,
			IdleTimeout:  60 * time.Second,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		serveErr := make(chan error, 1)
		go func() {
			log.Info().
				Str("address", cfg.Server.ListenAddr).
				Str("base_url", cfg.Server.BaseURL).
				Str("mode", gin.Mode()).
				Str("credentials", store.Path()).
				Msg("Starting server")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- err
			}
			close(serveErr)
		}()

		select {
		case err := <-serveErr:
			if err != nil {
				return errors.Wrap(err, "failed to start server")
			}
		case <-ctx.Done():
		}

		log.Info().Msg("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "server forced to shutdown")
		}

		log.Info().Msg("Server exiting")
		return nil
	}

	return command
}
