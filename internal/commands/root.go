// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package commands

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/autobrr/quizzer/internal/config"
	"github.com/autobrr/quizzer/internal/credentials"
	"github.com/autobrr/quizzer/internal/logger"
)

type rootOptions struct {
	configPath      string
	credentialsPath string
}

// RootCommand builds the quizzer command tree. Without a subcommand it
// starts the web server.
func RootCommand() *cobra.Command {
	opts := &rootOptions{}

	command := &cobra.Command{
		Use:   "quizzer",
		Short: "quizzer",
		Long:  `Quiz generator with local and guest accounts`,
		Example: `  quizzer
  quizzer serve --config quizzer.toml
  quizzer user create <username> <name> <email> <password>`,
		SilenceUsage: true,
	}

	command.PersistentFlags().StringVar(&opts.configPath, "config", "quizzer.toml", "path to config file")
	command.PersistentFlags().StringVar(&opts.credentialsPath, "credentials", "", "path to the credentials file (overrides config)")

	serve := ServeCommand(opts)
	command.RunE = serve.RunE

	command.AddCommand(serve)
	command.AddCommand(UserCommand(opts))
	command.AddCommand(HashCommand())
	command.AddCommand(VersionCommand())

	return command
}

// load reads the application config, initialises logging and applies the
// command line overrides.
func (o *rootOptions) load() (*config.Config, error) {
	cfg, found, err := config.LoadOrDefault(o.configPath)
	if err != nil {
		return nil, err
	}

	logger.Init(cfg.Log.Level)
	if !found {
		log.Warn().Str("file", o.configPath).Msg("config file not found, using defaults")
	}

	if o.credentialsPath != "" {
		cfg.Credentials.Path = o.credentialsPath
	}
	return cfg, nil
}

func (o *rootOptions) store() (*credentials.Store, error) {
	cfg, err := o.load()
	if err != nil {
		return nil, err
	}
	return credentials.NewStore(cfg.Credentials.Path), nil
}
