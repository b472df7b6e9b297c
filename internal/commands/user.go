// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package commands

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/autobrr/quizzer/internal/auth"
)

// bcryptCost is lowered in tests.
var bcryptCost = auth.DefaultBcryptCost

func UserCommand(opts *rootOptions) *cobra.Command {
	command := &cobra.Command{
		Use:   "user",
		Short: "user",
		Long:  `Manage accounts in the credentials file`,
		Example: `  quizzer user
  quizzer user --help`,
		SilenceUsage: true,
	}

	command.RunE = func(cmd *cobra.Command, args []string) error {
		return cmd.Usage()
	}

	command.AddCommand(UserCreateCommand(opts))
	command.AddCommand(UserChangePasswordCommand(opts))
	command.AddCommand(UserForgotPasswordCommand(opts))

	return command
}

func (o *rootOptions) authenticator() (*auth.Authenticator, error) {
	store, err := o.store()
	if err != nil {
		return nil, err
	}

	cfg, err := store.Load()
	if err != nil {
		return nil, err
	}

	return auth.New(cfg, auth.Deps{Store: store, BcryptCost: bcryptCost}), nil
}

func UserCreateCommand(opts *rootOptions) *cobra.Command {
	command := &cobra.Command{
		Use:   "create <username> <name> <email> <password>",
		Short: "create",
		Long:  `Register a new account, applying the same rules as the registration form`,
		Example: `  quizzer user create jsmith "John Smith" jsmith@example.com 'S3cret!pass'
  quizzer user create --help`,
		SilenceUsage: true,
		Args:         cobra.ExactArgs(4),
	}

	command.RunE = func(cmd *cobra.Command, args []string) error {
		a, err := opts.authenticator()
		if err != nil {
			return err
		}

		_, username, _, err := a.RegisterUser(commandContext(cmd), auth.RegisterRequest{
			Username:       args[0],
			Name:           args[1],
			Email:          args[2],
			Password:       args[3],
			RepeatPassword: args[3],
		})
		if err != nil {
			return errors.Wrap(err, "failed to create user")
		}

		fmt.Fprintf(cmd.OutOrStdout(), "User %s created successfully\n", username)
		return nil
	}

	return command
}

func UserChangePasswordCommand(opts *rootOptions) *cobra.Command {
	command := &cobra.Command{
		Use:   "change-password <username> <new-password>",
		Short: "change-password",
		Long:  `Set a new password for an account`,
		Example: `  quizzer user change-password jsmith 'N3w!password'
  quizzer user change-password --help`,
		SilenceUsage: true,
		Args:         cobra.ExactArgs(2),
	}

	command.RunE = func(cmd *cobra.Command, args []string) error {
		a, err := opts.authenticator()
		if err != nil {
			return err
		}

		if err := a.ChangePassword(commandContext(cmd), args[0], args[1]); err != nil {
			return errors.Wrap(err, "failed to change password")
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Password changed successfully for user %s\n", args[0])
		return nil
	}

	return command
}

func UserForgotPasswordCommand(opts *rootOptions) *cobra.Command {
	command := &cobra.Command{
		Use:   "forgot-password <username>",
		Short: "forgot-password",
		Long:  `Replace the password of an account with a random one and print it`,
		Example: `  quizzer user forgot-password jsmith
  quizzer user forgot-password --help`,
		SilenceUsage: true,
		Args:         cobra.ExactArgs(1),
	}

	command.RunE = func(cmd *cobra.Command, args []string) error {
		a, err := opts.authenticator()
		if err != nil {
			return err
		}

		email, password, err := a.ForgotPassword(commandContext(cmd), args[0])
		if err != nil {
			return errors.Wrap(err, "failed to reset password")
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "New password for %s (%s):\n", args[0], email)
		fmt.Fprintln(out, password)
		return nil
	}

	return command
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
