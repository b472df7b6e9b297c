// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/autobrr/quizzer/internal/auth"
)

func HashCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "hash <password>",
		Short: "hash",
		Long:  `Print a bcrypt hash for the password_hash field of the credentials file`,
		Example: `  quizzer hash 'S3cret!pass'
  quizzer hash --help`,
		SilenceUsage: true,
		Args:         cobra.ExactArgs(1),
	}

	command.RunE = func(cmd *cobra.Command, args []string) error {
		hash, err := auth.HashPassword(args[0], bcryptCost)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	}

	return command
}
