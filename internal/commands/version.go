// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/autobrr/quizzer/internal/buildinfo"
)

type VersionInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

func VersionCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "version",
		Short: "version",
		Long:  `version`,
		Example: `  quizzer version
  quizzer version --json`,
		SilenceUsage: true,
	}

	var outputJson bool
	command.Flags().BoolVar(&outputJson, "json", false, "output in JSON format")

	command.RunE = func(cmd *cobra.Command, args []string) error {
		current := VersionInfo{
			Version: buildinfo.Version,
			Commit:  buildinfo.Commit,
			Date:    buildinfo.Date,
		}

		out := cmd.OutOrStdout()
		if outputJson {
			encoder := json.NewEncoder(out)
			encoder.SetIndent("", "  ")
			return encoder.Encode(current)
		}

		fmt.Fprintf(out, "quizzer version %s\n", current.Version)
		fmt.Fprintf(out, "Commit: %s\n", current.Commit)
		fmt.Fprintf(out, "Built: %s\n", current.Date)
		return nil
	}

	return command
}
