// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"os"

	"github.com/autobrr/quizzer/internal/buildinfo"
	"github.com/autobrr/quizzer/internal/commands"
)

var (
	version = "dev"
	commit  = ""
	date    = ""
)

func main() {
	buildinfo.Version = version
	buildinfo.Commit = commit
	buildinfo.Date = date

	if err := commands.RootCommand().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
