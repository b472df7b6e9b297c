// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package buildinfo

import (
	"fmt"
	"net/http"
	"runtime"
)

// Set at build time via -ldflags.
var (
	Version = "dev"
	Commit  = ""
	Date    = ""
)

// UserAgent identifies outgoing requests.
func UserAgent() string {
	return fmt.Sprintf("quizzer/%s (%s %s)", Version, runtime.GOOS, runtime.GOARCH)
}

// AttachUserAgentHeader sets the quizzer user agent on req.
func AttachUserAgentHeader(req *http.Request) {
	req.Header.Set("User-Agent", UserAgent())
}
