// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package auth

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/autobrr/quizzer/internal/credentials"
	"github.com/autobrr/quizzer/internal/services/cache"
)

const testPassword = "Secret#123"

func writeCredentials(t *testing.T, extra string) *credentials.Store {
	t.Helper()

	h, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)

	content := fmt.Sprintf(`credentials:
  usernames:
    jsmith:
      name: John Smith
      email: jsmith@example.com
      password_hash: %q
cookie:
  name: quizzer_auth
  key: some_signature_key
  expiry_days: 30
%s`, string(h), extra)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return credentials.NewStore(path)
}

func newTestAuthenticator(t *testing.T, store *credentials.Store, deps Deps) *Authenticator {
	t.Helper()

	cfg, err := store.Load()
	require.NoError(t, err)

	deps.Store = store
	deps.BcryptCost = bcrypt.MinCost
	if deps.Cache == nil {
		mem := cache.NewMemoryStore()
		t.Cleanup(func() { _ = mem.Close() })
		deps.Cache = mem
	}
	return New(cfg, deps)
}
