// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		password string
		wantErr  bool
	}{
		{"Secret#123", false},
		{"Ünïcödé#9x", false},
		{"short#1A", false},
		{"sh#1A", true},
		{"alllowercase#1", true},
		{"ALLUPPERCASE#1", true},
		{"NoNumbers#here", true},
		{"NoSpecial123", true},
		{"A#1" + strings.Repeat("a", 70), true},
	}

	for _, tt := range tests {
		t.Run(tt.password, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("Secret#123", bcrypt.MinCost)
	require.NoError(t, err)

	assert.True(t, CheckPassword("Secret#123", hash))
	assert.False(t, CheckPassword("Secret#124", hash))
	assert.False(t, CheckPassword("Secret#123", "plaintext"))
}

func TestRandomPassword(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		p, err := RandomPassword(16)
		require.NoError(t, err)
		assert.Len(t, p, 16)
		assert.NoError(t, ValidatePassword(p))
		seen[p] = true
	}
	assert.Len(t, seen, 20)

	p, err := RandomPassword(2)
	require.NoError(t, err)
	assert.Len(t, p, 8)
}
