// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package auth

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRegistration(username string) RegisterRequest {
	return RegisterRequest{
		Username:       username,
		Name:           "Ada Lovelace",
		Email:          username + "@example.com",
		Password:       "Engine#1843",
		RepeatPassword: "Engine#1843",
	}
}

func TestRegisterUser(t *testing.T) {
	store := writeCredentials(t, "")
	a := newTestAuthenticator(t, store, Deps{})
	ctx := context.Background()

	email, username, name, err := a.RegisterUser(ctx, validRegistration("ada"))
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", email)
	assert.Equal(t, "ada", username)
	assert.Equal(t, "Ada Lovelace", name)

	cfg, err := store.Load()
	require.NoError(t, err)
	u, ok := cfg.User("ada")
	require.True(t, ok)
	assert.NotEqual(t, "Engine#1843", u.PasswordHash)
	assert.True(t, CheckPassword("Engine#1843", u.PasswordHash))

	// the new account can sign in straight away
	s, err := a.Login(ctx, "ada", "Engine#1843")
	require.NoError(t, err)
	assert.True(t, s.Authenticated())

	_, _, _, err = a.RegisterUser(ctx, validRegistration("ada"))
	var regErr *RegisterError
	require.ErrorAs(t, err, &regErr)
	assert.True(t, regErr.Duplicate)
}

func TestRegisterUser_DuplicateEmail(t *testing.T) {
	a := newTestAuthenticator(t, writeCredentials(t, ""), Deps{})

	req := validRegistration("johnny")
	req.Email = "JSmith@example.com"

	_, _, _, err := a.RegisterUser(context.Background(), req)
	var regErr *RegisterError
	require.ErrorAs(t, err, &regErr)
	assert.True(t, regErr.Duplicate)
	assert.Equal(t, "Email already taken", regErr.Message)
}

func TestRegisterUser_Validation(t *testing.T) {
	store := writeCredentials(t, "")
	a := newTestAuthenticator(t, store, Deps{})

	tests := []struct {
		name    string
		mutate  func(r *RegisterRequest)
		message string
	}{
		{name: "empty username", mutate: func(r *RegisterRequest) { r.Username = " " }, message: "Username is not valid"},
		{name: "bad username", mutate: func(r *RegisterRequest) { r.Username = "ada lovelace" }, message: "Username may only contain letters, digits, '_', '.' or '-' and be at most 32 characters"},
		{name: "empty name", mutate: func(r *RegisterRequest) { r.Name = "" }, message: "Name is not valid"},
		{name: "bad email", mutate: func(r *RegisterRequest) { r.Email = "not-an-email" }, message: "Email is not valid"},
		{name: "passwords differ", mutate: func(r *RegisterRequest) { r.RepeatPassword = "Engine#1844" }, message: "Passwords do not match"},
		{name: "weak password", mutate: func(r *RegisterRequest) { r.Password, r.RepeatPassword = "engine1843", "engine1843" }, message: "Password must contain at least one uppercase letter"},
		{name: "short password", mutate: func(r *RegisterRequest) { r.Password, r.RepeatPassword = "E#1a", "E#1a" }, message: "Password must be at least 8 characters long"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRegistration("ada")
			tt.mutate(&req)

			_, _, _, err := a.RegisterUser(context.Background(), req)
			var regErr *RegisterError
			require.ErrorAs(t, err, &regErr)
			assert.Equal(t, tt.message, regErr.Message)
			assert.False(t, regErr.Duplicate)
		})
	}

	cfg, err := store.Load()
	require.NoError(t, err)
	assert.Len(t, cfg.Credentials.Usernames, 1)
}

func TestRegisterUser_PreAuthorized(t *testing.T) {
	store := writeCredentials(t, "pre-authorized:\n  emails:\n    - ada@example.com\n")
	a := newTestAuthenticator(t, store, Deps{})
	ctx := context.Background()

	_, _, _, err := a.RegisterUser(ctx, validRegistration("grace"))
	var regErr *RegisterError
	require.ErrorAs(t, err, &regErr)
	assert.Equal(t, "User not pre-authorized to register", regErr.Message)

	_, _, _, err = a.RegisterUser(ctx, validRegistration("ada"))
	require.NoError(t, err)

	cfg, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.PreAuthorized.Emails)
}

func TestRegisterUser_ConcurrentRequests(t *testing.T) {
	store := writeCredentials(t, "")
	ctx := context.Background()

	const workers = 8
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// every request builds its own authenticator from a fresh load
			a := newTestAuthenticator(t, store, Deps{})
			_, _, _, err := a.RegisterUser(ctx, validRegistration(fmt.Sprintf("user%d", i)))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	cfg, err := store.Load()
	require.NoError(t, err)
	assert.Len(t, cfg.Credentials.Usernames, workers+1)
}

func TestResetPassword(t *testing.T) {
	store := writeCredentials(t, "")
	a := newTestAuthenticator(t, store, Deps{})
	ctx := context.Background()

	var resetErr *ResetError
	err := a.ResetPassword(ctx, "jsmith", testPassword, "Newpass#1", "Newpass#2")
	require.ErrorAs(t, err, &resetErr)
	assert.Equal(t, "Passwords do not match", resetErr.Message)

	err = a.ResetPassword(ctx, "jsmith", testPassword, testPassword, testPassword)
	require.ErrorAs(t, err, &resetErr)

	var credErr *CredentialsError
	err = a.ResetPassword(ctx, "jsmith", "Wrong#123", "Newpass#1", "Newpass#1")
	require.ErrorAs(t, err, &credErr)
	assert.Equal(t, "Current password is incorrect", credErr.Message)

	err = a.ResetPassword(ctx, "ghost", testPassword, "Newpass#1", "Newpass#1")
	require.ErrorAs(t, err, &credErr)

	require.NoError(t, a.ResetPassword(ctx, "jsmith", testPassword, "Newpass#1", "Newpass#1"))

	fresh := newTestAuthenticator(t, store, Deps{})
	s, err := fresh.Login(ctx, "jsmith", "Newpass#1")
	require.NoError(t, err)
	assert.True(t, s.Authenticated())

	s, err = fresh.Login(ctx, "jsmith", testPassword)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, s.Status)
}

func TestUpdateUserDetails(t *testing.T) {
	store := writeCredentials(t, "")
	a := newTestAuthenticator(t, store, Deps{})
	ctx := context.Background()

	_, _, _, err := a.RegisterUser(ctx, validRegistration("ada"))
	require.NoError(t, err)

	require.NoError(t, a.UpdateUserDetails(ctx, "jsmith", "name", "  Jonathan Smith "))
	require.NoError(t, a.UpdateUserDetails(ctx, "jsmith", "email", "jon@example.com"))

	cfg, err := store.Load()
	require.NoError(t, err)
	u, _ := cfg.User("jsmith")
	assert.Equal(t, "Jonathan Smith", u.Name)
	assert.Equal(t, "jon@example.com", u.Email)

	tests := []struct {
		name    string
		field   string
		value   string
		message string
	}{
		{name: "unknown field", field: "password_hash", value: "x", message: `Field "password_hash" cannot be updated`},
		{name: "empty name", field: "name", value: " ", message: "Name is not valid"},
		{name: "invalid email", field: "email", value: "nope", message: "Email is not valid"},
		{name: "unchanged", field: "name", value: "Jonathan Smith", message: "New and current values are the same"},
		{name: "email owned by another user", field: "email", value: "ada@example.com", message: "Email already taken"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var updateErr *UpdateError
			err := a.UpdateUserDetails(ctx, "jsmith", tt.field, tt.value)
			require.ErrorAs(t, err, &updateErr)
			assert.Equal(t, tt.message, updateErr.Message)
		})
	}
}

func TestForgotPassword(t *testing.T) {
	store := writeCredentials(t, "")
	a := newTestAuthenticator(t, store, Deps{})
	ctx := context.Background()

	email, password, err := a.ForgotPassword(ctx, "jsmith")
	require.NoError(t, err)
	assert.Equal(t, "jsmith@example.com", email)
	assert.NoError(t, ValidatePassword(password))

	fresh := newTestAuthenticator(t, store, Deps{})
	s, err := fresh.Login(ctx, "jsmith", password)
	require.NoError(t, err)
	assert.True(t, s.Authenticated())

	var forgotErr *ForgotError
	_, _, err = a.ForgotPassword(ctx, "ghost")
	require.ErrorAs(t, err, &forgotErr)
	assert.Equal(t, "Username not found", forgotErr.Message)
}

func TestChangePassword(t *testing.T) {
	store := writeCredentials(t, "")
	a := newTestAuthenticator(t, store, Deps{})
	ctx := context.Background()

	var resetErr *ResetError
	require.ErrorAs(t, a.ChangePassword(ctx, "jsmith", "weak"), &resetErr)

	require.NoError(t, a.ChangePassword(ctx, "jsmith", "Changed#42"))
	s, err := a.Login(ctx, "jsmith", "Changed#42")
	require.NoError(t, err)
	assert.True(t, s.Authenticated())
}
