// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package auth

// LoginError reports malformed login input or a failed guest login.
type LoginError struct {
	Message string
	Err     error
}

func (e *LoginError) Error() string { return e.Message }
func (e *LoginError) Unwrap() error { return e.Err }

// RegisterError reports a rejected registration. Duplicate is set when the
// username or email is already taken.
type RegisterError struct {
	Message   string
	Duplicate bool
}

func (e *RegisterError) Error() string { return e.Message }

// ForgotError reports a failed forgotten-password reset.
type ForgotError struct {
	Message string
}

func (e *ForgotError) Error() string { return e.Message }

// ResetError reports a rejected password change.
type ResetError struct {
	Message string
}

func (e *ResetError) Error() string { return e.Message }

// UpdateError reports a rejected user detail update.
type UpdateError struct {
	Message string
}

func (e *UpdateError) Error() string { return e.Message }

// CredentialsError reports an unknown user or a wrong current password in
// flows that act on an existing account.
type CredentialsError struct {
	Message string
}

func (e *CredentialsError) Error() string { return e.Message }
