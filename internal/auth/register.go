// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/quizzer/internal/credentials"
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]{1,32}$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	return v
}

// RegisterRequest carries the fields of the registration form.
type RegisterRequest struct {
	Username       string `form:"username" validate:"required,username"`
	Name           string `form:"name" validate:"required,max=100"`
	Email          string `form:"email" validate:"required,email"`
	Password       string `form:"password" validate:"required"`
	RepeatPassword string `form:"repeat_password" validate:"required,eqfield=Password"`
}

func (r *RegisterRequest) normalize() {
	r.Username = normalizeUsername(r.Username)
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(r.Email)
}

func registerMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Invalid registration details"
	}

	fe := verrs[0]
	switch fe.Field() {
	case "Username":
		if fe.Tag() == "required" {
			return "Username is not valid"
		}
		return "Username may only contain letters, digits, '_', '.' or '-' and be at most 32 characters"
	case "Name":
		if fe.Tag() == "max" {
			return "Name must be at most 100 characters"
		}
		return "Name is not valid"
	case "Email":
		return "Email is not valid"
	case "RepeatPassword":
		if fe.Tag() == "eqfield" {
			return "Passwords do not match"
		}
		return "Please repeat the password"
	default:
		return "Password/repeat password fields cannot be empty"
	}
}

func (a *Authenticator) store() (*credentials.Store, error) {
	if a.deps.Store == nil {
		return nil, errors.New("authenticator has no credential store")
	}
	return a.deps.Store, nil
}

// RegisterUser validates req and appends the new account to the credential
// file. It returns the identity triple of the new user.
func (a *Authenticator) RegisterUser(ctx context.Context, req RegisterRequest) (email, username, name string, err error) {
	req.normalize()

	if err := validate.Struct(req); err != nil {
		return "", "", "", &RegisterError{Message: registerMessage(err)}
	}
	if err := ValidatePassword(req.Password); err != nil {
		return "", "", "", &RegisterError{Message: capitalize(err.Error())}
	}

	store, err := a.store()
	if err != nil {
		return "", "", "", err
	}

	hash, err := HashPassword(req.Password, a.deps.BcryptCost)
	if err != nil {
		return "", "", "", err
	}

	if err := ctx.Err(); err != nil {
		return "", "", "", err
	}

	cfg, err := store.Update(func(cfg *credentials.Config) error {
		if cfg.RegistrationRestricted() && !cfg.IsPreAuthorized(req.Email) {
			return &RegisterError{Message: "User not pre-authorized to register"}
		}
		if _, exists := cfg.User(req.Username); exists {
			return &RegisterError{Message: "Username already taken", Duplicate: true}
		}
		if _, exists := cfg.EmailOwner(req.Email); exists {
			return &RegisterError{Message: "Email already taken", Duplicate: true}
		}

		if err := cfg.AddUser(req.Username, &credentials.User{
			Name:         req.Name,
			Email:        req.Email,
			PasswordHash: hash,
		}); err != nil {
			if errors.Is(err, credentials.ErrUserExists) {
				return &RegisterError{Message: "Username already taken", Duplicate: true}
			}
			return err
		}
		cfg.ConsumePreAuthorization(req.Email)
		return nil
	})
	if err != nil {
		return "", "", "", err
	}

	a.cfg = cfg
	log.Info().Str("username", req.Username).Msg("registered new user")
	return req.Email, req.Username, req.Name, nil
}

// ResetPassword changes the password of a signed-in user after checking the
// current one.
func (a *Authenticator) ResetPassword(ctx context.Context, username, current, newPassword, repeat string) error {
	username = normalizeUsername(username)

	switch {
	case current == "":
		return &ResetError{Message: "Current password cannot be empty"}
	case newPassword == "" || repeat == "":
		return &ResetError{Message: "New password/repeat password fields cannot be empty"}
	case newPassword != repeat:
		return &ResetError{Message: "Passwords do not match"}
	case newPassword == current:
		return &ResetError{Message: "New and current passwords are the same"}
	}
	if err := ValidatePassword(newPassword); err != nil {
		return &ResetError{Message: capitalize(err.Error())}
	}

	return a.setPassword(ctx, username, newPassword, func(u *credentials.User) error {
		if !CheckPassword(current, u.PasswordHash) {
			return &CredentialsError{Message: "Current password is incorrect"}
		}
		return nil
	})
}

// ChangePassword sets a new password without checking the current one.
func (a *Authenticator) ChangePassword(ctx context.Context, username, newPassword string) error {
	username = normalizeUsername(username)
	if err := ValidatePassword(newPassword); err != nil {
		return &ResetError{Message: capitalize(err.Error())}
	}
	return a.setPassword(ctx, username, newPassword, nil)
}

// ForgotPassword replaces the password of username with a random one and
// returns the account email together with the new password.
func (a *Authenticator) ForgotPassword(ctx context.Context, username string) (email, newPassword string, err error) {
	username = normalizeUsername(username)
	if username == "" {
		return "", "", &ForgotError{Message: "Username cannot be empty"}
	}

	newPassword, err = RandomPassword(16)
	if err != nil {
		return "", "", err
	}

	err = a.setPassword(ctx, username, newPassword, nil)
	var credErr *CredentialsError
	if errors.As(err, &credErr) {
		return "", "", &ForgotError{Message: "Username not found"}
	}
	if err != nil {
		return "", "", err
	}

	u, _ := a.cfg.User(username)
	return u.Email, newPassword, nil
}

func (a *Authenticator) setPassword(ctx context.Context, username, password string, check func(*credentials.User) error) error {
	store, err := a.store()
	if err != nil {
		return err
	}

	hash, err := HashPassword(password, a.deps.BcryptCost)
	if err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	cfg, err := store.Update(func(cfg *credentials.Config) error {
		u, ok := cfg.User(username)
		if !ok {
			return &CredentialsError{Message: "User not found"}
		}
		if check != nil {
			if err := check(u); err != nil {
				return err
			}
		}
		u.PasswordHash = hash
		return nil
	})
	if err != nil {
		return err
	}

	a.cfg = cfg
	log.Info().Str("username", username).Msg("password changed")
	return nil
}

// UpdateUserDetails changes the name or email of a registered user.
func (a *Authenticator) UpdateUserDetails(ctx context.Context, username, field, value string) error {
	username = normalizeUsername(username)
	field = strings.ToLower(strings.TrimSpace(field))
	value = strings.TrimSpace(value)

	switch field {
	case "name":
		if value == "" || len(value) > 100 {
			return &UpdateError{Message: "Name is not valid"}
		}
	case "email":
		if err := validate.Var(value, "required,email"); err != nil {
			return &UpdateError{Message: "Email is not valid"}
		}
	default:
		return &UpdateError{Message: fmt.Sprintf("Field %q cannot be updated", field)}
	}

	store, err := a.store()
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	cfg, err := store.Update(func(cfg *credentials.Config) error {
		u, ok := cfg.User(username)
		if !ok {
			return &CredentialsError{Message: "User not found"}
		}

		switch field {
		case "name":
			if u.Name == value {
				return &UpdateError{Message: "New and current values are the same"}
			}
			u.Name = value
		case "email":
			if strings.EqualFold(u.Email, value) {
				return &UpdateError{Message: "New and current values are the same"}
			}
			if owner, taken := cfg.EmailOwner(value); taken && owner != username {
				return &UpdateError{Message: "Email already taken"}
			}
			u.Email = value
		}
		return nil
	})
	if err != nil {
		return err
	}

	a.cfg = cfg
	log.Info().Str("username", username).Str("field", field).Msg("updated user details")
	return nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
