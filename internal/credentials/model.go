// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package credentials

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// MaxExpiryDays bounds cookie.expiry_days to ten years.
const MaxExpiryDays = 3650

// Config is the typed shape of the credential file. Every level keeps the
// keys it does not know about in Extra so a load/save cycle never drops them.
type Config struct {
	Credentials   Credentials          `yaml:"credentials"`
	Cookie        Cookie               `yaml:"cookie"`
	OAuth2        map[string]*Provider `yaml:"oauth2,omitempty"`
	PreAuthorized *PreAuthorized       `yaml:"pre-authorized,omitempty"`
	Extra         map[string]any       `yaml:",inline"`
}

type Credentials struct {
	Usernames map[string]*User `yaml:"usernames"`
	Extra     map[string]any   `yaml:",inline"`
}

// User is a registered account. PasswordHash is always a bcrypt hash.
type User struct {
	Name         string         `yaml:"name"`
	Email        string         `yaml:"email"`
	PasswordHash string         `yaml:"password_hash"`
	Extra        map[string]any `yaml:",inline"`
}

// Cookie holds the session cookie settings.
type Cookie struct {
	Name       string         `yaml:"name"`
	Key        string         `yaml:"key"`
	ExpiryDays int            `yaml:"expiry_days"`
	Extra      map[string]any `yaml:",inline"`
}

// Provider is the client configuration of one OAuth2 guest-login provider.
type Provider struct {
	ClientID     string         `yaml:"client_id"`
	ClientSecret string         `yaml:"client_secret"`
	RedirectURI  string         `yaml:"redirect_uri,omitempty"`
	Tenant       string         `yaml:"tenant,omitempty"`
	Extra        map[string]any `yaml:",inline"`
}

// PreAuthorized restricts registration to the listed emails when non-empty.
type PreAuthorized struct {
	Emails []string       `yaml:"emails"`
	Extra  map[string]any `yaml:",inline"`
}

// User returns the account registered under username.
func (c *Config) User(username string) (*User, bool) {
	if c.Credentials.Usernames == nil {
		return nil, false
	}
	u, ok := c.Credentials.Usernames[username]
	return u, ok && u != nil
}

// AddUser appends a new account, refusing to overwrite an existing one.
func (c *Config) AddUser(username string, u *User) error {
	if c.Credentials.Usernames == nil {
		c.Credentials.Usernames = make(map[string]*User)
	}
	if _, exists := c.Credentials.Usernames[username]; exists {
		return ErrUserExists
	}
	c.Credentials.Usernames[username] = u
	return nil
}

// EmailOwner returns the username registered with email, if any.
func (c *Config) EmailOwner(email string) (string, bool) {
	for name, u := range c.Credentials.Usernames {
		if u != nil && strings.EqualFold(u.Email, email) {
			return name, true
		}
	}
	return "", false
}

// RegistrationRestricted reports whether a pre-authorization list is active.
func (c *Config) RegistrationRestricted() bool {
	return c.PreAuthorized != nil && len(c.PreAuthorized.Emails) > 0
}

// IsPreAuthorized reports whether email is on the pre-authorization list.
func (c *Config) IsPreAuthorized(email string) bool {
	if c.PreAuthorized == nil {
		return false
	}
	for _, e := range c.PreAuthorized.Emails {
		if strings.EqualFold(e, email) {
			return true
		}
	}
	return false
}

// ConsumePreAuthorization removes email from the pre-authorization list.
func (c *Config) ConsumePreAuthorization(email string) {
	if c.PreAuthorized == nil {
		return
	}
	kept := c.PreAuthorized.Emails[:0]
	for _, e := range c.PreAuthorized.Emails {
		if !strings.EqualFold(e, email) {
			kept = append(kept, e)
		}
	}
	c.PreAuthorized.Emails = kept
}

// Validate checks the whole config and reports every offending field.
func (c *Config) Validate() error {
	var fields []FieldError
	add := func(field, reason string) {
		fields = append(fields, FieldError{Field: field, Reason: reason})
	}

	if strings.TrimSpace(c.Cookie.Name) == "" {
		add("cookie.name", "must not be empty")
	}
	if strings.TrimSpace(c.Cookie.Key) == "" {
		add("cookie.key", "must not be empty")
	}
	switch {
	case c.Cookie.ExpiryDays <= 0:
		add("cookie.expiry_days", "must be greater than zero")
	case c.Cookie.ExpiryDays > MaxExpiryDays:
		add("cookie.expiry_days", fmt.Sprintf("must be at most %d", MaxExpiryDays))
	}

	usernames := make([]string, 0, len(c.Credentials.Usernames))
	for name := range c.Credentials.Usernames {
		usernames = append(usernames, name)
	}
	sort.Strings(usernames)

	folded := make(map[string]string, len(usernames))
	for _, name := range usernames {
		prefix := fmt.Sprintf("credentials.usernames.%s", name)
		key := FoldUsername(name)
		if key == "" {
			add(prefix, "username must not be empty")
		} else if other, ok := folded[key]; ok {
			add(prefix, fmt.Sprintf("duplicates username %q, usernames are case-insensitive", other))
		} else {
			folded[key] = name
		}
		u := c.Credentials.Usernames[name]
		if u == nil {
			add(prefix, "entry is empty")
			continue
		}
		if strings.TrimSpace(u.Name) == "" {
			add(prefix+".name", "must not be empty")
		}
		if strings.TrimSpace(u.Email) == "" {
			add(prefix+".email", "must not be empty")
		}
		switch {
		case u.PasswordHash == "":
			add(prefix+".password_hash", "must not be empty")
		case !IsHashed(u.PasswordHash):
			add(prefix+".password_hash", "must be a bcrypt hash, plaintext passwords are not accepted")
		}
	}

	providers := make([]string, 0, len(c.OAuth2))
	for name := range c.OAuth2 {
		providers = append(providers, name)
	}
	sort.Strings(providers)

	for _, name := range providers {
		prefix := fmt.Sprintf("oauth2.%s", name)
		p := c.OAuth2[name]
		if p == nil {
			add(prefix, "entry is empty")
			continue
		}
		if strings.TrimSpace(p.ClientID) == "" {
			add(prefix+".client_id", "must not be empty")
		}
		if strings.TrimSpace(p.ClientSecret) == "" {
			add(prefix+".client_secret", "must not be empty")
		}
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// FoldUsername is the canonical form of a username: trimmed and lowercase.
func FoldUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// foldUsernames rewrites the user map with canonical keys. It assumes
// Validate has already rejected keys that collide once folded.
func (c *Config) foldUsernames() {
	if len(c.Credentials.Usernames) == 0 {
		return
	}
	folded := make(map[string]*User, len(c.Credentials.Usernames))
	for name, u := range c.Credentials.Usernames {
		folded[FoldUsername(name)] = u
	}
	c.Credentials.Usernames = folded
}

// IsHashed reports whether s looks like a bcrypt hash.
func IsHashed(s string) bool {
	_, err := bcrypt.Cost([]byte(s))
	return err == nil
}
