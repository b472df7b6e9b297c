// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package credentials

import (
	"bytes"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"
)

const defaultFileMode fs.FileMode = 0o600

// Store reads and writes the YAML credential file. Writes are serialized
// through the store and land via write-temp-then-rename, so readers never see
// a partially written file and concurrent registrations cannot drop each other.
type Store struct {
	path  string
	mu    sync.Mutex
	loads singleflight.Group
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string {
	return s.path
}

// Load reads, parses and validates the credential file. Concurrent callers
// share one read, so the returned config must be treated as read-only; use
// Update to change it.
func (s *Store) Load() (*Config, error) {
	v, err, _ := s.loads.Do(s.path, func() (interface{}, error) {
		return s.load()
	})
	if err != nil {
		return nil, err
	}
	return v.(*Config), nil
}

func (s *Store) load() (*Config, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &NotFoundError{Path: s.path}
		}
		return nil, &IOError{Op: "read", Path: s.path, Err: err}
	}

	return Parse(s.path, data)
}

// Parse decodes and validates credential file contents and folds usernames
// to lowercase. path is only used for error messages.
func Parse(path string, data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &FormatError{Path: path, Err: err}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.foldUsernames()

	return cfg, nil
}

// Save validates cfg and overwrites the whole credential file with it.
func (s *Store) Save(cfg *Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.saveLocked(cfg)
}

// Update runs fn against a freshly loaded config and saves the result, all
// while holding the store's write lock. When fn returns an error nothing is
// written and that error is returned unchanged.
func (s *Store) Update(fn func(cfg *Config) error) (*Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.load()
	if err != nil {
		return nil, err
	}

	if err := fn(cfg); err != nil {
		return nil, err
	}

	if err := s.saveLocked(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (s *Store) saveLocked(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	data, err := Marshal(cfg)
	if err != nil {
		return &IOError{Op: "encode", Path: s.path, Err: err}
	}

	mode := defaultFileMode
	if info, err := os.Stat(s.path); err == nil {
		mode = info.Mode().Perm()
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return &IOError{Op: "create", Path: s.path, Err: errors.Wrap(err, "create temp file")}
	}
	tmpName := tmp.Name()

	cleanup := func() {
		if rmErr := os.Remove(tmpName); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			log.Warn().Err(rmErr).Str("file", tmpName).Msg("failed to remove temporary credentials file")
		}
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return &IOError{Op: "write", Path: s.path, Err: errors.Wrap(err, "write temp file")}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return &IOError{Op: "sync", Path: s.path, Err: errors.Wrap(err, "sync temp file")}
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return &IOError{Op: "close", Path: s.path, Err: errors.Wrap(err, "close temp file")}
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		cleanup()
		return &IOError{Op: "chmod", Path: s.path, Err: errors.Wrap(err, "chmod temp file")}
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		cleanup()
		return &IOError{Op: "rename", Path: s.path, Err: errors.Wrap(err, "replace credentials file")}
	}

	log.Debug().Str("file", s.path).Int("users", len(cfg.Credentials.Usernames)).Msg("saved credentials file")
	return nil
}

// Marshal encodes cfg the way Save writes it.
func Marshal(cfg *Config) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
