// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package quiz

import "errors"

type Kind string

const (
	KindInvalidRequest Kind = "invalid_request"
	KindMissingAPIKey  Kind = "missing_api_key"
	KindTimeout        Kind = "timeout"
	KindCanceled       Kind = "canceled"
	KindBusy           Kind = "busy"
	KindModel          Kind = "model"
	KindEmptyResponse  Kind = "empty_response"
)

// ErrMissingAPIKey is returned by a ModelFactory when no API key is set.
var ErrMissingAPIKey = errors.New("quiz: generation API key is not set")

// GenerationError is the failure branch of Generate. Message is safe to show
// to the user.
type GenerationError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return string(e.Kind) + ": " + e.Message + ": " + e.Err.Error()
	}
	return string(e.Kind) + ": " + e.Message
}

func (e *GenerationError) Unwrap() error { return e.Err }

// KindOf returns the kind of a GenerationError, or "" for other errors.
func KindOf(err error) Kind {
	var genErr *GenerationError
	if errors.As(err, &genErr) {
		return genErr.Kind
	}
	return ""
}
