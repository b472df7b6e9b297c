// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package quiz

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"golang.org/x/sync/semaphore"

	"github.com/autobrr/quizzer/internal/config"
	"github.com/autobrr/quizzer/internal/services/resilience"
)

// Consecutive model failures before generation is paused, and for how long.
const (
	breakerFailures     = 5
	breakerResetTimeout = 30 * time.Second
)

// ModelFactory builds the model on first use.
type ModelFactory func(ctx context.Context) (llms.Model, error)

// GoogleAIFactory builds a Gemini model, reading the API key from the
// configured environment variable when first called.
func GoogleAIFactory(cfg config.GeneratorConfig) ModelFactory {
	return func(ctx context.Context) (llms.Model, error) {
		key := strings.TrimSpace(os.Getenv(cfg.APIKeyEnv))
		if key == "" {
			return nil, fmt.Errorf("%w: %s", ErrMissingAPIKey, cfg.APIKeyEnv)
		}

		model, err := googleai.New(ctx,
			googleai.WithAPIKey(key),
			googleai.WithDefaultModel(cfg.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create googleai client: %w", err)
		}
		return model, nil
	}
}

// Generator turns quiz requests into model calls. At most MaxConcurrent calls
// run at once; each one is bounded by the configured timeout.
type Generator struct {
	factory     ModelFactory
	timeout     time.Duration
	temperature float64
	modelName   string
	sem         *semaphore.Weighted
	breaker     *resilience.CircuitBreaker

	mu    sync.Mutex
	model llms.Model
}

func NewGenerator(cfg config.GeneratorConfig, factory ModelFactory) *Generator {
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = config.DefaultMaxConcurrent
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = config.DefaultTimeoutSeconds * time.Second
	}

	return &Generator{
		factory:     factory,
		timeout:     timeout,
		temperature: cfg.SamplingTemperature(),
		modelName:   cfg.Model,
		sem:         semaphore.NewWeighted(int64(maxConcurrent)),
		breaker:     resilience.NewCircuitBreaker(breakerFailures, breakerResetTimeout),
	}
}

func (g *Generator) getModel(ctx context.Context) (llms.Model, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.model != nil {
		return g.model, nil
	}

	// the client outlives the request that happened to create it
	model, err := g.factory(context.WithoutCancel(ctx))
	if err != nil {
		return nil, err
	}
	g.model = model
	return model, nil
}

// Available reports whether model calls are currently let through. It is
// false while generation is paused after repeated model failures.
func (g *Generator) Available() bool {
	return !g.breaker.IsOpen()
}

// Generate asks the model for a quiz. Every failure is returned as a
// *GenerationError.
func (g *Generator) Generate(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if err := g.sem.Acquire(callCtx, 1); err != nil {
		if ctx.Err() != nil {
			return nil, &GenerationError{Kind: KindCanceled, Message: "The request was canceled.", Err: ctx.Err()}
		}
		log.Warn().Int("count", req.Count).Msg("quiz generation queue is full")
		return nil, &GenerationError{Kind: KindBusy, Message: "Too many quizzes are being generated right now, please try again shortly.", Err: err}
	}
	defer g.sem.Release(1)

	if !g.breaker.Allow() {
		log.Warn().Msg("quiz generation paused after repeated model failures")
		return nil, &GenerationError{Kind: KindModel, Message: "Quiz generation is unavailable right now, please try again later."}
	}

	model, err := g.getModel(callCtx)
	if err != nil {
		g.breaker.Abandon()
		if errors.Is(err, ErrMissingAPIKey) {
			log.Error().Err(err).Msg("quiz generation is not configured")
			return nil, &GenerationError{Kind: KindMissingAPIKey, Message: "Quiz generation is not configured: the API key is missing.", Err: err}
		}
		log.Error().Err(err).Msg("failed to initialise generation model")
		return nil, &GenerationError{Kind: KindModel, Message: "Quiz generation is unavailable right now.", Err: err}
	}

	start := time.Now()
	log.Debug().Str("model", g.modelName).Int("count", req.Count).Msg("calling model for quiz generation")

	completion, err := llms.GenerateFromSinglePrompt(callCtx, model, BuildPrompt(req), llms.WithTemperature(g.temperature))
	if err != nil {
		switch {
		case ctx.Err() != nil:
			g.breaker.Abandon()
			return nil, &GenerationError{Kind: KindCanceled, Message: "The request was canceled.", Err: ctx.Err()}
		case errors.Is(callCtx.Err(), context.DeadlineExceeded):
			g.breaker.RecordFailure()
			log.Warn().Dur("timeout", g.timeout).Msg("quiz generation timed out")
			return nil, &GenerationError{Kind: KindTimeout, Message: "The quiz took too long to generate, please try again.", Err: err}
		default:
			g.breaker.RecordFailure()
			log.Error().Err(err).Msg("failed to generate quiz")
			return nil, &GenerationError{Kind: KindModel, Message: "The quiz could not be generated.", Err: err}
		}
	}

	g.breaker.RecordSuccess()

	// the completion is shown as returned, whitespace included
	if strings.TrimSpace(completion) == "" {
		return nil, &GenerationError{Kind: KindEmptyResponse, Message: "The model returned an empty quiz, please try again."}
	}

	result := &Result{Text: completion, Blocks: CountQuestionBlocks(completion), Requested: req.Count}
	log.Info().
		Int("requested", req.Count).
		Int("blocks", result.Blocks).
		Dur("took", time.Since(start)).
		Msg("generated quiz")

	return result, nil
}
