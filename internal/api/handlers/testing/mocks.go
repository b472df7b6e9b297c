// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package testing

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/autobrr/quizzer/internal/quiz"
	"github.com/autobrr/quizzer/internal/services/cache"
)

// MockCache is a cache.Store driven by testify expectations.
type MockCache struct {
	mock.Mock
}

var _ cache.Store = (*MockCache)(nil)

func (m *MockCache) Get(ctx context.Context, key string, value interface{}) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *MockCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	args := m.Called(ctx, key, value, expiration)
	return args.Error(0)
}

func (m *MockCache) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockCache) Take(ctx context.Context, key string, value interface{}) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *MockCache) RecordHit(ctx context.Context, key string, at time.Time, window time.Duration) (int64, error) {
	args := m.Called(ctx, key, at, window)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCache) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockGenerator stands in for the quiz generator.
type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, req quiz.Request) (*quiz.Result, error) {
	args := m.Called(ctx, req)
	if r, ok := args.Get(0).(*quiz.Result); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockGenerator) Available() bool {
	args := m.Called()
	return args.Bool(0)
}
