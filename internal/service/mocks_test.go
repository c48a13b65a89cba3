package service

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/medical-scribe-server/internal/domain"
)

// MockLLMClient is a mock implementation of domain.LLMClient
type MockLLMClient struct {
	mock.Mock
}

func (m *MockLLMClient) Complete(ctx context.Context, req domain.CompletionRequest) (*domain.CompletionResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CompletionResponse), args.Error(1)
}

func (m *MockLLMClient) CompleteStream(ctx context.Context, req domain.CompletionRequest, onDelta func(string) error) (*domain.CompletionResponse, error) {
	args := m.Called(ctx, req, onDelta)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CompletionResponse), args.Error(1)
}

// MockNoteCache is a mock implementation of domain.NoteCache
type MockNoteCache struct {
	mock.Mock
}

func (m *MockNoteCache) Get(ctx context.Context, key string) (*domain.ClinicalNote, bool, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*domain.ClinicalNote), args.Bool(1), args.Error(2)
}

func (m *MockNoteCache) Set(ctx context.Context, key string, note *domain.ClinicalNote) error {
	args := m.Called(ctx, key, note)
	return args.Error(0)
}
