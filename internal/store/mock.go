package store

import (
	"context"

	"github.com/craftmall/communication/internal/types"
	"github.com/stretchr/testify/mock"
)

type MockMessageStore struct {
	mock.Mock
}

func (m *MockMessageStore) Save(ctx context.Context, msg types.ChatMessage) types.ChatMessage {
	args := m.Called(ctx, msg)
	return args.Get(0).(types.ChatMessage)
}

func (m *MockMessageStore) History(ctx context.Context, user string) []types.ChatMessage {
	args := m.Called(ctx, user)
	if history, ok := args.Get(0).([]types.ChatMessage); ok {
		return history
	}
	return nil
}

func (m *MockMessageStore) AllUsers(ctx context.Context) []string {
	args := m.Called(ctx)
	if users, ok := args.Get(0).([]string); ok {
		return users
	}
	return nil
}

func (m *MockMessageStore) LastMessage(ctx context.Context, user string) *types.ChatMessage {
	args := m.Called(ctx, user)
	if msg, ok := args.Get(0).(*types.ChatMessage); ok {
		return msg
	}
	return nil
}

func (m *MockMessageStore) Clear(user string) int {
	args := m.Called(user)
	return args.Int(0)
}
