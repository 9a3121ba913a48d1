package store

import (
	"context"
	"sort"
	"sync"

	"github.com/craftmall/communication/internal/types"
	"go.uber.org/zap"
)

// MessageStore is the persistence facade used by the session gateway. None of
// its methods fail: the in-process buffer is the guaranteed fallback, so a
// dead backend degrades durability, never availability.
type MessageStore interface {
	Save(ctx context.Context, msg types.ChatMessage) types.ChatMessage
	History(ctx context.Context, user string) []types.ChatMessage
	AllUsers(ctx context.Context) []string
	LastMessage(ctx context.Context, user string) *types.ChatMessage
	Clear(user string) int
}

// backendAPI is the slice of BackendClient the facade depends on.
type backendAPI interface {
	SaveMessage(ctx context.Context, msg types.ChatMessage) error
	History(ctx context.Context, user string) ([]types.ChatMessage, error)
	Users(ctx context.Context) ([]string, error)
	LastMessage(ctx context.Context, user string) (*types.ChatMessage, error)
}

// FallbackStore writes through to the backend and answers reads from it,
// falling back to an in-process buffer whenever the backend is unreachable
// or returns a non-success response.
type FallbackStore struct {
	log     *zap.SugaredLogger
	backend backendAPI

	mu     sync.Mutex
	buffer []types.ChatMessage
}

func NewFallbackStore(logger *zap.SugaredLogger, backend backendAPI) *FallbackStore {
	return &FallbackStore{
		log:     logger,
		backend: backend,
	}
}

// Save assigns a timestamp, appends the message to the buffer and attempts
// the backend write. A failed write is logged and swallowed.
func (s *FallbackStore) Save(ctx context.Context, msg types.ChatMessage) types.ChatMessage {
	if msg.Type == "" {
		msg.Type = types.MessageTypeChat
	}
	msg.Timestamp = types.Now()

	s.mu.Lock()
	s.buffer = append(s.buffer, msg)
	s.mu.Unlock()

	if err := s.backend.SaveMessage(ctx, msg); err != nil {
		s.log.Errorw("backend save failed, message buffered only", "sender", msg.Sender, "error", err)
	}

	return msg
}

// History returns the chronological message history for user, from the
// backend when possible and from the buffer otherwise.
func (s *FallbackStore) History(ctx context.Context, user string) []types.ChatMessage {
	history, err := s.backend.History(ctx, user)
	if err == nil {
		return history
	}
	s.log.Warnw("backend history failed, using buffer", "user", user, "error", err)

	return s.bufferedHistory(user)
}

func (s *FallbackStore) bufferedHistory(user string) []types.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	var history []types.ChatMessage
	for _, msg := range s.buffer {
		if msg.Involves(user) {
			history = append(history, msg)
		}
	}

	return history
}

// AllUsers returns the deduplicated set of users that have sent messages.
func (s *FallbackStore) AllUsers(ctx context.Context) []string {
	users, err := s.backend.Users(ctx)
	if err == nil {
		return users
	}
	s.log.Warnw("backend users failed, using buffer", "error", err)

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{})
	var result []string
	for _, msg := range s.buffer {
		if msg.Sender == "" {
			continue
		}
		if _, ok := seen[msg.Sender]; ok {
			continue
		}
		seen[msg.Sender] = struct{}{}
		result = append(result, msg.Sender)
	}
	sort.Strings(result)

	return result
}

// LastMessage returns the most recent message involving user, or nil.
func (s *FallbackStore) LastMessage(ctx context.Context, user string) *types.ChatMessage {
	msg, err := s.backend.LastMessage(ctx, user)
	if err == nil {
		return msg
	}
	s.log.Warnw("backend last message failed, using buffer", "user", user, "error", err)

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.buffer) - 1; i >= 0; i-- {
		if s.buffer[i].Involves(user) {
			msg := s.buffer[i]
			return &msg
		}
	}

	return nil
}

// Clear removes every buffered message involving user and reports how many
// were dropped. This is buffer-only maintenance: the durable store is never
// touched, so Clear is not a user-facing privacy deletion.
func (s *FallbackStore) Clear(user string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.buffer[:0]
	removed := 0
	for _, msg := range s.buffer {
		if msg.Involves(user) {
			removed++
			continue
		}
		kept = append(kept, msg)
	}
	s.buffer = kept

	return removed
}

// BufferLen reports the number of buffered messages.
func (s *FallbackStore) BufferLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.buffer)
}
