package service

import (
	"context"
	"sync"
)

// SessionStore persists each user's conversation between messages.
// Load returns (nil, nil) when the user has no stored conversation.
type SessionStore interface {
	Load(ctx context.Context, userID int64) (*Conversation, error)
	Save(ctx context.Context, userID int64, conv *Conversation) error
	Delete(ctx context.Context, userID int64) error
}

// MemorySessionStore keeps conversations in process memory; they are lost on restart.
type MemorySessionStore struct {
	mu            sync.Mutex
	conversations map[int64]*Conversation
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{conversations: make(map[int64]*Conversation)}
}

func (s *MemorySessionStore) Load(_ context.Context, userID int64) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[userID]
	if !ok {
		return nil, nil
	}
	return conv.Clone(), nil
}

func (s *MemorySessionStore) Save(_ context.Context, userID int64, conv *Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[userID] = conv.Clone()
	return nil
}

func (s *MemorySessionStore) Delete(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conversations, userID)
	return nil
}

// Len returns the number of stored conversations.
func (s *MemorySessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conversations)
}
