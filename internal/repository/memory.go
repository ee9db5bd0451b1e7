package repository

import (
	"context"
	"sync"

	"line-memo-relay/internal/domain"
)

// MemoryStore is an in-process RecordStore and ModeStore. State is lost on
// restart; it backs local runs and tests.
type MemoryStore struct {
	mu    sync.Mutex
	lists map[string][]string
	modes map[string]domain.UserMode
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		lists: map[string][]string{},
		modes: map[string]domain.UserMode{},
	}
}

func listKey(userID string, kind domain.ListKind) string {
	return userID + "_" + string(kind)
}

func (s *MemoryStore) Append(_ context.Context, userID string, kind domain.ListKind, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := listKey(userID, kind)
	s.lists[k] = append(s.lists[k], text)
	return nil
}

func (s *MemoryStore) List(_ context.Context, userID string, kind domain.ListKind) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lists[listKey(userID, kind)]...), nil
}

func (s *MemoryStore) DeleteAt(_ context.Context, userID string, kind domain.ListKind, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := listKey(userID, kind)
	entries := s.lists[k]
	if index < 1 || index > len(entries) {
		return domain.ErrIndexOutOfRange
	}
	s.lists[k] = append(entries[:index-1:index-1], entries[index:]...)
	return nil
}

func (s *MemoryStore) GetMode(_ context.Context, userID string) (domain.UserMode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.modes[userID], nil
}

func (s *MemoryStore) SetMode(_ context.Context, userID string, mode domain.UserMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if mode == domain.ModeIdle {
		delete(s.modes, userID)
		return nil
	}
	s.modes[userID] = mode
	return nil
}

func (s *MemoryStore) ClearMode(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.modes, userID)
	return nil
}
