package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"wayfarer/internal/domain"
	"wayfarer/internal/persistence"
)

func newMemConversationStore() *memConversationStore {
	return &memConversationStore{bySession: make(map[string][]domain.ConversationTurn)}
}

// memConversationStore is the in-memory ConversationStore used in tests and
// deployments without Postgres. Turns are kept per-session in insertion order.
type memConversationStore struct {
	mu        sync.RWMutex
	bySession map[string][]domain.ConversationTurn
}

func (s *memConversationStore) Init(ctx context.Context) error { return nil }

func (s *memConversationStore) AppendTurn(ctx context.Context, turn domain.ConversationTurn) error {
	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bySession[turn.SessionID] = append(s.bySession[turn.SessionID], turn)
	return nil
}

func (s *memConversationStore) RecentTurns(ctx context.Context, sessionID string, limit int) ([]domain.ConversationTurn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.bySession[sessionID]
	if limit <= 0 || limit >= len(all) {
		return cloneTurns(all), nil
	}
	return cloneTurns(all[len(all)-limit:]), nil
}

func (s *memConversationStore) AllTurns(ctx context.Context, sessionID string) ([]domain.ConversationTurn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneTurns(s.bySession[sessionID]), nil
}

func cloneTurns(in []domain.ConversationTurn) []domain.ConversationTurn {
	out := make([]domain.ConversationTurn, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

var _ persistence.ConversationStore = (*memConversationStore)(nil)
