package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wayfarer/internal/domain"
)

func TestMemConversationStore_AppendAndRecent(t *testing.T) {
	s := newMemConversationStore()
	ctx := context.Background()

	base := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, s.AppendTurn(ctx, domain.ConversationTurn{
			SessionID: "sess-1",
			Query:     "q",
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	recent, err := s.RecentTurns(ctx, "sess-1", 3)
	require.NoError(t, err)
	assert.Len(t, recent, 3)
	assert.True(t, recent[0].CreatedAt.Before(recent[2].CreatedAt))

	all, err := s.AllTurns(ctx, "sess-1")
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestMemConversationStore_UnknownSessionEmpty(t *testing.T) {
	s := newMemConversationStore()
	turns, err := s.RecentTurns(context.Background(), "nope", 10)
	require.NoError(t, err)
	assert.Empty(t, turns)
}
