package contextbuilder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wayfarer/internal/domain"
)

func TestBuild_ProducesSystemMessageWithPlacesAndSummary(t *testing.T) {
	window := domain.MemoryWindow{
		SessionSummary: "2 earlier turns, mostly SEARCH (2)",
		PreviousPlaces: []domain.PlaceRef{{Place: domain.Place{ID: "p1", Name: "Bar Uno"}, TurnIndex: 0}},
		TotalTurns:     2,
	}
	vc := domain.ValidatedContext{UserID: "u1", SessionID: "s1", Language: "es"}

	msgs, agentCtx := Build(window, vc, "You are a travel assistant.", "¿qué más hay cerca?", domain.PlanParams{}, 4000)

	require.NotEmpty(t, msgs)
	assert.Equal(t, "system", msgs[0].Role)
	assert.Contains(t, msgs[0].Text, "User language: es.")
	assert.Contains(t, msgs[0].Text, "#1: Bar Uno")
	assert.Equal(t, "user", msgs[len(msgs)-1].Role)
	assert.Equal(t, "¿qué más hay cerca?", msgs[len(msgs)-1].Text)
	assert.Greater(t, agentCtx.EstimatedTokens, 0)
	assert.Equal(t, 4000-agentCtx.EstimatedTokens, agentCtx.TokensRemaining)
}

func TestTokensRemaining_NeverNegative(t *testing.T) {
	assert.Equal(t, 0, TokensRemaining(500, 100))
	assert.Equal(t, 50, TokensRemaining(50, 100))
}
