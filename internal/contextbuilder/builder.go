// Package contextbuilder is the pure transformer from a MemoryWindow and a
// ValidatedContext into the model-facing message sequence and the agent
// context record. Message-sequence shaping is grounded on
// internal/agent/messages.go's BuildInitialLLMMessages, generalized to
// splice in a session summary and an enumerated previous-places list ahead
// of the live turn.
package contextbuilder

import (
	"fmt"
	"strings"

	"wayfarer/internal/domain"
)

// Build returns the model-facing message sequence and the agent context
// record for a single turn.
func Build(window domain.MemoryWindow, vc domain.ValidatedContext, systemBase string, currentQuery string, existingParams domain.PlanParams, maxTokens int) ([]domain.Message, domain.AgentContext) {
	system := buildSystemPrompt(systemBase, vc, window)

	msgs := make([]domain.Message, 0, len(window.Recent)+2)
	msgs = append(msgs, domain.Message{Role: "system", Text: system})
	msgs = append(msgs, window.Recent...)
	msgs = append(msgs, domain.Message{Role: "user", Text: currentQuery, TurnIndex: window.TotalTurns})

	estimated := estimateTokens(msgs)
	params := ExtractPlanParams(currentQuery, vc.Language)
	merged := Merge(existingParams, params)

	agentCtx := domain.AgentContext{
		Window:          window,
		Messages:        msgs,
		EstimatedTokens: estimated,
		TokensRemaining: TokensRemaining(estimated, maxTokens),
		PlanParams:      merged,
	}
	return msgs, agentCtx
}

// TokensRemaining computes the remaining budget given a configured max; kept
// as a free function so callers that don't carry the budget on AgentContext
// (e.g. tests) can still derive it.
func TokensRemaining(estimated, maxTokens int) int {
	remaining := maxTokens - estimated
	if remaining < 0 {
		return 0
	}
	return remaining
}

func buildSystemPrompt(base string, vc domain.ValidatedContext, window domain.MemoryWindow) string {
	var b strings.Builder
	if base != "" {
		b.WriteString(base)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "User language: %s.\n", vc.Language)
	if window.SessionSummary != "" {
		b.WriteString("Conversation so far: ")
		b.WriteString(window.SessionSummary)
		b.WriteString("\n")
	}
	if len(window.PreviousPlaces) > 0 {
		b.WriteString("Previously surfaced places:\n")
		for i, p := range window.PreviousPlaces {
			fmt.Fprintf(&b, "#%d: %s\n", i+1, p.Place.Name)
		}
	}
	return strings.TrimSpace(b.String())
}

func estimateTokens(msgs []domain.Message) int {
	chars := 0
	for _, m := range msgs {
		chars += len(m.Text)
	}
	return (chars + 3) / 4
}
