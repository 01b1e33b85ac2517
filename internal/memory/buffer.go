// Package memory implements the conversation memory buffer: it turns a
// session's durable turn history into a bounded, token-budgeted
// MemoryWindow, with a short-TTL cache shadow in front of the durable read.
// Grounded on internal/agent/memory/manager.go's reserve-buffer/token-budget
// approach, generalized from "compact an LLM chat transcript for resend"
// to "derive a deterministic session summary plus recent window from
// persisted ConversationTurn rows" — summaries here are never produced by a
// model call, only by folding turn fields, since spec.md's summary must not
// fabricate content beyond what is persisted.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"wayfarer/internal/cache"
	"wayfarer/internal/config"
	"wayfarer/internal/domain"
	"wayfarer/internal/observability"
	"wayfarer/internal/persistence"
)

// Buffer loads MemoryWindow values for a session, consulting the cache
// before the durable store and writing back after construction.
type Buffer struct {
	convos persistence.ConversationStore
	cache  cache.Cache
	cfg    config.MemoryConfig
}

func New(convos persistence.ConversationStore, c cache.Cache, cfg config.MemoryConfig) *Buffer {
	return &Buffer{convos: convos, cache: c, cfg: cfg}
}

// LoadWindow implements spec.md §4.2 steps 1-6.
func (b *Buffer) LoadWindow(ctx context.Context, sessionID string) (domain.MemoryWindow, error) {
	log := observability.LoggerWithTrace(ctx)

	// 1. cache lookup
	var cached domain.MemoryWindow
	if hit, err := b.cache.Get(ctx, cache.MemoryKey(sessionID), &cached); err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("memory_cache_read_failed")
	} else if hit {
		return cached, nil
	}

	// 2. durable read
	turns, err := b.convos.RecentTurns(ctx, sessionID, b.cfg.MaxLongTermTurns)
	if err != nil {
		return domain.MemoryWindow{}, domain.NewError(domain.ErrMemoryUnavailable, "loading conversation history", err)
	}

	// 3. window construction
	shortTermStart := len(turns) - b.cfg.MaxShortTermTurns
	if shortTermStart < 0 {
		shortTermStart = 0
	}
	older := turns[:shortTermStart]
	recentTurns := turns[shortTermStart:]

	summary := summarizeTurns(older)
	recent := turnsToMessages(recentTurns, shortTermStart)

	// 4. previous places extraction
	places := extractPlaces(turns)

	window := domain.MemoryWindow{
		Recent:         recent,
		PreviousPlaces: places,
		SessionSummary: summary,
		TotalTurns:     len(turns),
	}

	// 5. token estimation + compression
	window.EstimatedTokens = estimateTokens(window.SessionSummary, window.Recent)
	threshold := b.cfg.CompressionThreshold
	if threshold <= 0 {
		threshold = 0.8
	}
	if float64(window.EstimatedTokens) >= threshold*float64(b.cfg.MaxTokens) {
		window = compress(window, b.cfg.MaxTokens)
	}

	// 6. cache store
	ttl := b.cfg.CacheTTL()
	if err := b.cache.Set(ctx, cache.MemoryKey(sessionID), window, ttl); err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("memory_cache_write_failed")
	}

	return window, nil
}

// Invalidate drops the cached window for sessionID; the orchestrator calls
// this after every successful turn append (spec.md §4.2 cache coherence).
func (b *Buffer) Invalidate(ctx context.Context, sessionID string) error {
	if err := b.cache.DeletePattern(ctx, cache.MemoryPattern(sessionID)); err != nil {
		observability.LoggerWithTrace(ctx).Warn().Err(err).Str("session_id", sessionID).Msg("memory_cache_invalidate_failed")
		return nil
	}
	return nil
}

func turnsToMessages(turns []domain.ConversationTurn, turnIndexOffset int) []domain.Message {
	msgs := make([]domain.Message, 0, len(turns)*2)
	for i, t := range turns {
		idx := turnIndexOffset + i
		msgs = append(msgs, domain.Message{Role: "user", Text: t.Query, TurnIndex: idx})
		msgs = append(msgs, domain.Message{Role: "assistant", Text: t.Response, TurnIndex: idx})
	}
	return msgs
}

// summarizeTurns folds older turns into a single deterministic string: total
// count, most-frequent intents, representative place names. Never invents
// content beyond what the turns themselves carry.
func summarizeTurns(turns []domain.ConversationTurn) string {
	if len(turns) == 0 {
		return ""
	}
	counts := make(map[domain.Intent]int)
	for _, t := range turns {
		counts[t.Intent]++
	}
	topIntent, topCount := domain.Intent(""), 0
	for intent, c := range counts {
		if c > topCount || (c == topCount && intent < topIntent) {
			topIntent, topCount = intent, c
		}
	}

	places := extractPlaces(turns)
	names := make([]string, 0, 3)
	for i, p := range places {
		if i >= 3 {
			break
		}
		names = append(names, p.Place.Name)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d earlier turns", len(turns))
	if topIntent != "" {
		fmt.Fprintf(&b, ", mostly %s (%d)", topIntent, topCount)
	}
	if len(names) > 0 {
		fmt.Fprintf(&b, "; places discussed: %s", strings.Join(names, ", "))
	}
	return b.String()
}

// extractPlaces scans turn metadata for a "places" list and returns the
// deduplicated, most-recent-first set, each tagged with its originating
// turn index.
func extractPlaces(turns []domain.ConversationTurn) []domain.PlaceRef {
	seen := make(map[string]bool)
	var out []domain.PlaceRef
	for i := len(turns) - 1; i >= 0; i-- {
		t := turns[i]
		raw, ok := t.ExtraMetadata["places"]
		if !ok {
			continue
		}
		list, ok := raw.([]any)
		if !ok {
			continue
		}
		for _, item := range list {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			id, _ := m["id"].(string)
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			name, _ := m["name"].(string)
			out = append(out, domain.PlaceRef{
				Place:     domain.Place{ID: id, Name: name},
				TurnIndex: i,
			})
		}
	}
	return out
}

func estimateTokens(summary string, recent []domain.Message) int {
	chars := len(summary)
	for _, m := range recent {
		chars += len(m.Text)
	}
	return (chars + 3) / 4
}

// compress drops the oldest recent messages until the estimate fits within
// 0.9*maxTokens or no recent message is left, and appends the number of
// dropped messages to the session summary; the dropped text itself is not
// carried into the summary.
func compress(window domain.MemoryWindow, maxTokens int) domain.MemoryWindow {
	target := int(0.9 * float64(maxTokens))
	recent := append([]domain.Message(nil), window.Recent...)
	sort.SliceStable(recent, func(i, j int) bool { return recent[i].TurnIndex < recent[j].TurnIndex })

	folded := 0
	for len(recent) > 0 && estimateTokens(window.SessionSummary, recent) > target {
		dropped := recent[0]
		recent = recent[1:]
		folded++
		_ = dropped
	}
	if folded > 0 {
		window.SessionSummary = strings.TrimSpace(window.SessionSummary + fmt.Sprintf(" (%d additional earlier messages compressed)", folded))
	}
	window.Recent = recent
	window.EstimatedTokens = estimateTokens(window.SessionSummary, window.Recent)
	return window
}
