// Package intent classifies a user query into the fixed
// {SEARCH,RECOMMEND,PLAN,CHITCHAT} taxonomy with a confidence and a
// complexity rubric. Grounded on internal/llm/compaction.go's single-call
// structured-output pattern and the teacher's content-hashing cache-key
// idiom from internal/rag/retrieve.
package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"wayfarer/internal/cache"
	"wayfarer/internal/domain"
	"wayfarer/internal/llmprovider"
	"wayfarer/internal/observability"
)

const classifyPrompt = `Classify the user's travel-assistant query into exactly one intent:
SEARCH (looking for specific places), RECOMMEND (wants suggestions/filtered recommendations),
PLAN (multi-stop itinerary, temporal constraints, or group coordination), or CHITCHAT (small talk,
no place-discovery intent). Reply with a single JSON object and nothing else:
{"intent": "SEARCH|RECOMMEND|PLAN|CHITCHAT", "confidence": 0.0-1.0, "complexity": "low|medium|high", "reasoning": "short reason"}`

// Classifier wraps a small fast model behind the fixed intent taxonomy.
type Classifier struct {
	model   llmprovider.Provider
	modelID string
	cache   cache.Cache
	ttl     time.Duration
}

func New(model llmprovider.Provider, modelID string, c cache.Cache, ttl time.Duration) *Classifier {
	return &Classifier{model: model, modelID: modelID, cache: c, ttl: ttl}
}

type rawDecision struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Complexity string  `json:"complexity"`
	Reasoning  string  `json:"reasoning"`
}

// Classify produces an IntentDecision for query, consulting the cache first.
// Model errors degrade softly: CHITCHAT/low/confidence 0, error only logged.
func (c *Classifier) Classify(ctx context.Context, query, language, summary string) (domain.IntentDecision, error) {
	key := cache.IntentKey(normalize(query) + "|" + language + "|" + coarseSummary(summary))

	if c.cache != nil {
		var cached domain.IntentDecision
		if ok, err := c.cache.Get(ctx, key, &cached); err == nil && ok {
			return cached, nil
		}
	}

	log := observability.LoggerWithTrace(ctx)
	decision, err := c.classifyViaModel(ctx, query, language, summary)
	if err != nil {
		log.Warn().Err(err).Msg("intent_classify_soft_failure")
		return domain.IntentDecision{Intent: domain.IntentChitchat, Complexity: domain.ComplexityLow, Confidence: 0, Reasoning: "classification failed: " + err.Error()}, nil
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, decision, c.ttl); err != nil {
			log.Warn().Err(err).Msg("intent_cache_set_failed")
		}
	}
	return decision, nil
}

func (c *Classifier) classifyViaModel(ctx context.Context, query, language, summary string) (domain.IntentDecision, error) {
	userMsg := fmt.Sprintf("Language: %s\nConversation summary: %s\nQuery: %s", language, summary, query)
	resp, err := c.model.Chat(ctx, []llmprovider.Message{
		{Role: "system", Content: classifyPrompt},
		{Role: "user", Content: userMsg},
	}, nil, c.modelID, 256, 0.0)
	if err != nil {
		return domain.IntentDecision{}, err
	}

	var raw rawDecision
	if err := json.Unmarshal([]byte(extractJSON(resp.Content)), &raw); err != nil {
		return domain.IntentDecision{}, fmt.Errorf("parse intent decision: %w", err)
	}

	decision := domain.IntentDecision{
		Intent:     normalizeIntent(raw.Intent),
		Confidence: raw.Confidence,
		Complexity: normalizeComplexity(raw.Complexity),
		Reasoning:  raw.Reasoning,
	}
	if decision.Confidence < 0.5 {
		decision.Intent = domain.IntentChitchat
		decision.Complexity = domain.ComplexityLow
	}
	return decision, nil
}

func normalizeIntent(s string) domain.Intent {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(domain.IntentSearch):
		return domain.IntentSearch
	case string(domain.IntentRecommend):
		return domain.IntentRecommend
	case string(domain.IntentPlan):
		return domain.IntentPlan
	default:
		return domain.IntentChitchat
	}
}

func normalizeComplexity(s string) domain.Complexity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(domain.ComplexityMedium):
		return domain.ComplexityMedium
	case string(domain.ComplexityHigh):
		return domain.ComplexityHigh
	default:
		return domain.ComplexityLow
	}
}

func normalize(query string) string {
	return strings.ToLower(strings.Join(strings.Fields(query), " "))
}

// coarseSummary reduces a free-form summary to a stable cache-bucketing
// token: its first eight words, lowercased. Text past the eighth word (such
// as the place names in the memory buffer's summary) does not split the
// cache; the leading turn and intent counts do.
func coarseSummary(summary string) string {
	if summary == "" {
		return "none"
	}
	words := strings.Fields(summary)
	if len(words) > 8 {
		words = words[:8]
	}
	return strings.ToLower(strings.Join(words, "-"))
}

// extractJSON trims leading/trailing text around a JSON object, tolerating
// models that wrap output in prose or code fences despite instructions.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end < start {
		return s
	}
	return s[start : end+1]
}
