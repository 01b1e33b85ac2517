// Package router picks a model descriptor for a classified request. Route
// is a pure function over the config.ModelCatalog: it never hard-codes a
// provider name, only the router labels ("small_fast", "mid_tier",
// "top_tier", "cheap_conversational") resolved from configuration.
// Grounded on internal/llm/providers/factory.go's label-to-constructor
// resolution style.
package router

import (
	"fmt"

	"wayfarer/internal/config"
	"wayfarer/internal/domain"
)

const (
	labelSmallFast           = "small_fast"
	labelMidTier             = "mid_tier"
	labelTopTier             = "top_tier"
	labelCheapConversational = "cheap_conversational"
)

// Router resolves router labels against a loaded model catalog.
type Router struct {
	catalog config.ModelCatalog
}

func New(catalog config.ModelCatalog) *Router {
	return &Router{catalog: catalog}
}

// Route implements the routing table of spec.md §4.5. preferredModel, when
// non-empty, overrides the label-based pick if a catalog entry names that
// exact model and the intent isn't CHITCHAT — spec.md §6's "overrides
// router when set and compatible with intent", where "compatible" means a
// configured descriptor actually serves that model; chitchat always stays
// on the cheap conversational path regardless of preference, since it's
// never worth the cost of a user's preferred heavier model.
func (r *Router) Route(intent domain.Intent, complexity domain.Complexity, budgetMode bool, preferredModel string) (domain.ModelDecision, error) {
	if preferredModel != "" && intent != domain.IntentChitchat {
		if desc, ok := r.byModel(preferredModel); ok {
			return toDecision(desc), nil
		}
	}

	label := label(intent, complexity, budgetMode)
	desc, ok := r.catalog[label]
	if !ok {
		return domain.ModelDecision{}, fmt.Errorf("router: no model descriptor for label %q", label)
	}
	return toDecision(desc), nil
}

func (r *Router) byModel(model string) (config.ModelDescriptor, bool) {
	for _, desc := range r.catalog {
		if desc.Model == model {
			return desc, true
		}
	}
	return config.ModelDescriptor{}, false
}

func toDecision(desc config.ModelDescriptor) domain.ModelDecision {
	return domain.ModelDecision{
		Provider:        desc.Provider,
		Model:           desc.Model,
		MaxTokens:       desc.MaxTokens,
		Temperature:     desc.Temperature,
		InputCostPer1K:  desc.InputCostPer1K,
		OutputCostPer1K: desc.OutputCostPer1K,
	}
}

func label(intent domain.Intent, complexity domain.Complexity, budgetMode bool) string {
	if intent == domain.IntentChitchat {
		return labelCheapConversational
	}
	if budgetMode {
		return labelSmallFast
	}

	switch intent {
	case domain.IntentSearch:
		if complexity == domain.ComplexityHigh {
			return labelMidTier
		}
		return labelSmallFast
	case domain.IntentRecommend:
		if complexity == domain.ComplexityLow {
			return labelSmallFast
		}
		return labelMidTier
	case domain.IntentPlan:
		if complexity == domain.ComplexityHigh {
			return labelTopTier
		}
		return labelMidTier
	default:
		return labelCheapConversational
	}
}
