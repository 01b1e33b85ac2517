// Package orchestrator composes every lower layer into the ten-step
// per-request procedure of spec.md §4.8. Grounded on
// internal/agentd/handlers_chat.go's per-request sequencing (validate →
// load → build → classify → run → persist → invalidate → metrics),
// generalized from an HTTP handler into a transport-agnostic
// Pipeline.Handle so an HTTP surface is a thin adapter over it.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"wayfarer/internal/concurrency"
	"wayfarer/internal/config"
	"wayfarer/internal/contextbuilder"
	"wayfarer/internal/domain"
	"wayfarer/internal/i18n"
	"wayfarer/internal/intent"
	"wayfarer/internal/memory"
	"wayfarer/internal/metrics"
	"wayfarer/internal/observability"
	"wayfarer/internal/persistence"
	"wayfarer/internal/reasonact"
	"wayfarer/internal/reqcontext"
	"wayfarer/internal/router"
	"wayfarer/internal/tools"
)

const systemPromptBase = "You are a multilingual travel-discovery assistant. Use the available tools to search places and build itineraries; never invent place names or hours that tools did not return."

// Pipeline wires every subsystem together behind one Handle call.
type Pipeline struct {
	cfg        config.Config
	validator  *reqcontext.Validator
	buffer     *memory.Buffer
	classifier *intent.Classifier
	router     *router.Router
	registry   tools.Registry
	providers  ProviderSet
	convos     persistence.ConversationStore
	recorder   *metrics.Recorder
	limiter    *concurrency.Limiter
}

// ProviderSet resolves a router-selected provider name to a concrete
// llmprovider.Provider-backed executor factory.
type ProviderSet map[string]reasonact.ExecutorFactory

func New(
	cfg config.Config,
	validator *reqcontext.Validator,
	buffer *memory.Buffer,
	classifier *intent.Classifier,
	modelRouter *router.Router,
	registry tools.Registry,
	providers ProviderSet,
	convos persistence.ConversationStore,
	recorder *metrics.Recorder,
) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		validator:  validator,
		buffer:     buffer,
		classifier: classifier,
		router:     modelRouter,
		registry:   registry,
		providers:  providers,
		convos:     convos,
		recorder:   recorder,
		limiter:    concurrency.New(cfg.Concurrency.MaxActiveModelCalls, cfg.Concurrency.MaxActiveToolCalls, cfg.Concurrency.MaxQueueDepth),
	}
}

// Handle runs the full ten-step pipeline for one request.
func (p *Pipeline) Handle(ctx context.Context, req domain.Request) (domain.Response, error) {
	requestID := uuid.NewString()
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Deadlines.PerRequest())
	defer cancel()

	log := observability.LoggerWithTrace(ctx)
	qm := metrics.Start(requestID, domain.IntentDecision{})

	// 2. Validate context.
	vc, err := p.validator.Validate(ctx, req)
	if err != nil {
		return p.fail(ctx, qm, vc.Language, err)
	}

	// 3. Load memory window.
	window, err := p.buffer.LoadWindow(ctx, vc.SessionID)
	if err != nil {
		wrapped := domain.NewError(domain.ErrMemoryUnavailable, "memory load failed", err)
		return p.fail(ctx, qm, vc.Language, wrapped)
	}

	turns, err := p.convos.AllTurns(ctx, vc.SessionID)
	if err != nil {
		log.Warn().Err(err).Msg("plan_state_turns_read_failed")
	}
	existingParams := contextbuilder.ExtractPlanState(turns)

	// 4. Build agent context.
	msgs, agentCtx := contextbuilder.Build(window, vc, systemPromptBase, req.Query, existingParams, p.cfg.Memory.MaxTokens)

	// 5. Classify intent, route model.
	decision, err := p.classifier.Classify(ctx, req.Query, vc.Language, window.SessionSummary)
	if err != nil {
		return p.fail(ctx, qm, vc.Language, domain.NewError(domain.ErrClassificationFailed, "classification failed", err))
	}
	qm.Intent = decision

	budgetMode := p.cfg.BudgetMode || vc.Preferences.BudgetMode
	preferredModel := vc.Preferences.PreferredModel
	if preferredModel == "" {
		preferredModel = p.cfg.PreferredModel
	}
	modelDecision, err := p.router.Route(decision.Intent, decision.Complexity, budgetMode, preferredModel)
	if err != nil {
		return p.fail(ctx, qm, vc.Language, domain.NewError(domain.ErrModelError, "no model available for intent", err))
	}

	// 6. Execute reason-act loop.
	factory, ok := p.providers[modelDecision.Provider]
	if !ok {
		return p.fail(ctx, qm, vc.Language, domain.NewError(domain.ErrModelError, fmt.Sprintf("no provider configured for %q", modelDecision.Provider), nil))
	}
	executor := factory(p.registry, p.cfg.MaxReasoningIterations, p.limiter)

	start := time.Now()
	result, err := executor.Run(ctx, msgs, modelDecision)
	processingTime := time.Since(start)
	if err != nil {
		return p.fail(ctx, qm, vc.Language, err)
	}

	places, itinerary := extractStructuredOutputs(result)
	response := domain.Response{
		ResponseText:     result.FinalText,
		Places:           places,
		Itinerary:        itinerary,
		Intention:        decision.Intent,
		Confidence:       decision.Confidence,
		Complexity:       decision.Complexity,
		ModelUsed:        modelDecision.Model,
		ProcessingTimeMS: processingTime.Milliseconds(),
		ToolCalls:        len(result.Trace),
		ReasoningSteps:   result.IterationsUsed,
	}

	// 7. Persist the conversation turn.
	turn := domain.ConversationTurn{
		ID:             uuid.NewString(),
		SessionID:      vc.SessionID,
		UserID:         vc.UserID,
		Query:          req.Query,
		Response:       result.FinalText,
		Intent:         decision.Intent,
		Model:          modelDecision.Model,
		InputTokens:    result.InputTokens,
		OutputTokens:   result.OutputTokens,
		ProcessingTime: processingTime,
		CreatedAt:      time.Now(),
		ExtraMetadata:  turnMetadata(agentCtx.PlanParams, places, itinerary),
	}
	turn.EstimatedCost = metrics.Finalize(qm, modelDecision, len(result.Trace), result.IterationsUsed, result.InputTokens, result.OutputTokens, true, "").EstimatedCostUSD
	response.EstimatedCostUSD = turn.EstimatedCost

	persistErr := p.convos.AppendTurn(ctx, turn)
	if persistErr != nil {
		log.Error().Err(persistErr).Str("session_id", vc.SessionID).Msg("persist_turn_failed")
	}

	// 8. Invalidate the session's cached memory window.
	if err := p.buffer.Invalidate(ctx, vc.SessionID); err != nil {
		log.Warn().Err(err).Str("session_id", vc.SessionID).Msg("memory_invalidate_failed")
	}

	// 9. Finalize metrics.
	errKind := domain.ErrorKind("")
	if persistErr != nil {
		errKind = domain.ErrPersistenceFailed
	}
	qm = metrics.Finalize(qm, modelDecision, len(result.Trace), result.IterationsUsed, result.InputTokens, result.OutputTokens, persistErr == nil, errKind)
	p.recorder.Submit(ctx, qm)

	// 10. Return to the caller.
	return response, nil
}

func (p *Pipeline) fail(ctx context.Context, qm domain.QueryMetrics, language string, err error) (domain.Response, error) {
	kind := domain.KindOf(err)
	qm = metrics.Finalize(qm, domain.ModelDecision{}, 0, 0, 0, 0, false, kind)
	p.recorder.Submit(ctx, qm)

	payload := i18n.Localize(err, language)
	return domain.Response{ResponseText: payload.Message, Intention: domain.IntentChitchat}, err
}

func turnMetadata(params domain.PlanParams, places []domain.Place, itinerary *domain.Itinerary) map[string]any {
	meta := map[string]any{contextbuilder.PlanParamsMetadataKey: contextbuilder.PlanParamsToMetadata(params)}
	if len(places) > 0 {
		placeList := make([]any, 0, len(places))
		for _, pl := range places {
			placeList = append(placeList, map[string]any{"id": pl.ID, "name": pl.Name})
		}
		meta["places"] = placeList
	}
	if itinerary != nil {
		meta["itinerary"] = itinerary
	}
	return meta
}

// extractStructuredOutputs pulls any places/itinerary payloads surfaced in
// the reason-act trace's tool observations into response-level fields. Each
// observation is re-marshaled and decoded straight into the domain type the
// tool produced, so every field the tool populated (steps, distances, cost,
// opening hours, ...) survives into the response instead of a hand-picked
// subset of keys.
func extractStructuredOutputs(result reasonact.Result) ([]domain.Place, *domain.Itinerary) {
	var places []domain.Place
	var itinerary *domain.Itinerary

	for _, record := range result.Trace {
		if record.Observation == nil {
			continue
		}
		switch record.Name {
		case "search_places":
			if raw, ok := record.Observation["places"]; ok {
				places = append(places, decodePlaces(raw)...)
			}
		case "create_itinerary":
			if it := decodeItinerary(record.Observation); it != nil {
				itinerary = it
			}
		}
	}
	return places, itinerary
}

func decodePlaces(raw any) []domain.Place {
	b, err := json.Marshal(raw)
	if err != nil {
		return nil
	}
	var out []domain.Place
	if err := json.Unmarshal(b, &out); err != nil {
		return nil
	}
	return out
}

func decodeItinerary(m map[string]any) *domain.Itinerary {
	b, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	var it domain.Itinerary
	if err := json.Unmarshal(b, &it); err != nil {
		return nil
	}
	if it.Title == "" {
		return nil
	}
	return &it
}
