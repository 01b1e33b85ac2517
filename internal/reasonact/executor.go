// Package reasonact runs the bounded reason-act loop: invoke the routed
// model, dispatch at most one tool call per iteration, append the
// observation, and repeat until a final answer, iteration budget,
// deadline, or cancellation ends the run. Grounded on
// internal/agent/engine.go's runLoop, trimmed of tool parallelism
// (generalized down to width 1, since only one concurrent tool call is
// ever issued) and the streaming/ReMem augmentation paths this engine's
// bounded, single-call-per-iteration contract doesn't use.
package reasonact

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"wayfarer/internal/concurrency"
	"wayfarer/internal/domain"
	"wayfarer/internal/llmprovider"
	"wayfarer/internal/observability"
	"wayfarer/internal/tools"
)

// Result is the outcome of a bounded reason-act run.
type Result struct {
	FinalText      string
	Truncated      bool
	Trace          []domain.ToolCallRecord
	IterationsUsed int
	InputTokens    int
	OutputTokens   int
}

// Executor runs the loop against one provider/model pair and one tool
// registry. limiter may be nil, in which case model and tool calls are
// admitted unconditionally (used by tests that don't exercise backpressure).
type Executor struct {
	provider      llmprovider.Provider
	registry      tools.Registry
	maxIterations int
	limiter       *concurrency.Limiter
}

// ExecutorFactory binds a concrete model provider so the orchestrator can
// build an Executor from just a registry, an iteration budget, and a
// concurrency limiter, one per router-resolved provider name.
type ExecutorFactory func(registry tools.Registry, maxIterations int, limiter *concurrency.Limiter) *Executor

// Bind closes provider over New, producing the ExecutorFactory the
// orchestrator's provider set holds per provider name.
func Bind(provider llmprovider.Provider) ExecutorFactory {
	return func(registry tools.Registry, maxIterations int, limiter *concurrency.Limiter) *Executor {
		return New(provider, registry, maxIterations, limiter)
	}
}

func New(provider llmprovider.Provider, registry tools.Registry, maxIterations int, limiter *concurrency.Limiter) *Executor {
	if maxIterations <= 0 {
		maxIterations = 6
	}
	return &Executor{provider: provider, registry: registry, maxIterations: maxIterations, limiter: limiter}
}

// Run executes the loop. ctx carries both the deadline and cancellation
// signal; Run never starts a new model or tool call once ctx is done.
func (e *Executor) Run(ctx context.Context, msgs []domain.Message, decision domain.ModelDecision) (Result, error) {
	log := observability.LoggerWithTrace(ctx)
	providerMsgs := toProviderMessages(msgs)
	schemas := e.registry.Schemas()

	result := Result{}

	for step := 0; step < e.maxIterations; step++ {
		if err := ctx.Err(); err != nil {
			return terminal(result, err)
		}

		resp, err := e.chat(ctx, providerMsgs, schemas, decision)
		if err != nil {
			if kind := domain.KindOf(err); kind == domain.ErrOverloaded {
				return result, err
			}
			if err := ctx.Err(); err != nil {
				return terminal(result, err)
			}
			return result, domain.NewError(domain.ErrModelError, "model call failed", err)
		}

		result.InputTokens += resp.InputTokens
		result.OutputTokens += resp.OutputTokens
		result.IterationsUsed = step + 1

		assistantMsg := llmprovider.Message{Role: "assistant", Content: resp.Content, ToolCalls: resp.ToolCalls}
		providerMsgs = append(providerMsgs, assistantMsg)

		if len(resp.ToolCalls) == 0 {
			result.FinalText = resp.Content
			return result, nil
		}

		// Exactly one concurrent tool call per iteration: only the first
		// call the model emitted this step is dispatched.
		if err := ctx.Err(); err != nil {
			return terminal(result, err)
		}
		call := resp.ToolCalls[0]
		record, observationMsg := e.dispatch(ctx, step, call)
		result.Trace = append(result.Trace, record)
		providerMsgs = append(providerMsgs, observationMsg)

		log.Debug().Int("step", step).Str("tool", call.Name).Bool("err", record.Err != "").Msg("reasonact_tool_step")
	}

	result.Truncated = true
	if result.FinalText == "" {
		result.FinalText = "I reached my reasoning limit before finishing; here is what I found so far."
	}
	return result, nil
}

// chat admits the call through the model concurrency limiter before
// invoking the provider, so the bounded number of simultaneously in-flight
// model calls (SPEC_FULL.md §5) is enforced at the one place every model
// call in the loop passes through.
func (e *Executor) chat(ctx context.Context, msgs []llmprovider.Message, schemas []llmprovider.ToolSchema, decision domain.ModelDecision) (llmprovider.Response, error) {
	if e.limiter != nil {
		release, err := e.limiter.AcquireModel(ctx)
		if err != nil {
			return llmprovider.Response{}, err
		}
		defer release()
	}
	return e.provider.Chat(ctx, msgs, schemas, decision.Model, decision.MaxTokens, decision.Temperature)
}

func (e *Executor) dispatch(ctx context.Context, step int, call llmprovider.ToolCall) (domain.ToolCallRecord, llmprovider.Message) {
	start := time.Now()
	raw, _ := json.Marshal(call.Args)
	observability.LoggerWithTrace(ctx).Debug().Int("step", step).Str("tool", call.Name).
		RawJSON("args", observability.RedactJSON(raw)).Msg("reasonact_tool_args")

	record := domain.ToolCallRecord{
		StepIndex: step,
		Name:      call.Name,
		Args:      call.Args,
	}

	if e.limiter != nil {
		release, err := e.limiter.AcquireTool(ctx)
		if err != nil {
			record.Duration = time.Since(start)
			record.Err = err.Error()
			return record, llmprovider.Message{Role: "tool", Content: `{"error":"` + err.Error() + `"}`, ToolID: call.ID}
		}
		defer release()
	}

	payload, err := e.registry.Dispatch(ctx, call.Name, raw)
	record.Duration = time.Since(start)
	if err != nil {
		record.Err = err.Error()
		return record, llmprovider.Message{Role: "tool", Content: `{"error":"` + err.Error() + `"}`, ToolID: call.ID}
	}

	var observation map[string]any
	_ = json.Unmarshal(payload, &observation)
	record.Observation = observation
	return record, llmprovider.Message{Role: "tool", Content: string(payload), ToolID: call.ID}
}

func toProviderMessages(msgs []domain.Message) []llmprovider.Message {
	out := make([]llmprovider.Message, 0, len(msgs))
	for _, m := range msgs {
		role := m.Role
		if role == "" {
			role = "user"
		}
		out = append(out, llmprovider.Message{Role: role, Content: m.Text})
	}
	return out
}

func terminal(result Result, err error) (Result, error) {
	if errors.Is(err, context.DeadlineExceeded) {
		return result, domain.NewError(domain.ErrTimeout, "reason-act deadline exceeded", err)
	}
	return result, domain.NewError(domain.ErrCancelled, "reason-act cancelled", err)
}
