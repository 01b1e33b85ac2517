// Package metrics finalizes per-query QueryMetrics records and folds them
// into hourly aggregates in the durable store. Grounded on
// internal/observability/otel.go's meter-provider wiring for the
// live-counter side and the upsert-with-increment SQL idiom of
// internal/persistence/store/metrics.go for the durable hourly-bucket side.
package metrics

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"

	"wayfarer/internal/domain"
	"wayfarer/internal/observability"
	"wayfarer/internal/persistence"
)

// Live OTel instruments, lazily bound to the global MeterProvider on first
// use (InitOTel installs the real provider before the server starts taking
// requests; until then these are the SDK's no-op instruments). Grounded on
// internal/llm/observability.go's ensureTokenInstruments sync.Once pattern.
var (
	instrumentsOnce sync.Once
	requestCounter  otelmetric.Int64Counter
	errorCounter    otelmetric.Int64Counter
	latencyHist     otelmetric.Float64Histogram
	costHist        otelmetric.Float64Histogram
)

func ensureInstruments() {
	instrumentsOnce.Do(func() {
		m := otel.Meter("wayfarer/metrics")
		requestCounter, _ = m.Int64Counter("wayfarer.requests.total", otelmetric.WithDescription("Total orchestrated requests"))
		errorCounter, _ = m.Int64Counter("wayfarer.requests.errors", otelmetric.WithDescription("Requests that ended in a non-success outcome"))
		latencyHist, _ = m.Float64Histogram("wayfarer.request.latency_ms", otelmetric.WithDescription("Per-request processing time in milliseconds"))
		costHist, _ = m.Float64Histogram("wayfarer.request.cost_usd", otelmetric.WithDescription("Per-request estimated model cost in USD"))
	})
}

// Recorder submits finalized QueryMetrics into the hourly aggregate store
// and the live OTel counters/histograms.
type Recorder struct {
	store persistence.MetricsStore
}

func New(store persistence.MetricsStore) *Recorder {
	return &Recorder{store: store}
}

// Start begins a QueryMetrics record for a new request.
func Start(requestID string, decision domain.IntentDecision) domain.QueryMetrics {
	return domain.QueryMetrics{
		RequestID: requestID,
		Start:     now(),
		Intent:    decision,
	}
}

// Finalize stamps the end time, outcome, and model decision onto qm.
func Finalize(qm domain.QueryMetrics, model domain.ModelDecision, toolCalls, reasoningSteps, inputTokens, outputTokens int, success bool, errKind domain.ErrorKind) domain.QueryMetrics {
	qm.End = now()
	qm.Model = model
	qm.ToolCallCount = toolCalls
	qm.ReasoningSteps = reasoningSteps
	qm.InputTokens = inputTokens
	qm.OutputTokens = outputTokens
	qm.Success = success
	qm.ErrorKind = errKind
	qm.EstimatedCostUSD = estimateCost(model, inputTokens, outputTokens)
	return qm
}

func estimateCost(model domain.ModelDecision, inputTokens, outputTokens int) float64 {
	return float64(inputTokens)/1000*model.InputCostPer1K + float64(outputTokens)/1000*model.OutputCostPer1K
}

// Submit upserts qm into the hour bucket it falls in. Persistence failure
// here is logged, not escalated: metrics gaps never fail an otherwise
// successful response.
func (r *Recorder) Submit(ctx context.Context, qm domain.QueryMetrics) {
	log := observability.LoggerWithTrace(ctx)
	r.recordLive(ctx, qm)

	agg := persistence.HourlyAggregate{
		HourStart:         bucketStart(qm.Start),
		RequestCount:      1,
		TotalInputTokens:  qm.InputTokens,
		TotalOutputTokens: qm.OutputTokens,
		TotalCostUSD:      qm.EstimatedCostUSD,
		TotalLatencyMS:    qm.Duration().Milliseconds(),
	}
	if qm.Success {
		agg.ErrorCount = 0
	} else {
		agg.ErrorCount = 1
	}

	if err := r.store.UpsertHourly(ctx, agg); err != nil {
		log.Warn().Err(err).Str("request_id", qm.RequestID).Msg("metrics_upsert_failed")
	}
}

// recordLive feeds the live OTel counters/histograms so a running process
// is observable in real time, independent of the durable hourly rollup.
func (r *Recorder) recordLive(ctx context.Context, qm domain.QueryMetrics) {
	ensureInstruments()

	attrs := otelmetric.WithAttributes(
		attribute.String("intent", string(qm.Intent.Intent)),
		attribute.String("model", qm.Model.Model),
	)
	if requestCounter != nil {
		requestCounter.Add(ctx, 1, attrs)
	}
	if !qm.Success && errorCounter != nil {
		errorCounter.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("error_kind", string(qm.ErrorKind))))
	}
	if latencyHist != nil {
		latencyHist.Record(ctx, float64(qm.Duration().Milliseconds()), attrs)
	}
	if costHist != nil {
		costHist.Record(ctx, qm.EstimatedCostUSD, attrs)
	}
}

func bucketStart(t time.Time) string {
	return t.UTC().Truncate(time.Hour).Format(time.RFC3339)
}

// now is a seam so tests can stamp deterministic timestamps without the
// package depending on wall-clock time directly.
var now = time.Now
