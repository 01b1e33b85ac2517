package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wayfarer/internal/domain"
	"wayfarer/internal/persistence/store"
)

func TestFinalize_ComputesCostFromTokenCounts(t *testing.T) {
	qm := Start("req-1", domain.IntentDecision{Intent: domain.IntentSearch})
	model := domain.ModelDecision{Model: "small", InputCostPer1K: 0.001, OutputCostPer1K: 0.002}

	qm = Finalize(qm, model, 1, 2, 1000, 500, true, "")
	assert.InDelta(t, 0.001+0.001, qm.EstimatedCostUSD, 1e-9)
	assert.True(t, qm.Success)
}

func TestSubmit_UpsertsIntoHourBucket(t *testing.T) {
	metricsStore := store.NewMetricsStore(nil)
	require.NoError(t, metricsStore.Init(context.Background()))
	rec := New(metricsStore)

	fixed := time.Date(2026, 1, 1, 10, 30, 0, 0, time.UTC)
	restore := now
	now = func() time.Time { return fixed }
	defer func() { now = restore }()

	qm := Start("req-2", domain.IntentDecision{})
	qm = Finalize(qm, domain.ModelDecision{Model: "small"}, 1, 1, 100, 50, true, "")
	rec.Submit(context.Background(), qm)
	rec.Submit(context.Background(), qm)

	agg, err := metricsStore.GetHourly(context.Background(), fixed.Truncate(time.Hour).Format(time.RFC3339))
	require.NoError(t, err)
	assert.Equal(t, 2, agg.RequestCount)
}

func TestSubmit_FailedQueryIncrementsErrorCount(t *testing.T) {
	metricsStore := store.NewMetricsStore(nil)
	require.NoError(t, metricsStore.Init(context.Background()))
	rec := New(metricsStore)

	fixed := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	restore := now
	now = func() time.Time { return fixed }
	defer func() { now = restore }()

	qm := Start("req-3", domain.IntentDecision{})
	qm = Finalize(qm, domain.ModelDecision{}, 0, 1, 0, 0, false, domain.ErrModelError)
	rec.Submit(context.Background(), qm)

	agg, err := metricsStore.GetHourly(context.Background(), fixed.Truncate(time.Hour).Format(time.RFC3339))
	require.NoError(t, err)
	assert.Equal(t, 1, agg.ErrorCount)
}
