package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wayfarer/internal/config"
	"wayfarer/internal/domain"
)

func testCatalog() config.ModelCatalog {
	return config.Default().Models
}

func TestRoute_SearchLowUsesSmallFast(t *testing.T) {
	r := New(testCatalog())
	d, err := r.Route(domain.IntentSearch, domain.ComplexityLow, false, "")
	require.NoError(t, err)
	assert.Equal(t, "claude-haiku-4-5", d.Model)
}

func TestRoute_SearchHighUsesMidTierUnlessBudget(t *testing.T) {
	r := New(testCatalog())
	d, err := r.Route(domain.IntentSearch, domain.ComplexityHigh, false, "")
	require.NoError(t, err)
	assert.Equal(t, "claude-sonnet-4-5", d.Model)

	d, err = r.Route(domain.IntentSearch, domain.ComplexityHigh, true, "")
	require.NoError(t, err)
	assert.Equal(t, "claude-haiku-4-5", d.Model)
}

func TestRoute_PlanHighUsesTopTierUnlessBudget(t *testing.T) {
	r := New(testCatalog())
	d, err := r.Route(domain.IntentPlan, domain.ComplexityHigh, false, "")
	require.NoError(t, err)
	assert.Equal(t, "claude-opus-4-1", d.Model)

	d, err = r.Route(domain.IntentPlan, domain.ComplexityHigh, true, "")
	require.NoError(t, err)
	assert.Equal(t, "claude-haiku-4-5", d.Model)
}

func TestRoute_ChitchatAlwaysCheapConversational(t *testing.T) {
	r := New(testCatalog())
	d, err := r.Route(domain.IntentChitchat, domain.ComplexityHigh, false, "")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", d.Model)

	d, err = r.Route(domain.IntentChitchat, domain.ComplexityLow, true, "")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", d.Model)
}

func TestRoute_UnknownLabelErrors(t *testing.T) {
	r := New(config.ModelCatalog{})
	_, err := r.Route(domain.IntentSearch, domain.ComplexityLow, false, "")
	assert.Error(t, err)
}

func TestRoute_PreferredModelOverridesLabelPick(t *testing.T) {
	r := New(testCatalog())
	d, err := r.Route(domain.IntentSearch, domain.ComplexityLow, false, "claude-opus-4-1")
	require.NoError(t, err)
	assert.Equal(t, "claude-opus-4-1", d.Model)
}

func TestRoute_UnknownPreferredModelFallsBackToLabelPick(t *testing.T) {
	r := New(testCatalog())
	d, err := r.Route(domain.IntentSearch, domain.ComplexityLow, false, "not-a-real-model")
	require.NoError(t, err)
	assert.Equal(t, "claude-haiku-4-5", d.Model)
}

func TestRoute_PreferredModelNeverOverridesChitchat(t *testing.T) {
	r := New(testCatalog())
	d, err := r.Route(domain.IntentChitchat, domain.ComplexityLow, false, "claude-opus-4-1")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", d.Model)
}
