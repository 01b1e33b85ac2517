package intent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wayfarer/internal/cache"
	"wayfarer/internal/domain"
	"wayfarer/internal/llmprovider"
)

type fakeProvider struct {
	content string
	err     error
	calls   int
}

func (f *fakeProvider) Chat(ctx context.Context, msgs []llmprovider.Message, tools []llmprovider.ToolSchema, model string, maxTokens int, temperature float64) (llmprovider.Response, error) {
	f.calls++
	if f.err != nil {
		return llmprovider.Response{}, f.err
	}
	return llmprovider.Response{Content: f.content}, nil
}

func TestClassify_ParsesHighConfidenceDecision(t *testing.T) {
	fp := &fakeProvider{content: `{"intent":"PLAN","confidence":0.9,"complexity":"high","reasoning":"multi-stop itinerary"}`}
	c := New(fp, "small_fast", cache.NewInMemoryCache(), time.Hour)

	d, err := c.Classify(context.Background(), "plan me 3 days in Barcelona with my family", "en", "")
	require.NoError(t, err)
	assert.Equal(t, domain.IntentPlan, d.Intent)
	assert.Equal(t, domain.ComplexityHigh, d.Complexity)
}

func TestClassify_LowConfidenceDegradesToChitchat(t *testing.T) {
	fp := &fakeProvider{content: `{"intent":"SEARCH","confidence":0.2,"complexity":"medium","reasoning":"unsure"}`}
	c := New(fp, "small_fast", cache.NewInMemoryCache(), time.Hour)

	d, err := c.Classify(context.Background(), "hmm", "en", "")
	require.NoError(t, err)
	assert.Equal(t, domain.IntentChitchat, d.Intent)
	assert.Equal(t, domain.ComplexityLow, d.Complexity)
}

func TestClassify_ModelErrorSoftFails(t *testing.T) {
	fp := &fakeProvider{err: assert.AnError}
	c := New(fp, "small_fast", cache.NewInMemoryCache(), time.Hour)

	d, err := c.Classify(context.Background(), "anything", "en", "")
	require.NoError(t, err)
	assert.Equal(t, domain.IntentChitchat, d.Intent)
	assert.Equal(t, domain.ComplexityLow, d.Complexity)
	assert.Equal(t, float64(0), d.Confidence)
}

func TestClassify_CacheHitSkipsModelCall(t *testing.T) {
	fp := &fakeProvider{content: `{"intent":"SEARCH","confidence":0.8,"complexity":"low","reasoning":"lookup"}`}
	c := New(fp, "small_fast", cache.NewInMemoryCache(), time.Hour)

	_, err := c.Classify(context.Background(), "restaurants near me", "en", "")
	require.NoError(t, err)
	assert.Equal(t, 1, fp.calls)

	_, err = c.Classify(context.Background(), "restaurants near me", "en", "")
	require.NoError(t, err)
	assert.Equal(t, 1, fp.calls, "second call with identical key should hit cache")
}

func TestClassify_ExtractsJSONFromProseWrapper(t *testing.T) {
	fp := &fakeProvider{content: "Sure, here you go:\n```json\n{\"intent\":\"RECOMMEND\",\"confidence\":0.7,\"complexity\":\"medium\",\"reasoning\":\"filtered\"}\n```"}
	c := New(fp, "small_fast", cache.NewInMemoryCache(), time.Hour)

	d, err := c.Classify(context.Background(), "what's a good tapas place", "en", "")
	require.NoError(t, err)
	assert.Equal(t, domain.IntentRecommend, d.Intent)
}
