package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wayfarer/internal/cache"
	"wayfarer/internal/config"
	"wayfarer/internal/domain"
	"wayfarer/internal/intent"
	"wayfarer/internal/llmprovider"
	"wayfarer/internal/memory"
	"wayfarer/internal/metrics"
	"wayfarer/internal/persistence"
	"wayfarer/internal/persistence/store"
	"wayfarer/internal/reasonact"
	"wayfarer/internal/reqcontext"
	"wayfarer/internal/router"
	"wayfarer/internal/tools"
)

type scriptedProvider struct {
	content   string
	toolCalls []llmprovider.ToolCall
	served    bool
}

func (s *scriptedProvider) Chat(ctx context.Context, msgs []llmprovider.Message, schemas []llmprovider.ToolSchema, model string, maxTokens int, temperature float64) (llmprovider.Response, error) {
	if !s.served && len(s.toolCalls) > 0 {
		s.served = true
		return llmprovider.Response{ToolCalls: s.toolCalls}, nil
	}
	return llmprovider.Response{Content: s.content, InputTokens: 10, OutputTokens: 5}, nil
}

func newTestPipeline(t *testing.T, intentProvider, chatProvider llmprovider.Provider) (*Pipeline, persistence.ConversationStore) {
	t.Helper()
	cfg := config.Default()

	convos := store.NewConversationStore(nil)
	prefs := store.NewUserPreferencesStore(nil)
	metricsStore := store.NewMetricsStore(nil)
	require.NoError(t, convos.Init(context.Background()))
	require.NoError(t, prefs.Init(context.Background()))
	require.NoError(t, metricsStore.Init(context.Background()))

	c := cache.NewInMemoryCache()
	validator := reqcontext.New(cfg, prefs)
	buffer := memory.New(convos, c, cfg.Memory)
	classifier := intent.New(intentProvider, "small_fast", c, time.Hour)
	modelRouter := router.New(cfg.Models)
	registry := tools.NewRegistry()
	recorder := metrics.New(metricsStore)

	providers := ProviderSet{
		"anthropic": reasonact.Bind(chatProvider),
		"openai":    reasonact.Bind(chatProvider),
	}

	p := New(cfg, validator, buffer, classifier, modelRouter, registry, providers, convos, recorder)
	return p, convos
}

func TestHandle_FreshSessionSimpleSearch(t *testing.T) {
	intentResp := &scriptedProvider{content: `{"intent":"SEARCH","confidence":0.9,"complexity":"low","reasoning":"lookup"}`}
	chatResp := &scriptedProvider{content: "Here are some great spots in Zaragoza."}
	p, convos := newTestPipeline(t, intentResp, chatResp)

	req := domain.Request{UserID: "u1", SessionID: uuid.NewString(), Query: "Buscar restaurantes en Zaragoza", Language: "es"}
	resp, err := p.Handle(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, domain.IntentSearch, resp.Intention)
	assert.NotEmpty(t, resp.ResponseText)

	turns, err := convos.AllTurns(context.Background(), req.SessionID)
	require.NoError(t, err)
	assert.Len(t, turns, 1)
}

func TestHandle_InvalidSessionShortCircuits(t *testing.T) {
	intentResp := &scriptedProvider{content: `{"intent":"CHITCHAT","confidence":0.9,"complexity":"low","reasoning":""}`}
	chatResp := &scriptedProvider{content: "hi"}
	p, _ := newTestPipeline(t, intentResp, chatResp)

	req := domain.Request{UserID: "u1", SessionID: "not-a-uuid", Query: "hola", Language: "es"}
	_, err := p.Handle(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, domain.ErrInvalidSession, domain.KindOf(err))
}

func TestHandle_BudgetModeForcesSmallFastModel(t *testing.T) {
	intentResp := &scriptedProvider{content: `{"intent":"PLAN","confidence":0.9,"complexity":"high","reasoning":"itinerary"}`}
	chatResp := &scriptedProvider{content: "Plan ready."}
	p, _ := newTestPipeline(t, intentResp, chatResp)
	p.cfg.BudgetMode = true

	req := domain.Request{UserID: "u1", SessionID: uuid.NewString(), Query: "plan me a trip", Language: "en"}
	resp, err := p.Handle(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, cfgSmallFastModel(p), resp.ModelUsed)
}

func cfgSmallFastModel(p *Pipeline) string {
	return p.cfg.Models["small_fast"].Model
}
