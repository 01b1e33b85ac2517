package reasonact

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wayfarer/internal/domain"
	"wayfarer/internal/llmprovider"
	"wayfarer/internal/tools"
)

type scriptedProvider struct {
	responses []llmprovider.Response
	calls     int
}

func (s *scriptedProvider) Chat(ctx context.Context, msgs []llmprovider.Message, toolSchemas []llmprovider.ToolSchema, model string, maxTokens int, temperature float64) (llmprovider.Response, error) {
	r := s.responses[s.calls]
	s.calls++
	return r, nil
}

type echoTool struct{}

func (echoTool) Name() string               { return "echo" }
func (echoTool) JSONSchema() map[string]any { return map[string]any{"description": "echo"} }
func (echoTool) Call(ctx context.Context, raw json.RawMessage) (any, error) {
	return map[string]any{"ok": true}, nil
}

func TestRun_TerminatesOnFinalAnswer(t *testing.T) {
	p := &scriptedProvider{responses: []llmprovider.Response{{Content: "done"}}}
	reg := tools.NewRegistry()
	exec := New(p, reg, 6, nil)

	result, err := exec.Run(context.Background(), []domain.Message{{Role: "user", Text: "hi"}}, domain.ModelDecision{Model: "x"})
	require.NoError(t, err)
	assert.Equal(t, "done", result.FinalText)
	assert.False(t, result.Truncated)
	assert.Equal(t, 1, result.IterationsUsed)
}

func TestRun_DispatchesOneToolCallThenFinishes(t *testing.T) {
	p := &scriptedProvider{responses: []llmprovider.Response{
		{ToolCalls: []llmprovider.ToolCall{{Name: "echo", ID: "1", Args: map[string]any{"x": 1}}}},
		{Content: "final answer"},
	}}
	reg := tools.NewRegistry()
	reg.Register(echoTool{})
	exec := New(p, reg, 6, nil)

	result, err := exec.Run(context.Background(), []domain.Message{{Role: "user", Text: "hi"}}, domain.ModelDecision{Model: "x"})
	require.NoError(t, err)
	assert.Equal(t, "final answer", result.FinalText)
	require.Len(t, result.Trace, 1)
	assert.Equal(t, "echo", result.Trace[0].Name)
	assert.Empty(t, result.Trace[0].Err)
}

func TestRun_TruncatesAtMaxIterations(t *testing.T) {
	responses := make([]llmprovider.Response, 5)
	for i := range responses {
		responses[i] = llmprovider.Response{ToolCalls: []llmprovider.ToolCall{{Name: "echo", ID: "1"}}}
	}
	p := &scriptedProvider{responses: responses}
	reg := tools.NewRegistry()
	reg.Register(echoTool{})
	exec := New(p, reg, 5, nil)

	result, err := exec.Run(context.Background(), []domain.Message{{Role: "user", Text: "hi"}}, domain.ModelDecision{Model: "x"})
	require.NoError(t, err)
	assert.True(t, result.Truncated)
	assert.Equal(t, 5, result.IterationsUsed)
	assert.Len(t, result.Trace, 5)
}

func TestRun_CancelledContextReturnsCancelledError(t *testing.T) {
	p := &scriptedProvider{responses: []llmprovider.Response{{Content: "unused"}}}
	reg := tools.NewRegistry()
	exec := New(p, reg, 6, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := exec.Run(ctx, []domain.Message{{Role: "user", Text: "hi"}}, domain.ModelDecision{Model: "x"})
	require.Error(t, err)
	assert.Equal(t, domain.ErrCancelled, domain.KindOf(err))
}

func TestRun_DeadlineExceededReturnsTimeoutError(t *testing.T) {
	p := &scriptedProvider{responses: []llmprovider.Response{{Content: "unused"}}}
	reg := tools.NewRegistry()
	exec := New(p, reg, 6, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	_, err := exec.Run(ctx, []domain.Message{{Role: "user", Text: "hi"}}, domain.ModelDecision{Model: "x"})
	require.Error(t, err)
	assert.Equal(t, domain.ErrTimeout, domain.KindOf(err))
}

func TestRun_ToolErrorSurfacesAsObservationNotCrash(t *testing.T) {
	p := &scriptedProvider{responses: []llmprovider.Response{
		{ToolCalls: []llmprovider.ToolCall{{Name: "missing", ID: "1"}}},
		{Content: "recovered"},
	}}
	reg := tools.NewRegistry()
	exec := New(p, reg, 6, nil)

	result, err := exec.Run(context.Background(), []domain.Message{{Role: "user", Text: "hi"}}, domain.ModelDecision{Model: "x"})
	require.NoError(t, err)
	assert.Equal(t, "recovered", result.FinalText)
}
