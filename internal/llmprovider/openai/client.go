// Package openai adapts github.com/openai/openai-go/v2's chat completions
// API to the llmprovider.Provider interface. Grounded on
// internal/llm/openai/client.go's Chat method, trimmed to the plain chat
// completions path — the teacher's Responses-API, image-generation, and
// Gemini-raw-HTTP branches serve a multi-modal interactive chat UI this
// engine doesn't expose.
package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	sdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"wayfarer/internal/llmprovider"
	"wayfarer/internal/observability"
)

type Client struct {
	sdk   sdk.Client
	model string
}

func New(apiKey, baseURL, model string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(apiKey)),
		option.WithHTTPClient(httpClient),
	}
	if base := strings.TrimSpace(baseURL); base != "" {
		opts = append(opts, option.WithBaseURL(base))
	}
	return &Client{sdk: sdk.NewClient(opts...), model: model}
}

func (c *Client) Chat(ctx context.Context, msgs []llmprovider.Message, tools []llmprovider.ToolSchema, model string, maxTokens int, temperature float64) (llmprovider.Response, error) {
	m := model
	if m == "" {
		m = c.model
	}

	params := sdk.ChatCompletionNewParams{Model: sdk.ChatModel(m)}
	params.Messages = adaptMessages(msgs)
	if len(tools) > 0 {
		params.Tools = adaptTools(tools)
	}
	if maxTokens > 0 {
		params.MaxTokens = sdk.Int(int64(maxTokens))
	}
	params.Temperature = sdk.Float(temperature)

	log := observability.LoggerWithTrace(ctx)
	comp, err := c.sdk.Chat.Completions.New(ctx, params)
	if err != nil {
		log.Error().Err(err).Str("model", m).Msg("openai_chat_error")
		return llmprovider.Response{}, err
	}
	if len(comp.Choices) == 0 {
		return llmprovider.Response{}, nil
	}
	choice := comp.Choices[0]
	out := llmprovider.Response{
		Content:      choice.Message.Content,
		InputTokens:  int(comp.Usage.PromptTokens),
		OutputTokens: int(comp.Usage.CompletionTokens),
	}
	for _, tc := range choice.Message.ToolCalls {
		var args map[string]any
		_ = json.Unmarshal([]byte(tc.Function.Arguments), &args)
		out.ToolCalls = append(out.ToolCalls, llmprovider.ToolCall{Name: tc.Function.Name, Args: args, ID: tc.ID})
	}
	return out, nil
}

func adaptMessages(msgs []llmprovider.Message) []sdk.ChatCompletionMessageParamUnion {
	out := make([]sdk.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch strings.ToLower(m.Role) {
		case "system":
			out = append(out, sdk.SystemMessage(m.Content))
		case "user":
			out = append(out, sdk.UserMessage(m.Content))
		case "assistant":
			out = append(out, sdk.AssistantMessage(m.Content))
		case "tool":
			out = append(out, sdk.ToolMessage(m.Content, m.ToolID))
		}
	}
	return out
}

func adaptTools(tools []llmprovider.ToolSchema) []sdk.ChatCompletionToolUnionParam {
	out := make([]sdk.ChatCompletionToolUnionParam, 0, len(tools))
	for _, t := range tools {
		out = append(out, sdk.ChatCompletionFunctionTool(sdk.FunctionDefinitionParam{
			Name:        t.Name,
			Description: sdk.String(t.Description),
			Parameters:  t.Parameters,
		}))
	}
	return out
}
