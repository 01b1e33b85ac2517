// Package anthropic adapts github.com/anthropics/anthropic-sdk-go to the
// llmprovider.Provider interface. Grounded on internal/llm/anthropic/client.go,
// trimmed to a single non-streaming Chat call — this engine's reason-act
// loop issues one call per iteration and never needs token-by-token
// streaming, extended thinking, or prompt caching.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"wayfarer/internal/llmprovider"
	"wayfarer/internal/observability"
)

type Client struct {
	sdk   anthropicsdk.Client
	model string
}

// New builds a client for the given API key, base URL, and default model.
func New(apiKey, baseURL, model string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(apiKey)),
		option.WithHTTPClient(httpClient),
	}
	if base := strings.TrimSpace(baseURL); base != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSuffix(base, "/")))
	}
	return &Client{sdk: anthropicsdk.NewClient(opts...), model: model}
}

func (c *Client) Chat(ctx context.Context, msgs []llmprovider.Message, tools []llmprovider.ToolSchema, model string, maxTokens int, temperature float64) (llmprovider.Response, error) {
	sys, converted, err := adaptMessages(msgs)
	if err != nil {
		return llmprovider.Response{}, err
	}
	toolDefs, err := adaptTools(tools)
	if err != nil {
		return llmprovider.Response{}, err
	}

	m := model
	if m == "" {
		m = c.model
	}
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	params := anthropicsdk.MessageNewParams{
		Model:       anthropicsdk.Model(m),
		Messages:    converted,
		System:      sys,
		Tools:       toolDefs,
		MaxTokens:   int64(maxTokens),
		Temperature: anthropicsdk.Float(temperature),
	}

	log := observability.LoggerWithTrace(ctx)
	resp, err := c.sdk.Messages.New(ctx, params)
	if err != nil {
		log.Error().Err(err).Str("model", m).Msg("anthropic_chat_error")
		return llmprovider.Response{}, err
	}

	out := llmprovider.Response{
		InputTokens:  int(resp.Usage.InputTokens),
		OutputTokens: int(resp.Usage.OutputTokens),
	}
	for _, block := range resp.Content {
		switch v := block.AsAny().(type) {
		case anthropicsdk.TextBlock:
			out.Content += v.Text
		case anthropicsdk.ToolUseBlock:
			var args map[string]any
			_ = json.Unmarshal(v.Input, &args)
			out.ToolCalls = append(out.ToolCalls, llmprovider.ToolCall{Name: v.Name, Args: args, ID: v.ID})
		}
	}
	return out, nil
}

func adaptTools(tools []llmprovider.ToolSchema) ([]anthropicsdk.ToolUnionParam, error) {
	if len(tools) == 0 {
		return nil, nil
	}
	out := make([]anthropicsdk.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		if strings.TrimSpace(t.Name) == "" {
			return nil, fmt.Errorf("anthropic provider: tool name required")
		}
		schema := anthropicsdk.ToolInputSchemaParam{Type: constant.ValueOf[constant.Object]()}
		extras := map[string]any{}
		for k, v := range t.Parameters {
			extras[k] = v
		}
		if props, ok := extras["properties"]; ok {
			schema.Properties = props
			delete(extras, "properties")
		}
		if req, ok := extras["required"].([]string); ok {
			schema.Required = req
			delete(extras, "required")
		}
		delete(extras, "type")
		if len(extras) > 0 {
			schema.ExtraFields = extras
		}
		param := anthropicsdk.ToolParam{Name: t.Name, InputSchema: schema}
		if t.Description != "" {
			param.Description = anthropicsdk.String(t.Description)
		}
		out = append(out, anthropicsdk.ToolUnionParam{OfTool: &param})
	}
	return out, nil
}

func adaptMessages(msgs []llmprovider.Message) ([]anthropicsdk.TextBlockParam, []anthropicsdk.MessageParam, error) {
	var sys []anthropicsdk.TextBlockParam
	out := make([]anthropicsdk.MessageParam, 0, len(msgs))
	toolResultCount := 0

	for _, m := range msgs {
		switch strings.ToLower(m.Role) {
		case "system":
			if m.Content != "" {
				sys = append(sys, anthropicsdk.TextBlockParam{Text: m.Content})
			}
		case "user":
			if m.Content != "" {
				out = append(out, anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(m.Content)))
			}
		case "assistant":
			var blocks []anthropicsdk.ContentBlockParamUnion
			if m.Content != "" {
				blocks = append(blocks, anthropicsdk.NewTextBlock(m.Content))
			}
			for i, tc := range m.ToolCalls {
				id := tc.ID
				if id == "" {
					id = fmt.Sprintf("call-%d", i+1)
				}
				blocks = append(blocks, anthropicsdk.NewToolUseBlock(id, tc.Args, tc.Name))
			}
			if len(blocks) > 0 {
				out = append(out, anthropicsdk.NewAssistantMessage(blocks...))
			}
		case "tool":
			id := m.ToolID
			if id == "" {
				toolResultCount++
				id = fmt.Sprintf("tool-result-%d", toolResultCount)
			}
			out = append(out, anthropicsdk.NewUserMessage(anthropicsdk.NewToolResultBlock(id, m.Content, false)))
		default:
			return nil, nil, fmt.Errorf("unsupported role for anthropic provider: %s", m.Role)
		}
	}
	return sys, out, nil
}
