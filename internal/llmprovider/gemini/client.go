// Package gemini adapts google.golang.org/genai to the llmprovider.Provider
// interface. Grounded on internal/llm/google/client.go's Chat method,
// trimmed to non-streaming generation with plain function-call tools — the
// teacher's thought-signature preservation and image generation are
// interactive-chat-UI features this engine doesn't expose.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	genai "google.golang.org/genai"

	"wayfarer/internal/llmprovider"
	"wayfarer/internal/observability"
)

type Client struct {
	client *genai.Client
	model  string
}

func New(ctx context.Context, apiKey, baseURL, model string, httpClient *http.Client) (*Client, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	httpOpts := genai.HTTPOptions{}
	if base := strings.TrimSpace(baseURL); base != "" {
		httpOpts.BaseURL = strings.TrimSuffix(base, "/") + "/"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      strings.TrimSpace(apiKey),
		HTTPClient:  httpClient,
		HTTPOptions: httpOpts,
	})
	if err != nil {
		return nil, fmt.Errorf("init gemini client: %w", err)
	}
	return &Client{client: client, model: model}, nil
}

func (c *Client) Chat(ctx context.Context, msgs []llmprovider.Message, tools []llmprovider.ToolSchema, model string, maxTokens int, temperature float64) (llmprovider.Response, error) {
	m := model
	if m == "" {
		m = c.model
	}

	contents, err := toContents(msgs)
	if err != nil {
		return llmprovider.Response{}, err
	}
	toolDecls, err := adaptTools(tools)
	if err != nil {
		return llmprovider.Response{}, err
	}

	cfg := &genai.GenerateContentConfig{Tools: toolDecls}
	if maxTokens > 0 {
		cfg.MaxOutputTokens = int32(maxTokens)
	}
	cfg.Temperature = genai.Ptr(float32(temperature))

	log := observability.LoggerWithTrace(ctx)
	resp, err := c.client.Models.GenerateContent(ctx, m, contents, cfg)
	if err != nil {
		log.Error().Err(err).Str("model", m).Msg("gemini_chat_error")
		return llmprovider.Response{}, err
	}

	out := llmprovider.Response{}
	if resp.UsageMetadata != nil {
		out.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		out.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return out, nil
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			out.Content += part.Text
		}
		if part.FunctionCall != nil {
			out.ToolCalls = append(out.ToolCalls, llmprovider.ToolCall{
				Name: part.FunctionCall.Name,
				Args: part.FunctionCall.Args,
				ID:   part.FunctionCall.ID,
			})
		}
	}
	return out, nil
}

func toContents(msgs []llmprovider.Message) ([]*genai.Content, error) {
	if len(msgs) == 0 {
		return nil, fmt.Errorf("messages required")
	}
	toolNamesByID := make(map[string]string)
	var lastFuncName string
	contents := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		role := strings.ToLower(m.Role)
		switch role {
		case "", "user", "system":
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		case "assistant":
			for _, tc := range m.ToolCalls {
				if tc.ID != "" && tc.Name != "" {
					toolNamesByID[tc.ID] = tc.Name
				}
				if tc.Name != "" {
					lastFuncName = tc.Name
				}
			}
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		case "tool":
			name := toolNamesByID[m.ToolID]
			if name == "" {
				name = lastFuncName
			}
			if name == "" {
				name = "tool_response"
			}
			respMap := map[string]any{}
			if trimmed := strings.TrimSpace(m.Content); trimmed != "" {
				if err := json.Unmarshal([]byte(trimmed), &respMap); err != nil {
					respMap = map[string]any{"output": m.Content}
				}
			}
			part := genai.NewPartFromFunctionResponse(name, respMap)
			contents = append(contents, genai.NewContentFromParts([]*genai.Part{part}, genai.RoleUser))
		}
	}
	return contents, nil
}

func adaptTools(schemas []llmprovider.ToolSchema) ([]*genai.Tool, error) {
	if len(schemas) == 0 {
		return nil, nil
	}
	decls := make([]*genai.FunctionDeclaration, 0, len(schemas))
	for _, s := range schemas {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        s.Name,
			Description: s.Description,
			Parameters:  mapToSchema(s.Parameters),
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}, nil
}

func mapToSchema(params map[string]any) *genai.Schema {
	if len(params) == 0 {
		return nil
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil
	}
	var schema genai.Schema
	if err := json.Unmarshal(raw, &schema); err != nil {
		return nil
	}
	return &schema
}
