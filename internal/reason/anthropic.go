package reason

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/peerwise/peerwise/internal/domain"
)

const (
	anthropicMessagesURL = "https://api.anthropic.com/v1/messages"
	anthropicModel       = "claude-sonnet-4-5-20250929"
	anthropicVersion     = "2023-06-01"

	synthesizeToolName = "synthesize_response"
	recommendToolName  = "recommend_agents"
)

// AnthropicClient calls the Anthropic Messages API with a forced tool
// schema, so the reasoner either returns structured output or fails.
type AnthropicClient struct {
	apiKey     string
	model      string
	httpClient *http.Client
}

func NewAnthropicClient(apiKey string) *AnthropicClient {
	return &AnthropicClient{
		apiKey:     apiKey,
		model:      anthropicModel,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

type anthropicToolChoice struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

type anthropicRequest struct {
	Model      string              `json:"model"`
	MaxTokens  int                 `json:"max_tokens"`
	System     string              `json:"system,omitempty"`
	Tools      []anthropicTool     `json:"tools"`
	ToolChoice anthropicToolChoice `json:"tool_choice"`
	Messages   []anthropicMessage  `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type  string          `json:"type"`
		Input json.RawMessage `json:"input"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// callTool performs one forced-tool call and returns the tool input.
func (c *AnthropicClient) callTool(ctx context.Context, system string, userContent string, tool anthropicTool) (json.RawMessage, error) {
	body, err := json.Marshal(anthropicRequest{
		Model:      c.model,
		MaxTokens:  2048,
		System:     system,
		Tools:      []anthropicTool{tool},
		ToolChoice: anthropicToolChoice{Type: "tool", Name: tool.Name},
		Messages:   []anthropicMessage{{Role: "user", Content: userContent}},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal anthropic request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, anthropicMessagesURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create anthropic request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCollaborator, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %s", ErrCollaborator, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrCollaborator, resp.StatusCode)
	}

	var result anthropicResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("%w: unmarshal response: %s", ErrCollaborator, err)
	}
	if result.Error != nil {
		return nil, fmt.Errorf("%w: %s", ErrCollaborator, result.Error.Message)
	}
	for _, block := range result.Content {
		if block.Type == "tool_use" {
			return block.Input, nil
		}
	}
	return nil, fmt.Errorf("%w: no tool_use block in response", ErrCollaborator)
}

func (c *AnthropicClient) Synthesize(ctx context.Context, in domain.SynthesisInput) (*domain.SynthesisResult, error) {
	userContent := in.Question
	if len(in.History) > 0 {
		// The API wants alternating turns, but the prior exchanges are
		// already condensed text; inline them ahead of the question.
		var convo bytes.Buffer
		for _, ex := range in.History {
			fmt.Fprintf(&convo, "Previously asked: %s\nPreviously answered: %s\n\n", ex.Question, ex.Response)
		}
		convo.WriteString(in.Question)
		userContent = convo.String()
	}

	input, err := c.callTool(ctx, synthesisSystemPrompt(in), userContent, synthesizeTool())
	if err != nil {
		return nil, err
	}

	var result domain.SynthesisResult
	if err := json.Unmarshal(input, &result); err != nil {
		return nil, fmt.Errorf("%w: bad synthesize_response payload: %s", ErrCollaborator, err)
	}
	return &result, nil
}

func (c *AnthropicClient) RecommendAgents(ctx context.Context, query string, shortlist []domain.ScoredAgent) ([]domain.Recommendation, error) {
	input, err := c.callTool(ctx, discoverySystemPrompt(shortlist), query, recommendTool())
	if err != nil {
		return nil, err
	}

	var payload struct {
		Recommendations []domain.Recommendation `json:"recommendations"`
	}
	if err := json.Unmarshal(input, &payload); err != nil {
		return nil, fmt.Errorf("%w: bad recommend_agents payload: %s", ErrCollaborator, err)
	}
	return payload.Recommendations, nil
}

func synthesizeTool() anthropicTool {
	return anthropicTool{
		Name:        synthesizeToolName,
		Description: "Provide a synthesized response based on experience from past sessions.",
		InputSchema: map[string]any{
			"type":     "object",
			"required": []string{"response", "confidence", "based_on_sessions", "followup_available"},
			"properties": map[string]any{
				"response": map[string]any{
					"type":        "string",
					"description": "The synthesized answer drawing from session experience",
				},
				"confidence": map[string]any{
					"type":        "string",
					"enum":        []string{"high", "medium", "low"},
					"description": "Confidence in the answer based on available session evidence",
				},
				"based_on_sessions": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Session IDs that informed this answer",
				},
				"followup_available": map[string]any{
					"type":        "boolean",
					"description": "Whether the agent has more relevant experience to share on follow-up",
				},
			},
		},
	}
}

func recommendTool() anthropicTool {
	return anthropicTool{
		Name:        recommendToolName,
		Description: "Recommend agents that can best answer the user's query.",
		InputSchema: map[string]any{
			"type":     "object",
			"required": []string{"recommendations"},
			"properties": map[string]any{
				"recommendations": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type":     "object",
						"required": []string{"agent_id", "relevance_score", "reasoning", "matching_domains"},
						"properties": map[string]any{
							"agent_id":        map[string]any{"type": "string"},
							"relevance_score": map[string]any{"type": "number"},
							"reasoning":       map[string]any{"type": "string"},
							"matching_domains": map[string]any{
								"type": "array",
								"items": map[string]any{
									"type": "object",
									"properties": map[string]any{
										"name":  map[string]any{"type": "string"},
										"depth": map[string]any{"type": "string"},
										"tags": map[string]any{
											"type":  "array",
											"items": map[string]any{"type": "string"},
										},
									},
								},
							},
						},
					},
				},
			},
		},
	}
}
