package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"signal-trackers/internal/pipeline/config"
	"signal-trackers/internal/pipeline/dto"
	"signal-trackers/pkg/logger"
	"signal-trackers/pkg/ratelimit"
)

type anthropicContentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
}

type anthropicMessage struct {
	Role    string                  `json:"role"`
	Content []anthropicContentBlock `json:"content"`
}

type anthropicTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
	Tools     []anthropicTool    `json:"tools,omitempty"`
}

type anthropicResponse struct {
	Content []anthropicContentBlock `json:"content"`
	Usage   struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type anthropicRepository struct {
	client         *http.Client
	cfg            *config.Config
	logger         *logger.Logger
	tokenLimiter   *ratelimit.TokenLimiter
	requestLimiter *rate.Limiter
}

// NewAnthropicRepository creates a ModelClient backed by the Anthropic
// messages API.
func NewAnthropicRepository(cfg *config.Config, log *logger.Logger) ModelClient {
	secondsPerRequest := time.Minute / time.Duration(cfg.Anthropic.MaxRequestPerMinute)
	return &anthropicRepository{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		cfg:            cfg,
		logger:         log,
		requestLimiter: rate.NewLimiter(rate.Every(secondsPerRequest), 1),
		tokenLimiter:   ratelimit.NewTokenLimiter(cfg.Anthropic.MaxTokenPerMinute),
	}
}

func (r *anthropicRepository) Provider() string { return "anthropic" }
func (r *anthropicRepository) Model() string    { return r.cfg.Anthropic.Model }

func (r *anthropicRepository) Chat(ctx context.Context, system string, messages []dto.ChatMessage, tools []dto.ToolDefinition, maxTokens int) (*dto.ChatResponse, error) {
	if r.cfg.Anthropic.APIKey == "" {
		return nil, fmt.Errorf("%w: Anthropic API key is not configured", ErrAuthFailed)
	}
	if err := r.requestLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("failed to wait for request limit: %w", err)
	}

	payload := anthropicRequest{
		Model:     r.cfg.Anthropic.Model,
		MaxTokens: maxTokens,
		System:    system,
		Messages:  make([]anthropicMessage, 0, len(messages)),
	}
	for _, m := range messages {
		switch m.Role {
		case dto.RoleTool:
			// Tool results travel as user turns with a tool_result block.
			payload.Messages = append(payload.Messages, anthropicMessage{
				Role: dto.RoleUser,
				Content: []anthropicContentBlock{{
					Type:      "tool_result",
					ToolUseID: m.ToolCallID,
					Content:   m.Content,
				}},
			})
		case dto.RoleAssistant:
			blocks := make([]anthropicContentBlock, 0, len(m.ToolCalls)+1)
			if m.Content != "" {
				blocks = append(blocks, anthropicContentBlock{Type: "text", Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				blocks = append(blocks, anthropicContentBlock{
					Type:  "tool_use",
					ID:    tc.ID,
					Name:  tc.Name,
					Input: tc.Arguments,
				})
			}
			payload.Messages = append(payload.Messages, anthropicMessage{Role: dto.RoleAssistant, Content: blocks})
		default:
			payload.Messages = append(payload.Messages, anthropicMessage{
				Role:    dto.RoleUser,
				Content: []anthropicContentBlock{{Type: "text", Text: m.Content}},
			})
		}
	}
	for _, t := range tools {
		payload.Tools = append(payload.Tools, anthropicTool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.Parameters,
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	endpoint := r.cfg.Anthropic.BaseURL + "/v1/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create new http request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", r.cfg.Anthropic.APIKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	r.logger.DebugContext(ctx, "Sending request to Anthropic API", logger.StringField("model", r.cfg.Anthropic.Model))

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: Anthropic returned %d", ErrAuthFailed, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("received non-OK response from Anthropic API: %d - %s", resp.StatusCode, string(raw))
	}

	var anthropicResp anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&anthropicResp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if len(anthropicResp.Content) == 0 {
		return nil, fmt.Errorf("%w: no content blocks in Anthropic response", ErrEmptyResponse)
	}

	total := anthropicResp.Usage.InputTokens + anthropicResp.Usage.OutputTokens
	if total > r.cfg.Anthropic.MaxTokenPerMinute/2 {
		r.logger.Warn("Token usage has exceeded 50% of the per-minute limit",
			logger.IntField("remaining", r.tokenLimiter.GetRemaining()))
	}
	if err := r.tokenLimiter.Wait(ctx, total); err != nil {
		return nil, fmt.Errorf("failed to wait for token limit: %w", err)
	}

	out := &dto.ChatResponse{}
	for _, block := range anthropicResp.Content {
		switch block.Type {
		case "text":
			out.Content += block.Text
		case "tool_use":
			out.ToolCalls = append(out.ToolCalls, dto.ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: block.Input,
			})
		}
	}
	return out, nil
}
