package provider

import (
	"context"
	"fmt"
	"strings"
)

const (
	defaultAnthropicBaseURL   = "https://api.anthropic.com"
	defaultAnthropicModel     = "claude-sonnet-4-20250514"
	defaultAnthropicMaxTokens = 1024
	anthropicAPIVersion       = "2023-06-01"
)

// AnthropicProvider implements Provider using the Anthropic Messages API.
type AnthropicProvider struct {
	config Config
}

// NewAnthropicProvider creates an Anthropic provider. Zero config fields take
// the package defaults.
func NewAnthropicProvider(cfg Config) (*AnthropicProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: %w", ErrMissingAPIKey)
	}
	return &AnthropicProvider{
		config: cfg.withDefaults(defaultAnthropicBaseURL, defaultAnthropicModel, defaultAnthropicMaxTokens),
	}, nil
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	ID      string `json:"id"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text,omitempty"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (p *AnthropicProvider) Chat(ctx context.Context, messages []Message) (*Response, error) {
	req := anthropicRequest{
		Model:     p.config.Model,
		MaxTokens: p.config.MaxTokens,
	}
	// System messages go in the top-level field.
	for _, msg := range messages {
		if msg.Role == RoleSystem {
			req.System = msg.Content
			continue
		}
		req.Messages = append(req.Messages, anthropicMessage{Role: string(msg.Role), Content: msg.Content})
	}

	headers := map[string]string{
		"x-api-key":         p.config.APIKey,
		"anthropic-version": anthropicAPIVersion,
	}
	var apiResp anthropicResponse
	if err := postJSON(ctx, p.config.HTTPClient, p.config.BaseURL+"/v1/messages", headers, req, &apiResp); err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}
	if apiResp.Error != nil {
		return nil, fmt.Errorf("anthropic: %s: %s", apiResp.Error.Type, apiResp.Error.Message)
	}

	var text []string
	for _, item := range apiResp.Content {
		if item.Type == "text" {
			text = append(text, item.Text)
		}
	}
	return &Response{
		Content: strings.Join(text, ""),
		Usage: Usage{
			InputTokens:  apiResp.Usage.InputTokens,
			OutputTokens: apiResp.Usage.OutputTokens,
		},
	}, nil
}
