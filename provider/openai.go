package provider

import (
	"context"
	"errors"
	"fmt"
)

const (
	defaultOpenAIBaseURL   = "https://api.openai.com"
	defaultOpenAIModel     = "gpt-4o"
	defaultOpenAIMaxTokens = 1024
)

// OpenAIProvider implements Provider using the OpenAI Chat Completions API.
// Any compatible endpoint (OpenRouter, a local gateway) works via BaseURL.
type OpenAIProvider struct {
	config Config
}

// NewOpenAIProvider creates an OpenAI provider. Zero config fields take the
// package defaults.
func NewOpenAIProvider(cfg Config) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: %w", ErrMissingAPIKey)
	}
	return &OpenAIProvider{
		config: cfg.withDefaults(defaultOpenAIBaseURL, defaultOpenAIModel, defaultOpenAIMaxTokens),
	}, nil
}

func (p *OpenAIProvider) Name() string { return "openai" }

type openaiRequest struct {
	Model     string          `json:"model"`
	Messages  []openaiMessage `json:"messages"`
	MaxTokens int             `json:"max_tokens,omitempty"`
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Message      openaiMessage `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

func (p *OpenAIProvider) Chat(ctx context.Context, messages []Message) (*Response, error) {
	req := openaiRequest{Model: p.config.Model, MaxTokens: p.config.MaxTokens}
	for _, msg := range messages {
		req.Messages = append(req.Messages, openaiMessage{Role: string(msg.Role), Content: msg.Content})
	}

	headers := map[string]string{"Authorization": "Bearer " + p.config.APIKey}
	var apiResp openaiResponse
	if err := postJSON(ctx, p.config.HTTPClient, p.config.BaseURL+"/v1/chat/completions", headers, req, &apiResp); err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	if apiResp.Error != nil {
		return nil, fmt.Errorf("openai: %s: %s", apiResp.Error.Type, apiResp.Error.Message)
	}
	if len(apiResp.Choices) == 0 {
		return nil, errors.New("openai: no choices in response")
	}

	return &Response{
		Content: apiResp.Choices[0].Message.Content,
		Usage: Usage{
			InputTokens:  apiResp.Usage.PromptTokens,
			OutputTokens: apiResp.Usage.CompletionTokens,
		},
	}, nil
}
