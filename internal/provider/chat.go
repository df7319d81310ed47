package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// ChatClient talks to an OpenAI-compatible chat-completions endpoint.
type ChatClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewChatClient creates a chat client. baseURL defaults to the
// OpenRouter endpoint when empty.
func NewChatClient(apiKey, baseURL string, timeout time.Duration) *ChatClient {
	if baseURL == "" {
		baseURL = "https://openrouter.ai/api/v1"
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &ChatClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model           string             `json:"model"`
	Messages        []chatMessage      `json:"messages"`
	Temperature     float64            `json:"temperature,omitempty"`
	MaxTokens       int                `json:"max_tokens,omitempty"`
	Verbosity       string             `json:"verbosity,omitempty"`
	ReasoningEffort string             `json:"reasoning_effort,omitempty"`
	ResponseFormat  *chatRespFormatOpt `json:"response_format,omitempty"`
}

type chatRespFormatOpt struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Complete sends one chat request. A 4xx rejection maps to ErrPermanent
// and a finish_reason of "length" maps to ErrTruncated so the retry
// executor can classify the failure.
func (c *ChatClient) Complete(ctx context.Context, req Request) (*Response, error) {
	body := chatRequest{
		Model: req.Model,
		Messages: []chatMessage{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: req.UserPrompt},
		},
		Temperature:     req.Temperature,
		MaxTokens:       req.MaxOutputTokens,
		Verbosity:       req.Verbosity,
		ReasoningEffort: req.ReasoningEffort,
	}
	if req.ResponseFormat != "" {
		body.ResponseFormat = &chatRespFormatOpt{Type: req.ResponseFormat}
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", fmt.Sprintf("%s/chat/completions", c.baseURL), bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp map[string]interface{}
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, fmt.Errorf("provider rejected request (status %d): %v: %w", resp.StatusCode, errResp, ErrPermanent)
		}
		return nil, fmt.Errorf("provider returned status %d: %v", resp.StatusCode, errResp)
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, fmt.Errorf("failed to decode chat response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("empty response from provider: %w", ErrParse)
	}

	choice := chatResp.Choices[0]
	if choice.FinishReason == "length" {
		return nil, fmt.Errorf("completion stopped at max_tokens=%d: %w", req.MaxOutputTokens, ErrTruncated)
	}

	model := chatResp.Model
	if model == "" {
		model = req.Model
	}
	return &Response{
		Text:  choice.Message.Content,
		Model: model,
		Usage: Usage{
			InputTokens:  chatResp.Usage.PromptTokens,
			OutputTokens: chatResp.Usage.CompletionTokens,
		},
	}, nil
}
