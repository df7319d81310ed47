// Package provider defines the language-model provider contract the
// pipeline depends on, plus HTTP clients for OpenAI-compatible chat and
// embeddings endpoints and a plain-HTTP machine-translation service
// used for drift baselines.
package provider

import (
	"context"
	"errors"
)

// Error taxonomy driving the retry executor. Callers classify with
// errors.Is.
var (
	// ErrPermanent marks a malformed or rejected request. Never retried.
	ErrPermanent = errors.New("permanent request error")
	// ErrTruncated marks incomplete output cut off at the token limit.
	// Retried with a grown output-token budget.
	ErrTruncated = errors.New("output truncated")
	// ErrParse marks output that arrived but is not well-formed.
	// Retried with a smaller budget growth.
	ErrParse = errors.New("malformed model output")
)

// Usage reports token consumption for one model call.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Request is one model call. The provider is a black box satisfying
// this contract; auth and endpoint configuration are client concerns.
type Request struct {
	Model           string  `json:"model"`
	SystemPrompt    string  `json:"system_prompt"`
	UserPrompt      string  `json:"user_prompt"`
	Temperature     float64 `json:"temperature"`
	Verbosity       string  `json:"verbosity,omitempty"`
	ReasoningEffort string  `json:"reasoning_effort,omitempty"`
	MaxOutputTokens int     `json:"max_output_tokens"`
	// ResponseFormat, when set, requests structured output
	// (e.g. "json_object").
	ResponseFormat string `json:"response_format,omitempty"`
}

// Response is the provider's answer to a Request.
type Response struct {
	Text  string `json:"text"`
	Model string `json:"model"`
	Usage Usage  `json:"usage"`
}

// Client executes model calls.
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Embedder produces one normalized embedding vector per input text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// BaselineTranslator produces the cheap machine-translation reference
// used for drift scoring.
type BaselineTranslator interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}
