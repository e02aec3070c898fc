// Package ai defines the model-provider contract the engine depends
// on: chat completion, structured completion, and embeddings. Concrete
// providers live in the openai and ollama subpackages.
package ai

import "context"

// ChatMessage is a single message in a conversation.
//
// Role must be "user" or "assistant".
type ChatMessage struct {
	Message string `json:"message"`
	Role    string `json:"role"`
}

// GenerateOptions holds per-request configuration.
type GenerateOptions struct {
	Model         string
	SystemPrompts []string
	Temperature   float64
	MaxTokens     int
	Usage         *Usage
}

// Usage reports the token consumption of one request, as opposed to
// the accumulated ModelMetrics.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// GenerateOption is a functional option for generation requests.
type GenerateOption func(*GenerateOptions)

// WithModel overrides the model used for one request.
func WithModel(model string) GenerateOption {
	return func(o *GenerateOptions) { o.Model = model }
}

// WithSystemPrompts prepends system prompts to the request.
func WithSystemPrompts(prompts ...string) GenerateOption {
	return func(o *GenerateOptions) { o.SystemPrompts = prompts }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(temp float64) GenerateOption {
	return func(o *GenerateOptions) { o.Temperature = temp }
}

// WithMaxTokens caps the completion length for one request.
func WithMaxTokens(n int) GenerateOption {
	return func(o *GenerateOptions) { o.MaxTokens = n }
}

// WithUsage fills u with the request's token usage once the call
// returns, so callers caching a result can persist its cost alongside.
func WithUsage(u *Usage) GenerateOption {
	return func(o *GenerateOptions) { o.Usage = u }
}

// ModelMetrics accumulates usage across requests since the last reset.
type ModelMetrics struct {
	InputTokens  int   `json:"input_tokens"`
	OutputTokens int   `json:"output_tokens"`
	TotalTokens  int   `json:"total_tokens"`
	DurationMs   int64 `json:"duration_ms"`
}

// Client is the model-provider interface used for extraction, query
// synthesis, and embeddings.
//
// Embed vectors may be longer than the vector store's configured
// dimension; the store truncates deterministically. EmbedBatch results
// correspond one-to-one with the input order.
type Client interface {
	Complete(ctx context.Context, prompt string, opts ...GenerateOption) (string, error)

	// CompleteWithFormat requests schema-constrained JSON output,
	// unmarshals it into out, and also returns the raw response text so
	// callers can cache the exact model output.
	CompleteWithFormat(ctx context.Context, name, description, prompt string, out any, opts ...GenerateOption) (string, error)

	Chat(ctx context.Context, msgs []ChatMessage, opts ...GenerateOption) (string, error)

	Embed(ctx context.Context, input string) ([]float32, error)
	EmbedBatch(ctx context.Context, inputs []string) ([][]float32, error)

	ResetMetrics()
	GetMetrics() ModelMetrics
}
