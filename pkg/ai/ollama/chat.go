package ollama

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mangrove-ai/mangrove/pkg/ai"

	"github.com/ollama/ollama/api"
)

// Complete sends a single-turn prompt and returns assistant text.
func (c *Client) Complete(
	ctx context.Context,
	prompt string,
	opts ...ai.GenerateOption,
) (string, error) {
	options := ai.GenerateOptions{
		Model:       c.chatModel,
		Temperature: 0.3,
	}
	for _, o := range opts {
		o(&options)
	}

	msgs := buildMessages(options.SystemPrompts, []ai.ChatMessage{{Role: "user", Message: prompt}})
	return c.chat(ctx, msgs, options, nil)
}

// CompleteWithFormat enforces a JSON schema on the response,
// unmarshals it into out, and returns the raw response text.
func (c *Client) CompleteWithFormat(
	ctx context.Context,
	name string,
	description string,
	prompt string,
	out any,
	opts ...ai.GenerateOption,
) (string, error) {
	schema := ai.GenerateSchema(out)
	formatBytes, err := json.Marshal(schema)
	if err != nil {
		return "", err
	}

	options := ai.GenerateOptions{
		Model:       c.extractModel,
		Temperature: 0.1,
	}
	for _, o := range opts {
		o(&options)
	}

	msgs := buildMessages(options.SystemPrompts, []ai.ChatMessage{{Role: "user", Message: prompt}})
	raw, err := c.chat(ctx, msgs, options, json.RawMessage(formatBytes))
	if err != nil {
		return "", err
	}
	if raw == "" {
		return "", fmt.Errorf("empty response from model %s", options.Model)
	}
	return raw, ai.UnmarshalFlexible(raw, out)
}

// Chat sends a multi-turn conversation and returns the assistant reply.
func (c *Client) Chat(
	ctx context.Context,
	messages []ai.ChatMessage,
	opts ...ai.GenerateOption,
) (string, error) {
	options := ai.GenerateOptions{
		Model:       c.chatModel,
		Temperature: 0.2,
	}
	for _, o := range opts {
		o(&options)
	}

	msgs := buildMessages(options.SystemPrompts, messages)
	return c.chat(ctx, msgs, options, nil)
}

func buildMessages(systemPrompts []string, messages []ai.ChatMessage) []api.Message {
	msgs := make([]api.Message, 0, len(systemPrompts)+len(messages))
	for _, sp := range systemPrompts {
		msgs = append(msgs, api.Message{Role: "system", Content: sp})
	}
	for _, m := range messages {
		switch m.Role {
		case "user", "assistant":
			msgs = append(msgs, api.Message{Role: m.Role, Content: m.Message})
		}
	}
	return msgs
}

func (c *Client) chat(
	ctx context.Context,
	msgs []api.Message,
	options ai.GenerateOptions,
	format json.RawMessage,
) (string, error) {
	stream := false
	req := &api.ChatRequest{
		Model:    options.Model,
		Messages: msgs,
		Stream:   &stream,
		Format:   format,
		Options:  map[string]any{"temperature": options.Temperature},
	}
	if options.MaxTokens > 0 {
		req.Options["num_predict"] = options.MaxTokens
	}

	if err := c.reqLock.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer c.reqLock.Release(1)

	var final api.ChatResponse
	if err := c.api.Chat(ctx, req, func(cr api.ChatResponse) error {
		final.Message.Content += cr.Message.Content
		if cr.Done {
			final.Done = true
			final.Metrics = cr.Metrics
		}
		return nil
	}); err != nil {
		return "", wrapErr(err)
	}

	c.modifyMetrics(ai.ModelMetrics{
		InputTokens:  final.Metrics.PromptEvalCount,
		OutputTokens: final.Metrics.EvalCount,
		TotalTokens:  final.Metrics.PromptEvalCount + final.Metrics.EvalCount,
		DurationMs:   final.Metrics.TotalDuration.Milliseconds(),
	})
	if options.Usage != nil {
		*options.Usage = ai.Usage{
			InputTokens:  final.Metrics.PromptEvalCount,
			OutputTokens: final.Metrics.EvalCount,
			TotalTokens:  final.Metrics.PromptEvalCount + final.Metrics.EvalCount,
		}
	}

	return final.Message.Content, nil
}
