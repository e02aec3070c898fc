package ollama

import (
	"context"
	"fmt"
	"strings"

	"github.com/mangrove-ai/mangrove/pkg/ai"

	"github.com/ollama/ollama/api"
)

// Embed creates a vector embedding for one input text.
func (c *Client) Embed(ctx context.Context, input string) ([]float32, error) {
	res, err := c.EmbedBatch(ctx, []string{input})
	if err != nil {
		return nil, err
	}
	if len(res) != 1 {
		return nil, fmt.Errorf("unexpected embedding result size: got %d want 1", len(res))
	}
	return res[0], nil
}

// EmbedBatch creates embeddings for multiple inputs in one request.
// Blank inputs produce zero vectors without a server call. Every
// vector is truncated or zero-padded to the configured dimension.
func (c *Client) EmbedBatch(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return nil, nil
	}

	idxMap := make([]int, 0, len(inputs))
	filtered := make([]string, 0, len(inputs))
	out := make([][]float32, len(inputs))
	for i, in := range inputs {
		if strings.TrimSpace(in) == "" {
			out[i] = make([]float32, c.embeddingDim)
			continue
		}
		idxMap = append(idxMap, i)
		filtered = append(filtered, in)
	}
	if len(filtered) == 0 {
		return out, nil
	}

	req := &api.EmbedRequest{
		Model: c.embeddingModel,
		Input: filtered,
	}

	if err := c.reqLock.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.reqLock.Release(1)

	res, err := c.embedAPI.Embed(ctx, req)
	if err != nil {
		return nil, wrapErr(err)
	}

	c.modifyMetrics(ai.ModelMetrics{
		InputTokens: res.PromptEvalCount,
		TotalTokens: res.PromptEvalCount,
		DurationMs:  res.TotalDuration.Milliseconds(),
	})

	if len(res.Embeddings) != len(filtered) {
		return nil, fmt.Errorf("embedding response size mismatch: got %d want %d", len(res.Embeddings), len(filtered))
	}

	for i, emb := range res.Embeddings {
		vec := make([]float32, 0, c.embeddingDim)
		for _, v := range emb {
			if len(vec) >= c.embeddingDim {
				break
			}
			vec = append(vec, v)
		}
		if len(vec) < c.embeddingDim {
			padded := make([]float32, c.embeddingDim)
			copy(padded, vec)
			vec = padded
		}
		out[idxMap[i]] = vec
	}
	return out, nil
}
