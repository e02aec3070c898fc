package openai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mangrove-ai/mangrove/pkg/ai"

	"github.com/openai/openai-go/v3"
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

// EmbedBatch creates embeddings for multiple inputs in a single
// request. Results correspond one-to-one with the input order. Blank
// inputs produce zero vectors without a provider call, and every
// vector is truncated or zero-padded to the configured dimension.
func (c *Client) EmbedBatch(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return nil, nil
	}

	idxMap, filtered, out := normalizeEmbeddingInputs(inputs, c.embeddingDim)
	if len(filtered) == 0 {
		return out, nil
	}

	body := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: filtered},
		Model: c.embeddingModel,
	}

	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.sem.Release(1)

	start := time.Now()
	response, err := c.embedAPI.Embeddings.New(ctx, body)
	if err != nil {
		return nil, wrapErr(err)
	}
	c.modifyMetrics(ai.ModelMetrics{
		InputTokens: int(response.Usage.PromptTokens),
		TotalTokens: int(response.Usage.TotalTokens),
		DurationMs:  time.Since(start).Milliseconds(),
	})

	if len(response.Data) != len(filtered) {
		return nil, fmt.Errorf("embedding response size mismatch: got %d want %d", len(response.Data), len(filtered))
	}

	for _, embedding := range response.Data {
		dataIdx := int(embedding.Index)
		if dataIdx < 0 || dataIdx >= len(filtered) {
			return nil, fmt.Errorf("embedding index out of range: %d", embedding.Index)
		}
		vec := make([]float32, 0, c.embeddingDim)
		for _, v := range embedding.Embedding {
			if len(vec) >= c.embeddingDim {
				break
			}
			vec = append(vec, float32(v))
		}
		if len(vec) < c.embeddingDim {
			padded := make([]float32, c.embeddingDim)
			copy(padded, vec)
			vec = padded
		}
		out[idxMap[dataIdx]] = vec
	}
	for i := range out {
		if out[i] == nil {
			return nil, fmt.Errorf("missing embedding for index %d", i)
		}
	}
	return out, nil
}

func normalizeEmbeddingInputs(inputs []string, dim int) (idxMap []int, filtered []string, out [][]float32) {
	idxMap = make([]int, 0, len(inputs))
	filtered = make([]string, 0, len(inputs))
	out = make([][]float32, len(inputs))
	for i, in := range inputs {
		if strings.TrimSpace(in) == "" {
			out[i] = make([]float32, dim)
			continue
		}
		idxMap = append(idxMap, i)
		filtered = append(filtered, in)
	}
	return idxMap, filtered, out
}
