package query

import (
	"context"
	"strings"
	"sync"

	"github.com/mangrove-ai/mangrove/pkg/ai"
)

// stubClient is a deterministic ai.Client for retrieval tests. Keyword
// extraction returns a fixed keyword set; embeddings are hash-derived
// so identical inputs always land on identical vectors.
type stubClient struct {
	mu          sync.Mutex
	keywords    string
	formatCalls int
	embedCalls  int
}

const stubKeywords = `{"high_level_keywords": ["corporate structure"], "low_level_keywords": ["ACME CORP"]}`

func newStubClient() *stubClient {
	return &stubClient{keywords: stubKeywords}
}

func (s *stubClient) Complete(_ context.Context, _ string, _ ...ai.GenerateOption) (string, error) {
	return "An answer.", nil
}

func (s *stubClient) CompleteWithFormat(_ context.Context, name, _, _ string, out any, opts ...ai.GenerateOption) (string, error) {
	s.mu.Lock()
	s.formatCalls++
	s.mu.Unlock()

	var options ai.GenerateOptions
	for _, o := range opts {
		o(&options)
	}
	if options.Usage != nil {
		*options.Usage = ai.Usage{InputTokens: 30, OutputTokens: 12, TotalTokens: 42}
	}

	raw := `{}`
	if strings.HasPrefix(name, "extract_keywords") {
		raw = s.keywords
	}
	return raw, ai.UnmarshalFlexible(raw, out)
}

func (s *stubClient) Chat(_ context.Context, _ []ai.ChatMessage, _ ...ai.GenerateOption) (string, error) {
	return "An answer.", nil
}

func (s *stubClient) Embed(ctx context.Context, input string) ([]float32, error) {
	res, err := s.EmbedBatch(ctx, []string{input})
	if err != nil {
		return nil, err
	}
	return res[0], nil
}

func (s *stubClient) EmbedBatch(_ context.Context, inputs []string) ([][]float32, error) {
	s.mu.Lock()
	s.embedCalls++
	s.mu.Unlock()

	out := make([][]float32, len(inputs))
	for i, in := range inputs {
		vec := make([]float32, 8)
		for j, r := range in {
			vec[j%8] += float32(r%13) / 13
		}
		out[i] = vec
	}
	return out, nil
}

func (s *stubClient) ResetMetrics() {}

func (s *stubClient) GetMetrics() ai.ModelMetrics { return ai.ModelMetrics{} }

func (s *stubClient) calls() (format, embed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.formatCalls, s.embedCalls
}
