package engine

import (
	"context"
	"strings"
	"sync"

	"github.com/mangrove-ai/mangrove/pkg/ai"
)

// stubClient is a deterministic ai.Client covering both sides of the
// engine: extraction during ingestion and keyword extraction plus
// synthesis during queries.
type stubClient struct {
	mu          sync.Mutex
	answer      string
	formatCalls int
	chatCalls   int
}

const stubExtraction = `{
	"entities": [
		{"name": "ACME CORP", "type": "ORGANIZATION", "description": "A company that makes everything."},
		{"name": "BERLIN", "type": "LOCATION", "description": "Capital of Germany."}
	],
	"relationships": [
		{"source": "ACME CORP", "target": "BERLIN", "description": "Acme Corp is headquartered in Berlin.", "keywords": ["headquarters"], "strength": 8}
	]
}`

const stubKeywords = `{"high_level_keywords": ["corporate structure"], "low_level_keywords": ["ACME CORP"]}`

const stubEmpty = `{"entities": [], "relationships": []}`

func newStubClient() *stubClient {
	return &stubClient{answer: "Acme Corp is based in Berlin."}
}

func (s *stubClient) Complete(_ context.Context, _ string, _ ...ai.GenerateOption) (string, error) {
	return s.answer, nil
}

func (s *stubClient) CompleteWithFormat(_ context.Context, name, _, _ string, out any, _ ...ai.GenerateOption) (string, error) {
	s.mu.Lock()
	s.formatCalls++
	s.mu.Unlock()

	raw := stubExtraction
	switch {
	case strings.HasPrefix(name, "extract_keywords"):
		raw = stubKeywords
	case strings.HasPrefix(name, "glean"):
		raw = stubEmpty
	}
	return raw, ai.UnmarshalFlexible(raw, out)
}

func (s *stubClient) Chat(_ context.Context, _ []ai.ChatMessage, _ ...ai.GenerateOption) (string, error) {
	s.mu.Lock()
	s.chatCalls++
	s.mu.Unlock()
	return s.answer, nil
}

func (s *stubClient) Embed(ctx context.Context, input string) ([]float32, error) {
	res, err := s.EmbedBatch(ctx, []string{input})
	if err != nil {
		return nil, err
	}
	return res[0], nil
}

func (s *stubClient) EmbedBatch(_ context.Context, inputs []string) ([][]float32, error) {
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
