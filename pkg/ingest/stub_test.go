package ingest

import (
	"context"
	"strings"
	"sync"

	"github.com/mangrove-ai/mangrove/pkg/ai"
)

// stubClient is a deterministic ai.Client for pipeline tests. It
// returns a fixed extraction for every chunk, empty gleaning results,
// and hash-derived embeddings.
type stubClient struct {
	mu          sync.Mutex
	extraction  string
	formatCalls int
	embedCalls  int
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

const stubEmptyExtraction = `{"entities": [], "relationships": []}`

func newStubClient() *stubClient {
	return &stubClient{extraction: stubExtraction}
}

func (s *stubClient) Complete(_ context.Context, _ string, opts ...ai.GenerateOption) (string, error) {
	reportUsage(opts)
	return "A concise summary.", nil
}

func (s *stubClient) CompleteWithFormat(_ context.Context, name, _, _ string, out any, opts ...ai.GenerateOption) (string, error) {
	s.mu.Lock()
	s.formatCalls++
	s.mu.Unlock()

	reportUsage(opts)
	raw := s.extraction
	if strings.HasPrefix(name, "glean") || strings.HasPrefix(name, "extract_keywords") {
		raw = stubEmptyExtraction
	}
	return raw, ai.UnmarshalFlexible(raw, out)
}

func reportUsage(opts []ai.GenerateOption) {
	var options ai.GenerateOptions
	for _, o := range opts {
		o(&options)
	}
	if options.Usage != nil {
		*options.Usage = ai.Usage{InputTokens: 40, OutputTokens: 15, TotalTokens: 55}
	}
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
