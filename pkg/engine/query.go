package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/mangrove-ai/mangrove/internal/util"
	"github.com/mangrove-ai/mangrove/pkg/ai"
	"github.com/mangrove-ai/mangrove/pkg/logger"
	"github.com/mangrove-ai/mangrove/pkg/query"
)

// QueryRequest is one question against a tenant's knowledge base.
type QueryRequest struct {
	Tenant         string
	Query          string
	Mode           string
	History        []ai.ChatMessage
	ResponseFormat string
}

// QuerySource is one source behind an answer. Citable sources carry the
// id usable in [[id]] citations; the synthesized pseudo-source carries
// the answer itself and is tagged rather than recognizable only by
// missing fields.
type QuerySource struct {
	ID          string  `json:"id,omitempty"`
	Kind        string  `json:"kind,omitempty"`
	Text        string  `json:"text"`
	Score       float64 `json:"score,omitempty"`
	DocumentID  string  `json:"document_id,omitempty"`
	ChunkIndex  int     `json:"chunk_index,omitempty"`
	Synthesized bool    `json:"synthesized"`
}

// QueryResult is a complete answer with its source list. Partial
// results are never returned: a failed synthesis surfaces as an error.
type QueryResult struct {
	Answer  string        `json:"answer"`
	Mode    query.Mode    `json:"mode"`
	Sources []QuerySource `json:"sources"`
}

// Query answers one question: retrieval per the requested mode, answer
// synthesis over the retrieved context, and citation validation. With
// no retrievable context the model states that instead of guessing.
func (e *Engine) Query(ctx context.Context, req QueryRequest) (QueryResult, error) {
	mode, err := query.ParseMode(req.Mode)
	if err != nil {
		return QueryResult{}, err
	}
	start := time.Now()

	res, err := e.retrieval.Run(ctx, query.Request{
		Tenant:  req.Tenant,
		Query:   req.Query,
		Mode:    mode,
		History: req.History,
	})
	if err != nil {
		return QueryResult{}, fmt.Errorf("retrieval failed: %w", err)
	}

	answer, err := e.synthesize(ctx, mode, req, res)
	if err != nil {
		return QueryResult{}, fmt.Errorf("synthesis failed: %w", err)
	}

	answer = StripInvalidCitations(answer, res.Sources)

	sources := make([]QuerySource, 0, len(res.Sources)+1)
	sources = append(sources, QuerySource{Text: answer, Synthesized: true})
	for _, src := range res.Sources {
		sources = append(sources, QuerySource{
			ID:         src.ID,
			Kind:       string(src.Kind),
			Text:       src.Text,
			Score:      src.Score,
			DocumentID: src.DocumentID,
			ChunkIndex: src.ChunkIndex,
		})
	}

	logger.Info("[Engine] Query answered",
		"tenant", req.Tenant,
		"mode", mode,
		"sources", len(res.Sources),
		"duration", time.Since(start))
	return QueryResult{Answer: answer, Mode: mode, Sources: sources}, nil
}

func (e *Engine) synthesize(ctx context.Context, mode query.Mode, req QueryRequest, res query.Result) (string, error) {
	policy := util.RetryPolicy{
		MaxAttempts: e.maxRetries,
		BaseDelay:   e.retryBase,
		Classify:    ai.IsRetryable,
		Operation:   "synthesize answer",
	}

	if mode == query.ModeBypass {
		msgs := append(append([]ai.ChatMessage{}, req.History...), ai.ChatMessage{Role: "user", Message: req.Query})
		return util.RetryTransientValue(ctx, policy, func(ctx context.Context) (string, error) {
			return e.client.Chat(ctx, msgs)
		})
	}

	if res.Empty() {
		prompt := fmt.Sprintf(ai.NoDataPrompt, req.Query)
		return util.RetryTransientValue(ctx, policy, func(ctx context.Context) (string, error) {
			return e.client.Complete(ctx, prompt)
		})
	}

	format := req.ResponseFormat
	if format == "" {
		format = e.responseFormat
	}
	system := fmt.Sprintf(ai.QuerySystemPrompt, mode.Framing(), res.Context, format)
	return util.RetryTransientValue(ctx, policy, func(ctx context.Context) (string, error) {
		return e.client.Complete(ctx, req.Query, ai.WithSystemPrompts(system))
	})
}
