package query

import (
	"context"
	"strings"
	"time"

	"github.com/mangrove-ai/mangrove/pkg/ai"
	"github.com/mangrove-ai/mangrove/pkg/logger"
	"github.com/mangrove-ai/mangrove/pkg/store"
	"github.com/mangrove-ai/mangrove/pkg/tokens"
)

// Request is one retrieval run.
type Request struct {
	Tenant  string
	Query   string
	Mode    Mode
	History []ai.ChatMessage
}

// Result is what the retrieval pipeline hands to answer synthesis: the
// rendered background-data block, the ordered source list for citation
// validation, and the truncation stats.
type Result struct {
	Mode     Mode
	Context  string
	Sources  []Source
	Keywords Keywords
	Stats    TruncateStats
}

// Empty reports whether retrieval produced no usable context.
func (r Result) Empty() bool {
	return len(r.Sources) == 0
}

// PipelineParams configures a query Pipeline.
type PipelineParams struct {
	Client ai.Client
	Graph  store.GraphStore
	Vector store.VectorStore
	Cache  store.ExtractionCache
	Codec  *tokens.Codec

	// TopK bounds each vector search. Zero means 20.
	TopK int
	// ContextBudget is the total token budget for retrieved context.
	// Zero means 8000.
	ContextBudget int
	// BudgetRatios splits ContextBudget across entities, relations and
	// chunks. Empty means 0.4/0.3/0.3.
	BudgetRatios []float64
	// Precedence is the round-robin merge order. Empty means entity,
	// relation, chunk.
	Precedence []ItemKind
	// SectionHeaders renders per-kind headers in the context block.
	SectionHeaders bool

	MaxRetries int
	RetryBase  time.Duration
}

// Pipeline runs the retrieval stages for one query: keyword extraction,
// candidate search, truncation, round-robin merge, and context build.
// Stages are skipped when the mode does not use their inputs; empty
// stage outputs are valid, not errors.
type Pipeline struct {
	keywords       *KeywordExtractor
	searcher       *Searcher
	budget         int
	ratios         []float64
	precedence     []ItemKind
	sectionHeaders bool
}

// NewPipeline creates a query Pipeline.
func NewPipeline(p PipelineParams) *Pipeline {
	if p.ContextBudget < 1 {
		p.ContextBudget = 8000
	}
	return &Pipeline{
		keywords:       NewKeywordExtractor(p.Client, p.Cache, p.MaxRetries, p.RetryBase),
		searcher:       NewSearcher(p.Client, p.Graph, p.Vector, p.Codec, p.TopK),
		budget:         p.ContextBudget,
		ratios:         p.BudgetRatios,
		precedence:     p.Precedence,
		sectionHeaders: p.SectionHeaders,
	}
}

// Run executes the retrieval stages. For ModeBypass it returns an empty
// result immediately; synthesis then talks to the model without context.
func (p *Pipeline) Run(ctx context.Context, req Request) (Result, error) {
	tenant, err := store.ValidateTenant(req.Tenant)
	if err != nil {
		return Result{}, err
	}
	res := Result{Mode: req.Mode}
	if req.Mode == ModeBypass {
		return res, nil
	}

	start := time.Now()

	if req.Mode.usesKeywords() {
		kw, err := p.keywords.Extract(ctx, tenant, req.Query, renderHistory(req.History))
		if err != nil {
			return Result{}, err
		}
		res.Keywords = kw
	}

	candidates, err := p.searcher.Search(ctx, tenant, req.Query, req.Mode, res.Keywords)
	if err != nil {
		return Result{}, err
	}

	truncated, stats := Truncate(candidates, p.budget, p.ratios)
	res.Stats = stats

	merged := MergeRoundRobin(truncated, p.precedence)
	res.Context, res.Sources = BuildContext(merged, req.History, ContextOptions{SectionHeaders: p.sectionHeaders})

	logger.Debug("[Query] Retrieval done",
		"tenant", tenant,
		"mode", req.Mode,
		"sources", len(res.Sources),
		"tokens", stats.TokensUsed,
		"duration", time.Since(start))
	return res, nil
}

func renderHistory(history []ai.ChatMessage) string {
	if len(history) == 0 {
		return ""
	}
	parts := make([]string, 0, len(history))
	for _, msg := range history {
		parts = append(parts, msg.Role+": "+msg.Message)
	}
	return strings.Join(parts, "\n")
}
