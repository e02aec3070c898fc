package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mangrove-ai/mangrove/internal/util"
	"github.com/mangrove-ai/mangrove/pkg/ai"
	"github.com/mangrove-ai/mangrove/pkg/common"
	"github.com/mangrove-ai/mangrove/pkg/logger"
	"github.com/mangrove-ai/mangrove/pkg/store"
)

// Keywords are the retrieval handles extracted from one user query.
// Both lists may legitimately be empty; an empty result is cached like
// any other so a keywordless query is not re-extracted.
type Keywords struct {
	HighLevel []string `json:"high_level_keywords" jsonschema_description:"Overarching concepts or themes of the question"`
	LowLevel  []string `json:"low_level_keywords" jsonschema_description:"Specific entities, names and concrete details of the question"`
}

// Empty reports whether extraction found nothing usable.
func (k Keywords) Empty() bool {
	return len(k.HighLevel) == 0 && len(k.LowLevel) == 0
}

// KeywordExtractor extracts query keywords with the extraction cache
// in front of the model, keyed by the hash of history plus query.
type KeywordExtractor struct {
	client     ai.Client
	cache      store.ExtractionCache
	maxRetries int
	retryBase  time.Duration
}

// NewKeywordExtractor creates a KeywordExtractor.
func NewKeywordExtractor(client ai.Client, cache store.ExtractionCache, maxRetries int, retryBase time.Duration) *KeywordExtractor {
	return &KeywordExtractor{client: client, cache: cache, maxRetries: maxRetries, retryBase: retryBase}
}

// Extract returns the keywords for one query, from cache when the
// same query text was seen before.
func (e *KeywordExtractor) Extract(ctx context.Context, tenant, queryText, history string) (Keywords, error) {
	input := history + "\x00" + queryText
	hash := common.ContentHash(input)

	var kw Keywords
	entry, err := e.cache.Get(ctx, tenant, common.CacheKindKeywordExtraction, hash)
	if err == nil {
		if parseErr := ai.UnmarshalFlexible(entry.RawResult, &kw); parseErr == nil {
			logger.Debug("[Query] Keyword cache hit", "tenant", tenant)
			return dedupeKeywords(kw), nil
		}
	} else if !errors.Is(err, store.ErrNotFound) {
		return Keywords{}, err
	}

	prompt := fmt.Sprintf(ai.KeywordsPrompt, history, queryText)
	policy := util.RetryPolicy{
		MaxAttempts: e.maxRetries,
		BaseDelay:   e.retryBase,
		Classify:    ai.IsRetryable,
		Operation:   "extract keywords",
	}
	var usage ai.Usage
	raw, err := util.RetryTransientValue(ctx, policy, func(ctx context.Context) (string, error) {
		kw = Keywords{}
		return e.client.CompleteWithFormat(ctx,
			"extract_keywords",
			"Extract high-level and low-level keywords from a user question.",
			prompt, &kw,
			ai.WithUsage(&usage))
	})
	if err != nil {
		return Keywords{}, err
	}

	if _, err := e.cache.Store(ctx, common.CacheEntry{
		Tenant:      tenant,
		Kind:        common.CacheKindKeywordExtraction,
		ContentHash: hash,
		RawResult:   raw,
		TokensUsed:  usage.TotalTokens,
	}); err != nil {
		return Keywords{}, err
	}
	return dedupeKeywords(kw), nil
}

func dedupeKeywords(kw Keywords) Keywords {
	return Keywords{
		HighLevel: store.DedupeStrings(kw.HighLevel),
		LowLevel:  store.DedupeStrings(kw.LowLevel),
	}
}
