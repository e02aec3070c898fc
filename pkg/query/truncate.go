package query

import (
	"github.com/mangrove-ai/mangrove/pkg/logger"
	"github.com/mangrove-ai/mangrove/pkg/tokens"
)

// Default budget split across entity, relation and chunk candidates.
var defaultBudgetRatios = []float64{0.4, 0.3, 0.3}

// TruncateStats reports what the truncate stage kept and dropped.
// Included plus Truncated always equals the total candidate count.
type TruncateStats struct {
	ItemsIncluded  int
	ItemsTruncated int
	TokensUsed     int
}

// Truncate fits the candidate lists into a total token budget. The
// budget is split by ratio across the three lists; within a list the
// ranked order is kept and an item that would overflow the list's share
// is dropped whole, never cut mid-text.
func Truncate(c Candidates, totalBudget int, ratios []float64) (Candidates, TruncateStats) {
	if len(ratios) != 3 {
		ratios = defaultBudgetRatios
	}
	shares := tokens.SplitBudget(totalBudget, ratios...)

	var out Candidates
	var stats TruncateStats
	out.Entities = fitList(c.Entities, shares[0], &stats)
	out.Relations = fitList(c.Relations, shares[1], &stats)
	out.Chunks = fitList(c.Chunks, shares[2], &stats)

	if stats.ItemsTruncated > 0 {
		logger.Debug("[Query] Context truncated",
			"included", stats.ItemsIncluded,
			"truncated", stats.ItemsTruncated,
			"tokens", stats.TokensUsed,
			"budget", totalBudget)
	}
	return out, stats
}

// fitList keeps ranked items until the first one that would overflow the
// share; everything from that item on is dropped so a lower-ranked item
// can never leapfrog a higher-ranked one into the context.
func fitList(items []Item, share int, stats *TruncateStats) []Item {
	var kept []Item
	used := 0
	for i, it := range items {
		if used+it.Tokens > share {
			stats.ItemsTruncated += len(items) - i
			break
		}
		used += it.Tokens
		kept = append(kept, it)
		stats.ItemsIncluded++
	}
	stats.TokensUsed += used
	return kept
}
