package engine

import (
	"regexp"
	"strings"

	"github.com/mangrove-ai/mangrove/pkg/query"
)

var citationPattern = regexp.MustCompile(`\[\[([^\[\]]+)\]\]`)

// StripInvalidCitations removes [[id]] citations whose id is not in the
// source list actually given to the model. Hallucinated references are
// dropped silently; valid ones pass through untouched.
func StripInvalidCitations(answer string, sources []query.Source) string {
	if len(sources) == 0 {
		return citationPattern.ReplaceAllString(answer, "")
	}
	valid := make(map[string]bool, len(sources))
	for _, src := range sources {
		valid[src.ID] = true
	}
	return citationPattern.ReplaceAllStringFunc(answer, func(match string) string {
		id := strings.TrimSuffix(strings.TrimPrefix(match, "[["), "]]")
		if valid[id] {
			return match
		}
		return ""
	})
}
