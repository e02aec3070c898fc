package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mangrove-ai/mangrove/internal/util"
	"github.com/mangrove-ai/mangrove/pkg/ai"
	"github.com/mangrove-ai/mangrove/pkg/common"
	"github.com/mangrove-ai/mangrove/pkg/logger"
	"github.com/mangrove-ai/mangrove/pkg/store"
)

type extractEntity struct {
	Name        string `json:"name" jsonschema_description:"Name of the entity, all letters capitalized"`
	Type        string `json:"type" jsonschema_description:"One of the provided entity types"`
	Description string `json:"description" jsonschema_description:"Comprehensive description of the entity's attributes, activities and information provided by the source."`
}

type extractRelationship struct {
	Source      string   `json:"source" jsonschema_description:"Name of the source entity"`
	Target      string   `json:"target" jsonschema_description:"Name of the target entity"`
	Description string   `json:"description" jsonschema_description:"Explanation as to why the source entity and the target entity are related to each other"`
	Keywords    []string `json:"keywords" jsonschema_description:"Keywords summarizing the relationship"`
	Strength    float64  `json:"strength" jsonschema_description:"A numeric score between 1 and 10 indicating strength of the relationship"`
}

type extractResponse struct {
	Entities      []extractEntity       `json:"entities" jsonschema_description:"Entities identified in the text document"`
	Relationships []extractRelationship `json:"relationships" jsonschema_description:"Relationships identified in the text document"`
}

// Extractor runs entity/relation extraction over chunks. Every model
// call is content-addressed in the extraction cache: the raw model
// output is stored under the hash of the exact text that was submitted,
// so re-ingesting unchanged content never calls the model again.
type Extractor struct {
	client ai.Client
	cache  store.ExtractionCache

	entityTypes    []string
	language       string
	gleaningRounds int
	maxRetries     int
	retryBase      time.Duration
}

// ExtractorParams configures an Extractor.
type ExtractorParams struct {
	Client ai.Client
	Cache  store.ExtractionCache

	EntityTypes    []string
	Language       string
	GleaningRounds int
	MaxRetries     int
	RetryBase      time.Duration
}

// NewExtractor creates an Extractor.
func NewExtractor(params ExtractorParams) *Extractor {
	language := params.Language
	if language == "" {
		language = "English"
	}
	return &Extractor{
		client:         params.Client,
		cache:          params.Cache,
		entityTypes:    params.EntityTypes,
		language:       language,
		gleaningRounds: params.GleaningRounds,
		maxRetries:     params.MaxRetries,
		retryBase:      params.RetryBase,
	}
}

// ExtractChunk extracts entities and relations from one chunk,
// including any configured gleaning rounds. Results carry the chunk id
// and document id as provenance.
func (x *Extractor) ExtractChunk(ctx context.Context, chunk common.Chunk) ([]common.Entity, []common.Relation, error) {
	types := strings.Join(x.entityTypes, ",")
	systemPrompt := fmt.Sprintf(ai.ExtractPrompt, types, x.language, types)

	raw, res, err := x.completeCached(ctx, completeParams{
		tenant:      chunk.Tenant,
		kind:        common.CacheKindEntityExtraction,
		chunkID:     chunk.ID,
		input:       chunk.Text,
		name:        "extract_entities_and_relationships",
		description: "Extract entities and relationships from a provided document.",
		prompt:      chunk.Text,
		system:      systemPrompt,
	})
	if err != nil {
		return nil, nil, err
	}

	entities, relations := res.toDomain(chunk)

	previous := raw
	for round := 1; round <= x.gleaningRounds; round++ {
		gleanPrompt := fmt.Sprintf(ai.GleaningPrompt, previous) + "\n\nDocument text:\n" + chunk.Text
		previous, res, err = x.completeCached(ctx, completeParams{
			tenant:      chunk.Tenant,
			kind:        common.CacheKindGleaning,
			chunkID:     chunk.ID,
			input:       gleanPrompt,
			name:        "glean_entities_and_relationships",
			description: "Extract entities and relationships missed by a previous extraction.",
			prompt:      gleanPrompt,
			system:      systemPrompt,
		})
		if err != nil {
			return nil, nil, err
		}
		gleanedEntities, gleanedRelations := res.toDomain(chunk)
		if len(gleanedEntities) == 0 && len(gleanedRelations) == 0 {
			break
		}
		entities = append(entities, gleanedEntities...)
		relations = append(relations, gleanedRelations...)
	}

	return entities, relations, nil
}

// Summarize condenses accumulated description fragments of one graph
// record into a single coherent description. The result is cached by
// the hash of the joined fragments.
func (x *Extractor) Summarize(ctx context.Context, tenant, subject string, fragments []string) (string, error) {
	joined := strings.Join(fragments, common.DescriptionSeparator)
	input := subject + "\x00" + joined
	hash := common.ContentHash(input)

	if entry, err := x.cache.Get(ctx, tenant, common.CacheKindSummarization, hash); err == nil {
		return entry.RawResult, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return "", err
	}

	prompt := fmt.Sprintf(ai.SummarizePrompt, x.language, subject, joined)
	var usage ai.Usage
	summary, err := util.RetryTransientValue(ctx, x.retryPolicy("summarize"), func(ctx context.Context) (string, error) {
		return x.client.Complete(ctx, prompt, ai.WithUsage(&usage))
	})
	if err != nil {
		return "", err
	}
	summary = strings.TrimSpace(summary)

	if _, err := x.cache.Store(ctx, common.CacheEntry{
		Tenant:      tenant,
		Kind:        common.CacheKindSummarization,
		ContentHash: hash,
		RawResult:   summary,
		TokensUsed:  usage.TotalTokens,
	}); err != nil {
		return "", err
	}
	return summary, nil
}

type completeParams struct {
	tenant      string
	kind        common.CacheKind
	chunkID     string
	input       string
	name        string
	description string
	prompt      string
	system      string
}

// completeCached returns the cached raw output for the input hash, or
// calls the model and stores its raw output. The parsed response is
// rebuilt from the raw text in both paths so cache hits and misses
// behave identically.
func (x *Extractor) completeCached(ctx context.Context, p completeParams) (string, *extractResponse, error) {
	hash := common.ContentHash(p.input)

	entry, err := x.cache.Get(ctx, p.tenant, p.kind, hash)
	if err == nil {
		var res extractResponse
		if parseErr := ai.UnmarshalFlexible(entry.RawResult, &res); parseErr == nil {
			logger.Debug("[Ingest] Extraction cache hit", "tenant", p.tenant, "kind", p.kind, "chunk", p.chunkID)
			return entry.RawResult, &res, nil
		}
		// unparseable entry, fall through and re-extract
		logger.Warn("[Ingest] Discarding unparseable cache entry", "tenant", p.tenant, "kind", p.kind, "hash", hash)
	} else if !errors.Is(err, store.ErrNotFound) {
		return "", nil, err
	}

	var res extractResponse
	var usage ai.Usage
	raw, err := util.RetryTransientValue(ctx, x.retryPolicy(string(p.kind)), func(ctx context.Context) (string, error) {
		res = extractResponse{}
		return x.client.CompleteWithFormat(ctx, p.name, p.description, p.prompt, &res,
			ai.WithSystemPrompts(p.system), ai.WithUsage(&usage))
	})
	if err != nil {
		return "", nil, err
	}

	if _, err := x.cache.Store(ctx, common.CacheEntry{
		Tenant:      p.tenant,
		Kind:        p.kind,
		ChunkID:     p.chunkID,
		ContentHash: hash,
		RawResult:   raw,
		TokensUsed:  usage.TotalTokens,
	}); err != nil {
		return "", nil, err
	}
	return raw, &res, nil
}

func (x *Extractor) retryPolicy(operation string) util.RetryPolicy {
	return util.RetryPolicy{
		MaxAttempts: x.maxRetries,
		BaseDelay:   x.retryBase,
		Classify:    ai.IsRetryable,
		Operation:   operation,
	}
}

// toDomain converts a parsed extraction into graph records with
// normalized names and chunk provenance. Relations referencing an
// entity the model never listed get a stub entity so the graph stays
// consistent.
func (r *extractResponse) toDomain(chunk common.Chunk) ([]common.Entity, []common.Relation) {
	entities := make([]common.Entity, 0, len(r.Entities))
	known := make(map[string]bool, len(r.Entities))
	for _, e := range r.Entities {
		name := common.NormalizeName(e.Name)
		if name == "" {
			continue
		}
		known[name] = true
		entities = append(entities, common.Entity{
			Name:             name,
			Type:             strings.ToUpper(strings.TrimSpace(e.Type)),
			Description:      strings.TrimSpace(e.Description),
			SourceDocumentID: chunk.DocumentID,
			SourceChunkIDs:   []string{chunk.ID},
		})
	}

	relations := make([]common.Relation, 0, len(r.Relationships))
	for _, rel := range r.Relationships {
		source := common.NormalizeName(rel.Source)
		target := common.NormalizeName(rel.Target)
		if source == "" || target == "" || source == target {
			continue
		}
		for _, name := range []string{source, target} {
			if !known[name] {
				known[name] = true
				entities = append(entities, common.Entity{
					Name:             name,
					SourceDocumentID: chunk.DocumentID,
					SourceChunkIDs:   []string{chunk.ID},
				})
			}
		}
		relations = append(relations, common.Relation{
			Source:           source,
			Target:           target,
			Description:      strings.TrimSpace(rel.Description),
			Keywords:         store.DedupeStrings(rel.Keywords),
			Weight:           rel.Strength,
			SourceDocumentID: chunk.DocumentID,
			SourceChunkIDs:   []string{chunk.ID},
		})
	}
	return entities, relations
}
