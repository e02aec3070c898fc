package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator"
)

// Config collects every tunable of the engine. It is populated from the
// environment by Load and validated once at startup.
type Config struct {
	DatabaseURL    string `validate:"required"`
	StorageBackend string `validate:"oneof=postgres memory"`

	AIAdapter      string `validate:"oneof=openai ollama"`
	ChatModel      string `validate:"required"`
	ExtractModel   string `validate:"required"`
	EmbeddingModel string `validate:"required"`
	ChatURL        string
	ChatKey        string
	EmbeddingURL   string
	EmbeddingKey   string
	EmbeddingDim   int `validate:"gt=0"`

	TokenEncoder string `validate:"required"`

	ChunkTokens    int `validate:"gt=0"`
	ChunkOverlap   int `validate:"gte=0,ltfield=ChunkTokens"`
	ExtractBatch   int `validate:"gt=0"`
	EmbedBatch     int `validate:"gt=0"`
	GleaningRounds int `validate:"gte=0"`
	EntityTypes    []string
	Language       string

	MaxDescriptionLen    int `validate:"gt=0"`
	SummarizeAtFragments int `validate:"gt=1"`

	QueryTokenBudget int     `validate:"gt=0"`
	EntityRatio      float64 `validate:"gt=0,lt=1"`
	RelationRatio    float64 `validate:"gt=0,lt=1"`
	ChunkRatio       float64 `validate:"gt=0,lt=1"`
	TopK             int     `validate:"gt=0"`

	MaxRetries   int `validate:"gt=0"`
	RetryBaseMs  int `validate:"gt=0"`
	ParallelDocs int `validate:"gt=0"`
	ParallelAI   int `validate:"gt=0"`

	RabbitURL string
	Port      string
	Debug     bool
}

var defaultEntityTypes = []string{
	"ORGANIZATION", "PERSON", "LOCATION", "CONCEPT",
	"CREATIVE_WORK", "DATE", "PRODUCT", "EVENT",
}

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:    GetEnv("DATABASE_URL"),
		StorageBackend: GetEnvString("STORAGE_BACKEND", "postgres"),

		AIAdapter:      GetEnvString("AI_ADAPTER", "openai"),
		ChatModel:      GetEnvString("AI_CHAT_MODEL", "gpt-4o-mini"),
		ExtractModel:   GetEnvString("AI_EXTRACT_MODEL", "gpt-4o-mini"),
		EmbeddingModel: GetEnvString("AI_EMBED_MODEL", "text-embedding-3-small"),
		ChatURL:        GetEnv("AI_CHAT_URL"),
		ChatKey:        GetEnv("AI_CHAT_KEY"),
		EmbeddingURL:   GetEnv("AI_EMBED_URL"),
		EmbeddingKey:   GetEnv("AI_EMBED_KEY"),
		EmbeddingDim:   GetEnvInt("AI_EMBED_DIM", 1536),

		TokenEncoder: GetEnvString("TOKEN_ENCODER", "o200k_base"),

		ChunkTokens:    GetEnvInt("CHUNK_TOKENS", 1200),
		ChunkOverlap:   GetEnvInt("CHUNK_OVERLAP", 100),
		ExtractBatch:   GetEnvInt("EXTRACT_BATCH", 20),
		EmbedBatch:     GetEnvInt("EMBED_BATCH", 32),
		GleaningRounds: GetEnvInt("GLEANING_ROUNDS", 1),
		Language:       GetEnvString("EXTRACT_LANGUAGE", "English"),

		MaxDescriptionLen:    GetEnvInt("MAX_DESCRIPTION_LEN", 4096),
		SummarizeAtFragments: GetEnvInt("SUMMARIZE_AT_FRAGMENTS", 6),

		QueryTokenBudget: GetEnvInt("QUERY_TOKEN_BUDGET", 8000),
		EntityRatio:      GetEnvFloat("BUDGET_ENTITY_RATIO", 0.4),
		RelationRatio:    GetEnvFloat("BUDGET_RELATION_RATIO", 0.3),
		ChunkRatio:       GetEnvFloat("BUDGET_CHUNK_RATIO", 0.3),
		TopK:             GetEnvInt("QUERY_TOP_K", 20),

		MaxRetries:   GetEnvInt("MAX_RETRIES", 3),
		RetryBaseMs:  GetEnvInt("RETRY_BASE_MS", 200),
		ParallelDocs: GetEnvInt("PARALLEL_DOCS", 2),
		ParallelAI:   GetEnvInt("PARALLEL_AI", 16),

		RabbitURL: GetEnv("RABBITMQ_URL"),
		Port:      GetEnvString("PORT", "8080"),
		Debug:     GetEnvBool("DEBUG", false),
	}

	types := GetEnv("ENTITY_TYPES")
	if types == "" {
		cfg.EntityTypes = defaultEntityTypes
	} else {
		for _, t := range strings.Split(types, ",") {
			t = strings.TrimSpace(strings.ToUpper(t))
			if t != "" {
				cfg.EntityTypes = append(cfg.EntityTypes, t)
			}
		}
	}

	if cfg.StorageBackend == "memory" && cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "memory"
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if sum := cfg.EntityRatio + cfg.RelationRatio + cfg.ChunkRatio; sum < 0.999 || sum > 1.001 {
		return nil, fmt.Errorf("budget ratios must sum to 1.0, got %.3f", sum)
	}

	return cfg, nil
}
