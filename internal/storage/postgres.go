// Package storage bootstraps the persistence layer: the pgx pool with
// pgvector types, schema migrations, and the store implementations
// selected by configuration.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/mangrove-ai/mangrove/internal/config"
	"github.com/mangrove-ai/mangrove/pkg/leaselock"
	"github.com/mangrove-ai/mangrove/pkg/logger"
	"github.com/mangrove-ai/mangrove/pkg/store"
	"github.com/mangrove-ai/mangrove/pkg/store/memory"
	pgstore "github.com/mangrove-ai/mangrove/pkg/store/pgx"
)

// NewPool connects to Postgres and registers pgvector types on every
// connection.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// Migrate applies pending schema migrations from the migrations
// directory. A database already at the latest version is not an error.
func Migrate(databaseURL string) error {
	m, err := migrate.New("file://migrations", databaseURL)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	logger.Info("[Storage] Migrations applied")
	return nil
}

// Stores bundles the four storage contracts of the engine plus the
// lease lock client used to serialize per-tenant mutations. Locks is
// nil on the memory backend.
type Stores struct {
	Graph   store.GraphStore
	Vectors store.VectorStore
	Cache   store.ExtractionCache
	Docs    store.DocumentStore
	Locks   *leaselock.Client
}

// NewStores builds the store set for the configured backend. The
// memory backend exists for tests and local development; pool may be
// nil then.
func NewStores(pool *pgxpool.Pool, cfg *config.Config) Stores {
	if cfg.StorageBackend == "memory" {
		return Stores{
			Graph:   memory.NewGraphStore(cfg.MaxDescriptionLen),
			Vectors: memory.NewVectorStore(cfg.EmbeddingDim),
			Cache:   memory.NewCache(),
			Docs:    memory.NewDocumentStore(),
		}
	}
	return Stores{
		Graph:   pgstore.NewGraphStore(pool, cfg.MaxDescriptionLen),
		Vectors: pgstore.NewVectorStore(pool, cfg.EmbeddingDim),
		Cache:   pgstore.NewCache(pool),
		Docs:    pgstore.NewDocumentStore(pool),
		Locks:   leaselock.New(pool),
	}
}
