// Package pgx implements the storage contracts of pkg/store on
// PostgreSQL. Graph data lives in one schema per tenant so tenant
// deletion is a single DROP SCHEMA and no query can cross tenants.
// Vectors, the extraction cache and document state live in shared
// tables partitioned by a tenant column.
package pgx

import (
	"context"
	"errors"
	"fmt"

	"github.com/mangrove-ai/mangrove/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Conn is the subset of pgxpool.Pool the stores need. Tests may
// substitute a single connection or a transaction.
type Conn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
	Begin(ctx context.Context) (pgxv5.Tx, error)
	SendBatch(ctx context.Context, b *pgxv5.Batch) pgxv5.BatchResults
}

const schemaPrefix = "mg_"

// schemaName returns the per-tenant schema identifier. The tenant must
// already be validated; the result is safe to interpolate once quoted.
func schemaName(tenant string) string {
	return schemaPrefix + tenant
}

func quotedSchema(tenant string) string {
	return pgxv5.Identifier{schemaName(tenant)}.Sanitize()
}

// mapSchemaErr converts missing-schema and missing-table errors into
// store.ErrGraphNotFound so callers see one error regardless of which
// relation the query touched first.
func mapSchemaErr(err error, tenant string) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "3F000", "42P01":
			return fmt.Errorf("tenant %q: %w", tenant, store.ErrGraphNotFound)
		}
	}
	return err
}
