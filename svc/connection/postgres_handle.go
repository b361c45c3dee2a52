package connection

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/orgkit/pkg/pg"
	"github.com/dmitrymomot/orgkit/svc/organization"
)

// PostgresHandle keeps tenant partitions as schemas of one database.
type PostgresHandle struct {
	pool *pgxpool.Pool
}

func NewPostgresHandle(pool *pgxpool.Pool) *PostgresHandle {
	return &PostgresHandle{pool: pool}
}

// Pool exposes the connection pool for data access.
func (h *PostgresHandle) Pool() *pgxpool.Pool {
	return h.pool
}

func (h *PostgresHandle) Kind() string { return "postgres" }

func (h *PostgresHandle) Ping(ctx context.Context) error {
	return h.pool.Ping(ctx)
}

func (h *PostgresHandle) Provision(ctx context.Context, partitionKey string) error {
	schema := schemaIdent(partitionKey)
	if _, err := h.pool.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+schema); err != nil {
		return fmt.Errorf("failed to create schema %s: %w", schema, err)
	}
	return nil
}

func (h *PostgresHandle) RenamePartition(ctx context.Context, from, to string) error {
	if from == to {
		return nil
	}
	src, dst := schemaIdent(from), schemaIdent(to)

	_, err := h.pool.Exec(ctx, "ALTER SCHEMA "+src+" RENAME TO "+dst)
	switch {
	case err == nil:
		return nil
	case pg.IsInvalidSchemaName(err):
		return h.Provision(ctx, to)
	case pg.IsDuplicateSchema(err):
		return errors.Join(ErrPartitionExists, err)
	default:
		return fmt.Errorf("failed to rename schema %s to %s: %w", src, dst, err)
	}
}

func (h *PostgresHandle) DropPartition(ctx context.Context, partitionKey string) error {
	schema := schemaIdent(partitionKey)
	if _, err := h.pool.Exec(ctx, "DROP SCHEMA IF EXISTS "+schema+" CASCADE"); err != nil {
		return fmt.Errorf("failed to drop schema %s: %w", schema, err)
	}
	return nil
}

func (h *PostgresHandle) Close(context.Context) error {
	h.pool.Close()
	return nil
}

func schemaIdent(partitionKey string) string {
	return pgx.Identifier{organization.PartitionName(partitionKey)}.Sanitize()
}
