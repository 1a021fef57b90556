/**
 * @description
 * This file wires schema migrations into the repository. Migration SQL lives
 * under migrations/ and is embedded into the binary, so the service can bring
 * its own schema up to date at startup without external tooling.
 *
 * @dependencies
 * - embed, fmt: Standard Go libraries.
 * - github.com/jackc/pgx/v5/stdlib: database/sql adapter over the pgx pool.
 * - github.com/pressly/goose/v3: Migration runner.
 */

package store

import (
	"context"
	"embed"
	"fmt"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// RunMigrations applies any pending schema migrations against the pool.
func (r *PostgresRepository) RunMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.db)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}
