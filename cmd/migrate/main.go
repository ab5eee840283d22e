package main

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log"
	"os"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/samirrijal/magvar/internal/pkg/config"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: migrate <up|status>")
	}

	cfg, err := config.Load("magvar-migrate")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	switch os.Args[1] {
	case "up":
		runMigrations(ctx, pool)
	case "status":
		printStatus(ctx, pool)
	default:
		log.Fatalf("unknown command: %s", os.Args[1])
	}
}

func runMigrations(ctx context.Context, pool *pgxpool.Pool) {
	if _, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`); err != nil {
		log.Fatalf("create ledger: %v", err)
	}

	for _, name := range migrationFiles() {
		var applied bool
		err := pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)`,
			name).Scan(&applied)
		if err != nil {
			log.Fatalf("check %s: %v", name, err)
		}
		if applied {
			fmt.Printf("--  %s (already applied)\n", name)
			continue
		}

		data, err := migrationFS.ReadFile("migrations/" + name)
		if err != nil {
			log.Fatalf("read %s: %v", name, err)
		}

		// Each file applies atomically with its ledger row.
		tx, err := pool.Begin(ctx)
		if err != nil {
			log.Fatalf("begin %s: %v", name, err)
		}
		if _, err := tx.Exec(ctx, string(data)); err != nil {
			_ = tx.Rollback(ctx)
			log.Fatalf("exec %s: %v", name, err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO schema_migrations (version) VALUES ($1)`, name); err != nil {
			_ = tx.Rollback(ctx)
			log.Fatalf("record %s: %v", name, err)
		}
		if err := tx.Commit(ctx); err != nil {
			log.Fatalf("commit %s: %v", name, err)
		}

		fmt.Printf("OK  %s\n", name)
	}

	log.Println("all migrations applied")
}

func printStatus(ctx context.Context, pool *pgxpool.Pool) {
	applied := map[string]bool{}
	rows, err := pool.Query(ctx, `SELECT version FROM schema_migrations`)
	if err == nil {
		defer rows.Close()
		for rows.Next() {
			var v string
			if rows.Scan(&v) == nil {
				applied[v] = true
			}
		}
	}

	for _, name := range migrationFiles() {
		state := "pending"
		if applied[name] {
			state = "applied"
		}
		fmt.Printf("%-40s %s\n", name, state)
	}
}

func migrationFiles() []string {
	entries, err := fs.Glob(migrationFS, "migrations/*.sql")
	if err != nil {
		log.Fatalf("glob migrations: %v", err)
	}
	sort.Strings(entries)

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e[len("migrations/"):])
	}
	return names
}
