package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"

	"NavLedger/internal/observability"
	"NavLedger/internal/persistence"

	_ "github.com/lib/pq"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: migrate <up|down|pending>")
		fmt.Println("  up      - apply all pending migrations")
		fmt.Println("  down    - roll back the last migration")
		fmt.Println("  pending - list migrations not yet applied")
		fmt.Println()
		fmt.Println("Environment:")
		fmt.Println("  NAV_POSTGRES_DSN - Postgres connection string")
		os.Exit(1)
	}

	dsn := os.Getenv("NAV_POSTGRES_DSN")
	if dsn == "" {
		dsn = "postgres://localhost:5432/navledger?sslmode=disable"
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("FATAL: open db: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	migrator := persistence.NewMigrator(db, persistence.Migrations(), observability.NewLogger("migrate"))

	switch os.Args[1] {
	case "up":
		if err := migrator.Up(ctx); err != nil {
			log.Fatalf("FATAL: migrate up: %v", err)
		}
		log.Println("INFO: all migrations applied")

	case "down":
		if err := migrator.Down(ctx); err != nil {
			log.Fatalf("FATAL: migrate down: %v", err)
		}
		log.Println("INFO: last migration rolled back")

	case "pending":
		files, err := migrator.Pending(ctx)
		if err != nil {
			log.Fatalf("FATAL: list pending: %v", err)
		}
		if len(files) == 0 {
			fmt.Println("up to date")
		}
		for _, f := range files {
			fmt.Println(f)
		}

	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s (use 'up', 'down' or 'pending')\n", os.Args[1])
		os.Exit(1)
	}
}
