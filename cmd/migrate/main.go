package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"vendordesk.org/internal/migrate"
)

func main() {
	migrationsDir := flag.String("migrations", "migrations", "directory with *.up.sql/*.down.sql files")
	seedsDir := flag.String("seeds", "seeds", "directory with seed *.sql files")
	flag.Parse()

	command := flag.Arg(0)
	if command == "" {
		command = "up"
	}

	dsn := os.Getenv("VENDORDESK_PG_DSN")
	if dsn == "" {
		log.Fatal("VENDORDESK_PG_DSN is required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	mgr := migrate.NewManager(db, *migrationsDir, *seedsDir)

	switch command {
	case "up":
		err = mgr.Up(ctx)
	case "down":
		err = mgr.Down(ctx)
	case "seed":
		err = mgr.Seed(ctx)
	case "status":
		var applied []string
		applied, err = mgr.Status(ctx)
		if err == nil {
			for _, name := range applied {
				fmt.Println(name)
			}
		}
	default:
		log.Fatalf("unknown command %q (expected up, down, seed or status)", command)
	}
	if err != nil {
		log.Fatalf("%s: %v", command, err)
	}
}
