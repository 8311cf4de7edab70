// Command migrate applies or reverts the SQL migrations in migrations/.
//
// Usage:
//
//	migrate up [dir]     apply all pending *.up.sql files
//	migrate down [dir]   revert the most recent applied migration
//	migrate status [dir] list applied and pending migrations
package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/lib/pq"
)

func main() {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL is required")
	}

	command := "up"
	dir := "migrations"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}
	if len(os.Args) > 2 {
		dir = os.Args[2]
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("ping: %v", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version    TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`); err != nil {
		log.Fatalf("create schema_migrations: %v", err)
	}

	switch command {
	case "up":
		migrateUp(db, dir)
	case "down":
		migrateDown(db, dir)
	case "status":
		status(db, dir)
	default:
		log.Fatalf("unknown command %q (want up, down, or status)", command)
	}
}

// versions lists migration versions present in dir, sorted ascending. A
// version is the file name up to .up.sql.
func versions(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Fatalf("read migrations dir %s: %v", dir, err)
	}
	var out []string
	for _, e := range entries {
		if name, ok := strings.CutSuffix(e.Name(), ".up.sql"); ok && !e.IsDir() {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func appliedVersions(db *sql.DB) map[string]bool {
	rows, err := db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		log.Fatalf("query schema_migrations: %v", err)
	}
	defer rows.Close()

	applied := map[string]bool{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			log.Fatalf("scan version: %v", err)
		}
		applied[v] = true
	}
	return applied
}

func migrateUp(db *sql.DB, dir string) {
	applied := appliedVersions(db)
	count := 0
	for _, v := range versions(dir) {
		if applied[v] {
			continue
		}
		runMigration(db, filepath.Join(dir, v+".up.sql"),
			"INSERT INTO schema_migrations (version) VALUES ($1)", v)
		fmt.Printf("  applied %s\n", v)
		count++
	}
	log.Printf("Done: %d migrations applied", count)
}

func migrateDown(db *sql.DB, dir string) {
	applied := appliedVersions(db)
	all := versions(dir)

	// Revert the highest applied version only.
	for i := len(all) - 1; i >= 0; i-- {
		v := all[i]
		if !applied[v] {
			continue
		}
		runMigration(db, filepath.Join(dir, v+".down.sql"),
			"DELETE FROM schema_migrations WHERE version = $1", v)
		fmt.Printf("  reverted %s\n", v)
		return
	}
	log.Println("Nothing to revert")
}

func status(db *sql.DB, dir string) {
	applied := appliedVersions(db)
	for _, v := range versions(dir) {
		state := "pending"
		if applied[v] {
			state = "applied"
		}
		fmt.Printf("  %-50s %s\n", v, state)
	}
}

// runMigration executes the migration file and the bookkeeping statement in
// one transaction.
func runMigration(db *sql.DB, path, bookkeeping, version string) {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("read %s: %v", path, err)
	}

	tx, err := db.Begin()
	if err != nil {
		log.Fatalf("begin: %v", err)
	}
	if _, err := tx.Exec(string(data)); err != nil {
		tx.Rollback()
		log.Fatalf("%s: %v", path, err)
	}
	if _, err := tx.Exec(bookkeeping, version); err != nil {
		tx.Rollback()
		log.Fatalf("record %s: %v", version, err)
	}
	if err := tx.Commit(); err != nil {
		log.Fatalf("commit %s: %v", version, err)
	}
}
