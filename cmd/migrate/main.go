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

// Applies pending .sql files from the migrations directory, in name
// order, each inside its own transaction. Applied files are recorded in
// crm_schema_migrations so re-running the binary is a no-op.
func main() {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL is required")
	}

	dir := "migrations"
	listOnly := false
	for _, a := range os.Args[1:] {
		if a == "--list" {
			listOnly = true
		} else {
			dir = a
		}
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("[Migrate] connect: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("[Migrate] ping: %v", err)
	}
	log.Println("[Migrate] connected to database")

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS crm_schema_migrations (
			name TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`); err != nil {
		log.Fatalf("[Migrate] ensure migrations table: %v", err)
	}

	applied, err := appliedMigrations(db)
	if err != nil {
		log.Fatalf("[Migrate] load applied migrations: %v", err)
	}

	if listOnly {
		listSchema(db, applied)
		return
	}

	files, err := pendingMigrations(dir, applied)
	if err != nil {
		log.Fatalf("[Migrate] %v", err)
	}
	if len(files) == 0 {
		log.Println("[Migrate] schema is up to date")
		return
	}

	for _, f := range files {
		if err := applyOne(db, dir, f); err != nil {
			log.Fatalf("[Migrate] %s: %v", f, err)
		}
		log.Printf("[Migrate] applied %s", f)
	}
	log.Printf("[Migrate] done: %d applied", len(files))
}

func appliedMigrations(db *sql.DB) (map[string]bool, error) {
	rows, err := db.Query(`SELECT name FROM crm_schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := map[string]bool{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		applied[name] = true
	}
	return applied, rows.Err()
}

func pendingMigrations(dir string, applied map[string]bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".sql") || applied[name] {
			continue
		}
		files = append(files, name)
	}
	sort.Strings(files)
	return files, nil
}

// applyOne runs a migration and records it in the same transaction, so a
// half-applied file is rolled back and retried on the next run.
func applyOne(db *sql.DB, dir, name string) error {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}
	content := string(data)
	if strings.TrimSpace(content) == "" {
		return recordOnly(db, name)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if _, err := tx.Exec(content); err != nil {
		tx.Rollback()
		return fmt.Errorf("exec: %w", err)
	}
	if _, err := tx.Exec(`INSERT INTO crm_schema_migrations (name) VALUES ($1)`, name); err != nil {
		tx.Rollback()
		return fmt.Errorf("record: %w", err)
	}
	return tx.Commit()
}

func recordOnly(db *sql.DB, name string) error {
	_, err := db.Exec(`INSERT INTO crm_schema_migrations (name) VALUES ($1)`, name)
	return err
}

func listSchema(db *sql.DB, applied map[string]bool) {
	var names []string
	for name := range applied {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Printf("Applied migrations (%d):\n", len(names))
	for _, name := range names {
		fmt.Println(" ", name)
	}

	rows, err := db.Query(`
		SELECT tablename FROM pg_tables
		WHERE schemaname = 'public' AND tablename LIKE 'crm_%'
		ORDER BY tablename
	`)
	if err != nil {
		log.Fatalf("[Migrate] list tables: %v", err)
	}
	defer rows.Close()

	fmt.Println("Tables:")
	n := 0
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			log.Fatalf("[Migrate] scan table name: %v", err)
		}
		fmt.Println(" ", t)
		n++
	}
	fmt.Printf("Total: %d tables\n", n)
}
