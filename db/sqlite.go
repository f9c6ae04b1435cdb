package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

// ConnectToSQLite initializes and returns a SQLite connection
func ConnectToSQLite(dbPath string) (*sql.DB, error) {
	// Ensure the directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory for SQLite: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	log.Info().Str("path", dbPath).Msg("Connected to SQLite database")
	return db, nil
}

// InitializeSchema creates all the necessary tables if they don't exist and
// seeds the canned future posts.
func InitializeSchema(db *sql.DB) error {
	// "user" is a keyword in some dialects; SQLite accepts it quoted.
	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS "user" (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT UNIQUE NOT NULL,
		password TEXT NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("failed to create user table: %w", err)
	}

	_, err = db.Exec(`
	CREATE TABLE IF NOT EXISTS post (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		body TEXT NOT NULL,
		created TIMESTAMP NOT NULL,
		author_id INTEGER NOT NULL,
		FOREIGN KEY (author_id) REFERENCES "user"(id)
	)`)
	if err != nil {
		return fmt.Errorf("failed to create post table: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_post_created ON post(created DESC)`)
	if err != nil {
		return fmt.Errorf("failed to create post index: %w", err)
	}

	_, err = db.Exec(`
	CREATE TABLE IF NOT EXISTS future_posts (
		id INTEGER PRIMARY KEY,
		title TEXT NOT NULL,
		body TEXT NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("failed to create future_posts table: %w", err)
	}

	for _, fp := range cannedPosts {
		_, err = db.Exec(`INSERT OR IGNORE INTO future_posts (id, title, body) VALUES (?, ?, ?)`, fp.id, fp.title, fp.body)
		if err != nil {
			return fmt.Errorf("failed to seed future_posts: %w", err)
		}
	}

	log.Info().Msg("Database schema initialized successfully")
	return nil
}

// DropSchema removes every table created by InitializeSchema.
func DropSchema(db *sql.DB) error {
	for _, table := range []string{"post", `"user"`, "future_posts"} {
		if _, err := db.Exec("DROP TABLE IF EXISTS " + table); err != nil {
			return fmt.Errorf("failed to drop %s: %w", table, err)
		}
	}
	return nil
}

var cannedPosts = []struct {
	id          int64
	title, body string
}{
	{1, "Notes from the future", "This post was scheduled long ago and has finally arrived. Nothing much has changed, except everything."},
	{2, "A letter to my past self", "Keep writing. The drafts you throw away are the ones that teach you the most."},
}
