package sqlcat

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

// Dialect adapts the shared SQL to a driver.
type Dialect struct {
	Name string
	// Numbered placeholders ($1, $2, ...) instead of ?.
	Numbered bool
}

var (
	SQLite   = Dialect{Name: "sqlite"}
	Postgres = Dialect{Name: "postgres", Numbered: true}
)

// Rebind rewrites ? placeholders for the dialect.
func (d Dialect) Rebind(query string) string {
	if !d.Numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS courses (
		id BIGINT PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS papers (
		id BIGINT PRIMARY KEY,
		course_id BIGINT NOT NULL REFERENCES courses(id),
		name TEXT NOT NULL,
		period TEXT NOT NULL,
		sitting INTEGER NOT NULL,
		year_start INTEGER NOT NULL,
		year_stop INTEGER NOT NULL,
		link TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS questions (
		id BIGINT PRIMARY KEY,
		paper_id BIGINT NOT NULL REFERENCES papers(id),
		parent_id BIGINT,
		idx INTEGER NOT NULL,
		path TEXT NOT NULL,
		content TEXT NOT NULL,
		marks INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id BIGINT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS user_courses (
		user_id BIGINT NOT NULL REFERENCES users(id),
		course_id BIGINT NOT NULL REFERENCES courses(id),
		PRIMARY KEY (user_id, course_id)
	)`,
	`CREATE TABLE IF NOT EXISTS comments (
		id BIGINT PRIMARY KEY,
		entity_id BIGINT NOT NULL,
		user_id BIGINT NOT NULL,
		parent_id BIGINT,
		content TEXT NOT NULL,
		deleted BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS comments_entity ON comments (entity_id)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		session_key TEXT PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id)
	)`,
}

// Migrate creates the archive tables when missing.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute ddl: %w", err)
		}
	}
	return nil
}

func formatPath(path []int) string {
	parts := make([]string, len(path))
	for i, p := range path {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, ".")
}

func parsePath(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ".")
	out := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("question path %q: %w", s, err)
		}
		out[i] = n
	}
	return out, nil
}
