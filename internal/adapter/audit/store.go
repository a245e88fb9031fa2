// Package audit stores parse request logs and model build records on database/sql,
// with either the postgres (lib/pq) or the sqlite3 driver.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS parse_request_logs (
		id             TEXT PRIMARY KEY,
		application_id TEXT NOT NULL,
		query          TEXT NOT NULL,
		result         TEXT,
		duration_ms    BIGINT NOT NULL,
		error          BOOLEAN NOT NULL,
		date_ms        BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS parse_request_logs_app_idx ON parse_request_logs (application_id, date_ms)`,
	`CREATE TABLE IF NOT EXISTS model_builds (
		id               TEXT PRIMARY KEY,
		application_id   TEXT NOT NULL,
		language         TEXT NOT NULL,
		type             TEXT NOT NULL,
		intent_id        TEXT NOT NULL DEFAULT '',
		entity_type_name TEXT NOT NULL DEFAULT '',
		nb_sentences     INTEGER NOT NULL,
		duration_ms      BIGINT NOT NULL,
		error            BOOLEAN NOT NULL,
		error_message    TEXT NOT NULL DEFAULT '',
		date_ms          BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS model_builds_app_idx ON model_builds (application_id, date_ms)`,
}

// Store wraps the audit database handle.
type Store struct {
	db     *sql.DB
	driver string
}

func NewStore(db *sql.DB, driver string) *Store {
	return &Store{db: db, driver: driver}
}

// Migrate creates the audit tables when missing.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate audit schema: %w", err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders into $n for postgres.
func (s *Store) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func toMillis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }
