package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	// SQLite driver
	_ "github.com/mattn/go-sqlite3"
)

const (
	// DefaultRetentionDays is how long entries are kept when purging by age.
	DefaultRetentionDays = 30
	// MaxBodySize caps the stored response body.
	MaxBodySize = 64 * 1024
)

const schema = `
CREATE TABLE IF NOT EXISTS history (
	id          TEXT PRIMARY KEY,
	file        TEXT NOT NULL,
	collection  TEXT NOT NULL,
	environment TEXT NOT NULL,
	request     TEXT NOT NULL,
	method      TEXT NOT NULL,
	url         TEXT NOT NULL,
	status      INTEGER NOT NULL,
	passed      INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	assertions  TEXT NOT NULL,
	error       TEXT NOT NULL,
	body        TEXT NOT NULL,
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS history_created_at ON history (created_at);
`

// Assertion is the stored form of one pm.test result.
type Assertion struct {
	Passed  bool   `json:"passed"`
	Message string `json:"message"`
}

// Entry is one executed request.
type Entry struct {
	ID          string
	File        string
	Collection  string
	Environment string
	Request     string
	Method      string
	URL         string
	Status      int
	Passed      bool
	Duration    time.Duration
	Assertions  []Assertion
	Error       string
	Body        string
	CreatedAt   time.Time
}

// Filter narrows List. Zero values match everything.
type Filter struct {
	Collection string
	Request    string
	FailedOnly bool
	Since      time.Time
	Limit      int
}

// Store persists request history in SQLite.
type Store struct {
	db *sql.DB
}

// Open opens or creates the history database. dsn is a file path, optionally
// prefixed with sqlite:// or sqlite:.
func Open(dsn string) (*Store, error) {
	path := parseConnectionString(dsn)
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	// a single connection keeps :memory: databases shared
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialise history database: %w", err)
	}
	return &Store{db: db}, nil
}

func parseConnectionString(dsn string) string {
	dsn = strings.TrimSpace(dsn)
	if strings.HasPrefix(dsn, "sqlite://") {
		return strings.TrimPrefix(dsn, "sqlite://")
	}
	return strings.TrimPrefix(dsn, "sqlite:")
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Save inserts e, filling in ID and CreatedAt when empty.
func (s *Store) Save(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	body := e.Body
	if len(body) > MaxBodySize {
		body = body[:MaxBodySize]
	}
	assertions := e.Assertions
	if assertions == nil {
		assertions = []Assertion{}
	}
	encoded, err := json.Marshal(assertions)
	if err != nil {
		return fmt.Errorf("encoding assertions: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO history
		(id, file, collection, environment, request, method, url, status, passed, duration_ms, assertions, error, body, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.File, e.Collection, e.Environment, e.Request, e.Method, e.URL, e.Status,
		e.Passed, e.Duration.Milliseconds(), string(encoded), e.Error, body, e.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("saving history entry: %w", err)
	}
	return nil
}

// List returns matching entries, newest first.
func (s *Store) List(ctx context.Context, f Filter) ([]*Entry, error) {
	var (
		where []string
		args  []any
	)
	if f.Collection != "" {
		where = append(where, "collection = ?")
		args = append(args, f.Collection)
	}
	if f.Request != "" {
		where = append(where, "request = ?")
		args = append(args, f.Request)
	}
	if f.FailedOnly {
		where = append(where, "passed = 0")
	}
	if !f.Since.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, f.Since.UnixMilli())
	}

	query := `SELECT id, file, collection, environment, request, method, url, status, passed,
		duration_ms, assertions, error, body, created_at FROM history`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, rowid DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var (
			e          Entry
			durationMs int64
			createdAt  int64
			assertions string
		)
		if err := rows.Scan(&e.ID, &e.File, &e.Collection, &e.Environment, &e.Request, &e.Method,
			&e.URL, &e.Status, &e.Passed, &durationMs, &assertions, &e.Error, &e.Body, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		e.Duration = time.Duration(durationMs) * time.Millisecond
		e.CreatedAt = time.UnixMilli(createdAt)
		if err := json.Unmarshal([]byte(assertions), &e.Assertions); err != nil {
			return nil, fmt.Errorf("decoding assertions of %s: %w", e.ID, err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return entries, nil
}

// Purge deletes entries created before cutoff and returns how many were
// removed.
func (s *Store) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM history WHERE created_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("purging history: %w", err)
	}
	return res.RowsAffected()
}

// PurgeOlderThan applies a retention window in days. Non-positive values
// use DefaultRetentionDays.
func (s *Store) PurgeOlderThan(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		days = DefaultRetentionDays
	}
	return s.Purge(ctx, time.Now().AddDate(0, 0, -days))
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM history`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting history: %w", err)
	}
	return n, nil
}
