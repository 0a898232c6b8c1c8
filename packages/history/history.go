package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	// SQLite driver
	_ "github.com/mattn/go-sqlite3"
)

// MaxBodyBytes caps the response body stored per exchange.
const MaxBodyBytes = 64 << 10

const schema = `
CREATE TABLE IF NOT EXISTS exchanges (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	recorded_at      TIMESTAMP NOT NULL,
	method           TEXT NOT NULL,
	url              TEXT NOT NULL,
	status           INTEGER NOT NULL DEFAULT 0,
	duration_ms      INTEGER NOT NULL DEFAULT 0,
	error            TEXT NOT NULL DEFAULT '',
	error_code       TEXT NOT NULL DEFAULT '',
	request_headers  TEXT NOT NULL DEFAULT '{}',
	response_headers TEXT NOT NULL DEFAULT '{}',
	response_body    TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_exchanges_recorded_at ON exchanges (recorded_at);
`

// Entry is one recorded exchange.
type Entry struct {
	ID              int64
	RecordedAt      time.Time
	Method          string
	URL             string
	Status          int
	DurationMs      int64
	Error           string
	ErrorCode       string
	RequestHeaders  map[string]string
	ResponseHeaders http.Header
	ResponseBody    string
}

// QueryResult represents the result of an ad-hoc query.
type QueryResult struct {
	Columns []string
	Rows    []map[string]any
}

// Store is a history database.
type Store struct {
	db           *sql.DB
	queryTimeout time.Duration
}

// Open opens or creates the database at path. path may carry a sqlite://
// or sqlite: prefix.
func Open(path string) (*Store, error) {
	dsn := parseDataSource(path)
	if dsn == "" {
		return nil, fmt.Errorf("history path is empty")
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer at a time keeps sqlite from returning SQLITE_BUSY
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{db: db, queryTimeout: 30 * time.Second}, nil
}

func parseDataSource(path string) string {
	path = strings.TrimSpace(path)
	if rest, ok := strings.CutPrefix(path, "sqlite://"); ok {
		return rest
	}
	if rest, ok := strings.CutPrefix(path, "sqlite:"); ok {
		return rest
	}
	return path
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Record inserts e and sets its ID.
func (s *Store) Record(ctx context.Context, e *Entry) error {
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now().UTC()
	}
	reqHeaders, err := json.Marshal(e.RequestHeaders)
	if err != nil {
		return fmt.Errorf("encode request headers: %w", err)
	}
	respHeaders, err := json.Marshal(e.ResponseHeaders)
	if err != nil {
		return fmt.Errorf("encode response headers: %w", err)
	}
	body := e.ResponseBody
	if len(body) > MaxBodyBytes {
		body = body[:MaxBodyBytes]
	}

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO exchanges (recorded_at, method, url, status, duration_ms, error, error_code,
			request_headers, response_headers, response_body)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.RecordedAt, e.Method, e.URL, e.Status, e.DurationMs, e.Error, e.ErrorCode,
		string(reqHeaders), string(respHeaders), body,
	)
	if err != nil {
		return fmt.Errorf("record exchange: %w", err)
	}
	e.ID, err = res.LastInsertId()
	return err
}

const selectColumns = `id, recorded_at, method, url, status, duration_ms, error, error_code,
	request_headers, response_headers, response_body`

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM exchanges ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return entries, nil
}

// ErrNotFound is returned by Get for an unknown id.
var ErrNotFound = errors.New("history entry not found")

func (s *Store) Get(ctx context.Context, id int64) (*Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM exchanges WHERE id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return e, err
}

// Clear deletes every entry and returns how many were removed.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `DELETE FROM exchanges`)
	if err != nil {
		return 0, fmt.Errorf("clear history: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*Entry, error) {
	var (
		e                        Entry
		reqHeaders, respHeaders string
	)
	err := row.Scan(&e.ID, &e.RecordedAt, &e.Method, &e.URL, &e.Status, &e.DurationMs,
		&e.Error, &e.ErrorCode, &reqHeaders, &respHeaders, &e.ResponseBody)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}
	if err := json.Unmarshal([]byte(reqHeaders), &e.RequestHeaders); err != nil {
		return nil, fmt.Errorf("decode request headers: %w", err)
	}
	if err := json.Unmarshal([]byte(respHeaders), &e.ResponseHeaders); err != nil {
		return nil, fmt.Errorf("decode response headers: %w", err)
	}
	return &e, nil
}

// Query executes a read-only SQL query against the history database.
func (s *Store) Query(ctx context.Context, query string) (*QueryResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}

	result := &QueryResult{
		Columns: columns,
		Rows:    make([]map[string]any, 0),
	}

	for rows.Next() {
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		result.Rows = append(result.Rows, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return result, nil
}
