package analytics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// ErrUnavailable is returned by a nil or closed store.
var ErrUnavailable = errors.New("analytics store unavailable")

// Click is the running click count for one resort.
type Click struct {
	ResortID    string    `json:"resortId"`
	Clicks      int64     `json:"clicks"`
	LastClickAt time.Time `json:"lastClickAt"`
}

// Store persists resort click counts in SQLite or PostgreSQL.
type Store struct {
	db     *sql.DB
	driver string
}

// Open connects, verifies the connection and creates the schema.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	switch driver {
	case DriverSQLite:
		if err := ensureDataDir(dsn); err != nil {
			return nil, fmt.Errorf("ensure data dir: %w", err)
		}
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported analytics driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: open: %w", driver, err)
	}
	if driver == DriverSQLite {
		// One writer; also keeps :memory: databases on a single connection.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: ping: %w", driver, err)
	}

	s := &Store{db: db, driver: driver}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: migrate: %w", driver, err)
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS resort_clicks (
			resort_id     VARCHAR(128) PRIMARY KEY,
			clicks        BIGINT       NOT NULL DEFAULT 0,
			last_click_at TIMESTAMP    NOT NULL
		)`)
	return err
}

// RecordClick increments the counter for resortID and returns the new total.
func (s *Store) RecordClick(ctx context.Context, resortID string, at time.Time) (int64, error) {
	if s == nil || s.db == nil {
		return 0, ErrUnavailable
	}

	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO resort_clicks (resort_id, clicks, last_click_at)
		VALUES (?, 1, ?)
		ON CONFLICT (resort_id) DO UPDATE
		SET clicks = resort_clicks.clicks + 1, last_click_at = excluded.last_click_at`),
		resortID, at.UTC())
	if err != nil {
		return 0, fmt.Errorf("record click: %w", err)
	}

	var n int64
	err = s.db.QueryRowContext(ctx, s.rebind(`SELECT clicks FROM resort_clicks WHERE resort_id = ?`), resortID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("read click count: %w", err)
	}
	return n, nil
}

// Counts returns all counters, most clicked first.
func (s *Store) Counts(ctx context.Context) ([]Click, error) {
	if s == nil || s.db == nil {
		return nil, ErrUnavailable
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT resort_id, clicks, last_click_at
		FROM resort_clicks
		ORDER BY clicks DESC, resort_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list clicks: %w", err)
	}
	defer rows.Close()

	var out []Click
	for rows.Next() {
		var c Click
		if err := rows.Scan(&c.ResortID, &c.Clicks, &c.LastClickAt); err != nil {
			return nil, fmt.Errorf("scan click: %w", err)
		}
		c.LastClickAt = c.LastClickAt.UTC()
		out = append(out, c)
	}
	return out, rows.Err()
}

// Close releases the connection pool.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
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

func ensureDataDir(dsn string) error {
	if dsn == "" || strings.HasPrefix(dsn, "file:") || strings.Contains(dsn, ":memory:") {
		return nil
	}
	dir := filepath.Dir(dsn)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
