// Package scancache persists terminal TLS grades between runs so hosts
// graded recently are not re-submitted to the assessment service.
package scancache

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "modernc.org/sqlite"

	"github.com/gabrimonfa/spid-saml-check/internal/core/ports"
)

const schema = `CREATE TABLE IF NOT EXISTS grades(
	host TEXT PRIMARY KEY,
	grade TEXT NOT NULL,
	ts INTEGER NOT NULL
)`

// SQLiteCache is a grade cache backed by a local sqlite file.
type SQLiteCache struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// Open opens (creating if needed) the cache at path. Entries older than
// ttl are treated as misses; ttl <= 0 disables expiry.
func Open(path string, ttl time.Duration) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLiteCache{db: db, ttl: ttl, now: time.Now}, nil
}

// Get returns the cached grade for host, honoring the TTL.
func (c *SQLiteCache) Get(ctx context.Context, host string) (string, bool, error) {
	var grade string
	var ts int64
	err := c.db.QueryRowContext(ctx,
		`SELECT grade, ts FROM grades WHERE host = ?`, host).Scan(&grade, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if c.ttl > 0 && c.now().Unix()-ts > int64(c.ttl.Seconds()) {
		return "", false, nil
	}
	return grade, true, nil
}

// Put stores the terminal grade for host, replacing any previous entry.
func (c *SQLiteCache) Put(ctx context.Context, host, grade string) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO grades(host, grade, ts) VALUES(?, ?, ?)`,
		host, grade, c.now().Unix())
	return err
}

// Close closes the underlying database.
func (c *SQLiteCache) Close() error {
	return c.db.Close()
}

var _ ports.GradeCache = (*SQLiteCache)(nil)
