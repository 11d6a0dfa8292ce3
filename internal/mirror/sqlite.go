package mirror

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/five82/newsdesk/internal/content"
)

// SQLiteCache persists mirror entries in a local SQLite file, one row per
// query key with the items stored as a JSON document.
type SQLiteCache struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (creating if needed) the mirror database at path.
func OpenSQLite(path string) (*SQLiteCache, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create mirror directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open mirror: %w", err)
	}
	// One writer at a time keeps SQLite from returning SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	c := &SQLiteCache{db: db, now: time.Now}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("configure mirror: %w", err)
	}
	if err := c.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate mirror: %w", err)
	}
	return c, nil
}

func (c *SQLiteCache) Close() error { return c.db.Close() }

func (c *SQLiteCache) migrate() error {
	_, err := c.db.Exec(`
CREATE TABLE IF NOT EXISTS mirror_entries (
  query_key   TEXT PRIMARY KEY,
  items       TEXT NOT NULL,
  captured_at INTEGER NOT NULL
);
`)
	return err
}

func (c *SQLiteCache) Get(ctx context.Context, key string) (Entry, bool, error) {
	key, err := normalizeKey(key)
	if err != nil {
		return Entry{}, false, err
	}
	var (
		payload  string
		captured int64
	)
	err = c.db.QueryRowContext(ctx,
		`SELECT items, captured_at FROM mirror_entries WHERE query_key = ?`, key,
	).Scan(&payload, &captured)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("read mirror entry %s: %w", key, err)
	}
	var items []content.Item
	if err := json.Unmarshal([]byte(payload), &items); err != nil {
		return Entry{}, false, fmt.Errorf("decode mirror entry %s: %w", key, err)
	}
	return Entry{Key: key, Items: items, CapturedAt: time.UnixMilli(captured)}, true, nil
}

func (c *SQLiteCache) Put(ctx context.Context, key string, items []content.Item) error {
	key, err := normalizeKey(key)
	if err != nil {
		return err
	}
	if items == nil {
		items = []content.Item{}
	}
	payload, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode mirror entry %s: %w", key, err)
	}
	_, err = c.db.ExecContext(ctx, `
INSERT INTO mirror_entries(query_key, items, captured_at)
VALUES(?, ?, ?)
ON CONFLICT(query_key) DO UPDATE SET items = excluded.items, captured_at = excluded.captured_at
`, key, string(payload), c.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("write mirror entry %s: %w", key, err)
	}
	return nil
}

func (c *SQLiteCache) Invalidate(ctx context.Context, key string) error {
	key, err := normalizeKey(key)
	if err != nil {
		return err
	}
	if _, err := c.db.ExecContext(ctx, `DELETE FROM mirror_entries WHERE query_key = ?`, key); err != nil {
		return fmt.Errorf("delete mirror entry %s: %w", key, err)
	}
	return nil
}
