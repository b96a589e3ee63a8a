package memory

import (
	"context"
	"database/sql"
	stderrors "errors"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jllopis/conductor/pkg/errors"
)

// SQLiteStore persists entries in SQLite. Timestamps are stored as Unix
// nanoseconds so ordering survives the round trip.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps db and ensures the schema.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, stderrors.New("db is nil")
	}
	if err := ensureMemorySchema(db); err != nil {
		return nil, errors.New(errors.CodeMemoryError, "create memory schema", err)
	}
	return &SQLiteStore{db: db}, nil
}

// OpenSQLiteStore opens the database at path with a single connection, which
// also keeps ":memory:" databases alive for the store's lifetime.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.New(errors.CodeMemoryError, "open sqlite", err)
	}
	db.SetMaxOpenConns(1)
	store, err := NewSQLiteStore(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Write implements Store.
func (s *SQLiteStore) Write(ctx context.Context, entry Entry) error {
	entry = normalize(entry)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.New(errors.CodeMemoryError, "begin write", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO memory_entries (key, value, kind, ts) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, kind = excluded.kind, ts = excluded.ts
	`, entry.Key, entry.Value, entry.Kind, entry.Timestamp.UnixNano()); err != nil {
		return errors.New(errors.CodeMemoryError, "write entry", err).WithContext("key", entry.Key)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM memory_tags WHERE key = ?`, entry.Key); err != nil {
		return errors.New(errors.CodeMemoryError, "clear tags", err).WithContext("key", entry.Key)
	}
	for i, tag := range entry.Tags {
		if _, err := tx.ExecContext(ctx, `INSERT INTO memory_tags (key, tag, position) VALUES (?, ?, ?)`,
			entry.Key, tag, i); err != nil {
			return errors.New(errors.CodeMemoryError, "write tag", err).WithContext("key", entry.Key)
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.New(errors.CodeMemoryError, "commit write", err)
	}
	return nil
}

// ReadByKey implements Store.
func (s *SQLiteStore) ReadByKey(ctx context.Context, key string) (Entry, bool, error) {
	entries, err := s.query(ctx, `SELECT key, value, kind, ts FROM memory_entries WHERE key = ?`, key)
	if err != nil {
		return Entry{}, false, err
	}
	if len(entries) == 0 {
		return Entry{}, false, nil
	}
	return entries[0], true, nil
}

// ReadRecent implements Store.
func (s *SQLiteStore) ReadRecent(ctx context.Context, limit int) ([]Entry, error) {
	if limit < 0 {
		limit = 0
	}
	return s.query(ctx, `SELECT key, value, kind, ts FROM memory_entries ORDER BY ts DESC, key ASC LIMIT ?`, int64(limit))
}

// SearchByTag implements Store.
func (s *SQLiteStore) SearchByTag(ctx context.Context, tag string) ([]Entry, error) {
	return s.query(ctx, `
		SELECT e.key, e.value, e.kind, e.ts
		FROM memory_entries e
		JOIN memory_tags t ON t.key = e.key
		WHERE t.tag = ?
		ORDER BY e.ts DESC, e.key ASC
	`, tag)
}

func (s *SQLiteStore) query(ctx context.Context, query string, args ...any) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.New(errors.CodeMemoryError, "query entries", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			entry Entry
			ts    int64
		)
		if err := rows.Scan(&entry.Key, &entry.Value, &entry.Kind, &ts); err != nil {
			return nil, errors.New(errors.CodeMemoryError, "scan entry", err)
		}
		entry.Timestamp = time.Unix(0, ts).UTC()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.New(errors.CodeMemoryError, "iterate entries", err)
	}
	if err := rows.Close(); err != nil {
		return nil, errors.New(errors.CodeMemoryError, "close rows", err)
	}
	if err := s.attachTags(ctx, entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *SQLiteStore) attachTags(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	index := make(map[string]int, len(entries))
	args := make([]any, len(entries))
	for i, e := range entries {
		index[e.Key] = i
		args[i] = e.Key
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(entries)), ",")
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, tag FROM memory_tags WHERE key IN (`+placeholders+`) ORDER BY key, position`, args...)
	if err != nil {
		return errors.New(errors.CodeMemoryError, "query tags", err)
	}
	defer rows.Close()
	for rows.Next() {
		var key, tag string
		if err := rows.Scan(&key, &tag); err != nil {
			return errors.New(errors.CodeMemoryError, "scan tag", err)
		}
		if i, ok := index[key]; ok {
			entries[i].Tags = append(entries[i].Tags, tag)
		}
	}
	return rows.Err()
}

func ensureMemorySchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS memory_entries (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			kind TEXT NOT NULL DEFAULT '',
			ts INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS memory_tags (
			key TEXT NOT NULL,
			tag TEXT NOT NULL,
			position INTEGER NOT NULL,
			PRIMARY KEY (key, tag)
		);
		CREATE INDEX IF NOT EXISTS idx_memory_entries_ts ON memory_entries(ts);
		CREATE INDEX IF NOT EXISTS idx_memory_tags_tag ON memory_tags(tag);
	`)
	return err
}
