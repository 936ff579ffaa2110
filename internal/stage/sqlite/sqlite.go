// Package sqlite implements durable stage backends on SQLite. The
// episodic and persistent tiers share this implementation and differ
// only in the stage label each connection is opened with.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/patchwork-labs/stratum/internal/memory"
)

// Store is a SQLite-backed stage. One Store owns one database file and
// holds entries for exactly one stage.
type Store struct {
	db    *sql.DB
	path  string
	stage memory.Stage
}

// Open opens (or creates) the database at path, configures pragmas,
// and runs migrations.
func Open(path string, stage memory.Stage) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return setup(db, path, stage)
}

// OpenMemory opens an in-memory database for tests and ephemeral runs.
func OpenMemory(stage memory.Stage) (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	// In-memory sqlite loses the schema when the pool opens a second
	// connection, so pin the pool to one.
	db.SetMaxOpenConns(1)
	return setup(db, ":memory:", stage)
}

func setup(db *sql.DB, path string, stage memory.Stage) (*Store, error) {
	s := &Store{db: db, path: path, stage: stage}
	if err := s.configurePragmas(); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) configurePragmas() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("pragma %q: %w", p, err)
		}
	}
	return nil
}

// Store inserts or replaces an entry. Metadata and content are stored
// as JSON; consolidated_to is denormalized into its own column so the
// consolidation scan stays an indexed query.
func (s *Store) Store(ctx context.Context, e *memory.Entry) error {
	contentJSON, err := json.Marshal(e.Content)
	if err != nil {
		return fmt.Errorf("marshal content: %w", err)
	}
	metaJSON, err := json.Marshal(e.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	var consolidatedTo sql.NullString
	if link, ok := e.Metadata[memory.MetaConsolidatedTo].(string); ok && link != "" {
		consolidatedTo = sql.NullString{String: link, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO entries
			(id, content, metadata, importance, stage, consolidated_to,
			 created_at, last_accessed, access_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, string(contentJSON), string(metaJSON), e.Importance, e.Stage.String(),
		consolidatedTo, e.CreatedAt.UnixMilli(), e.LastAccessed.UnixMilli(), e.AccessCount)
	if err != nil {
		return fmt.Errorf("store entry: %w", err)
	}
	return nil
}

func (s *Store) GetByID(ctx context.Context, id string) (*memory.Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, content, metadata, importance, stage, created_at, last_accessed, access_count
		FROM entries WHERE id = ?
	`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, memory.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	return e, nil
}

// Search matches the query as a case-insensitive substring of the
// rendered content, best importance first.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]*memory.Entry, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, metadata, importance, stage, created_at, last_accessed, access_count
		FROM entries
		WHERE instr(lower(content), lower(?)) > 0
		ORDER BY importance DESC, created_at DESC
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search entries: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// GetForConsolidation returns unconsolidated entries at or above the
// importance threshold, oldest first.
func (s *Store) GetForConsolidation(ctx context.Context, threshold float64, limit int) ([]*memory.Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, metadata, importance, stage, created_at, last_accessed, access_count
		FROM entries
		WHERE importance >= ? AND consolidated_to IS NULL
		ORDER BY created_at ASC
		LIMIT ?
	`, threshold, limit)
	if err != nil {
		return nil, fmt.Errorf("consolidation scan: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (s *Store) Remove(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("remove entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove entry: %w", err)
	}
	if n == 0 {
		return memory.ErrNotFound
	}
	return nil
}

// Touch records an access: bumps access_count and last_accessed.
func (s *Store) Touch(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE entries
		SET access_count = access_count + 1,
		    last_accessed = strftime('%s', 'now') * 1000
		WHERE id = ?
	`, id)
	if err != nil {
		return fmt.Errorf("touch entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("touch entry: %w", err)
	}
	if n == 0 {
		return memory.ErrNotFound
	}
	return nil
}

func (s *Store) Stats(ctx context.Context) (memory.StageStats, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`).Scan(&count); err != nil {
		return memory.StageStats{}, fmt.Errorf("count entries: %w", err)
	}
	return memory.StageStats{Stage: s.stage, Count: count}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Stage returns the stage this store was opened for.
func (s *Store) Stage() memory.Stage { return s.stage }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*memory.Entry, error) {
	var (
		e                     memory.Entry
		contentJSON, metaJSON string
		stageName             string
		createdMs, lastAccMs  int64
	)
	err := row.Scan(&e.ID, &contentJSON, &metaJSON, &e.Importance, &stageName,
		&createdMs, &lastAccMs, &e.AccessCount)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(contentJSON), &e.Content); err != nil {
		return nil, fmt.Errorf("unmarshal content: %w", err)
	}
	if err := json.Unmarshal([]byte(metaJSON), &e.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	stage, err := memory.ParseStage(stageName)
	if err != nil {
		return nil, err
	}
	e.Stage = stage
	e.CreatedAt = msToTime(createdMs)
	e.LastAccessed = msToTime(lastAccMs)
	return &e, nil
}

func scanEntries(rows *sql.Rows) ([]*memory.Entry, error) {
	var out []*memory.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
