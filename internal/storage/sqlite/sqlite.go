// Package sqlite provides a single-file SQLite player record store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/cory-johannsen/fightsheet/internal/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS players (
    id         TEXT    PRIMARY KEY,
    doc        TEXT    NOT NULL DEFAULT '{}',
    updated_at INTEGER NOT NULL DEFAULT (unixepoch())
);
`

// Store persists player records as JSON text in SQLite.
//
// The handle is limited to one connection so every read-modify-write
// transaction is serialized.
type Store struct {
	sqlDB *sql.DB
}

// Open opens (creating if needed) the database at path and ensures the schema.
//
// Precondition: path is a file path or ":memory:".
// Postcondition: Returns a ready Store or a non-nil error.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite: storage path is required")
	}
	dsn := path
	if path != ":memory:" {
		dsn = "file:" + filepath.Clean(path)
	}
	dsn += "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Get implements storage.Store.
func (s *Store) Get(ctx context.Context, id string, fields ...string) (storage.Document, error) {
	var raw string
	err := s.sqlDB.QueryRowContext(ctx, `SELECT doc FROM players WHERE id = ?`, id).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Document{}, storage.ErrNotFound
		}
		return storage.Document{}, fmt.Errorf("query player: %w", err)
	}
	return storage.NewDocument(id, storage.Project([]byte(raw), fields)), nil
}

// SetFields implements storage.Store.
func (s *Store) SetFields(ctx context.Context, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	_, err := s.mutate(ctx, id, func(raw []byte) ([]byte, error) {
		return storage.ApplySet(raw, fields)
	})
	return err
}

// IncrementFields implements storage.Store.
func (s *Store) IncrementFields(ctx context.Context, id string, deltas map[string]float64, bounds map[string]storage.Bounds) (storage.Document, error) {
	out, err := s.mutate(ctx, id, func(raw []byte) ([]byte, error) {
		return storage.ApplyIncrement(raw, deltas, bounds)
	})
	if err != nil {
		return storage.Document{}, err
	}
	return storage.NewDocument(id, out), nil
}

// Replace implements storage.Store.
func (s *Store) Replace(ctx context.Context, id string, doc storage.Document) error {
	norm := storage.NewDocument(id, doc.Raw)
	_, err := s.sqlDB.ExecContext(ctx, `
		INSERT INTO players (id, doc) VALUES (?, ?)
		ON CONFLICT (id) DO UPDATE SET doc = excluded.doc, updated_at = unixepoch()`,
		id, string(norm.Raw),
	)
	if err != nil {
		return fmt.Errorf("replace player: %w", err)
	}
	return nil
}

// Scan implements storage.Store.
func (s *Store) Scan(ctx context.Context, filter storage.Filter, fields ...string) ([]storage.Document, error) {
	where, args := filterSQL(filter)
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT id, doc FROM players WHERE `+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("scan players: %w", err)
	}
	defer rows.Close()

	out := make([]storage.Document, 0)
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan player row: %w", err)
		}
		doc := storage.NewDocument(id, []byte(raw))
		if !filter.Match(doc) {
			continue
		}
		out = append(out, storage.NewDocument(id, storage.Project(doc.Raw, fields)))
	}
	return out, rows.Err()
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) mutate(ctx context.Context, id string, fn func([]byte) ([]byte, error)) ([]byte, error) {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO players (id, doc) VALUES (?, '{}')`, id); err != nil {
		return nil, fmt.Errorf("ensure player row: %w", err)
	}
	var raw string
	if err := tx.QueryRowContext(ctx, `SELECT doc FROM players WHERE id = ?`, id).Scan(&raw); err != nil {
		return nil, fmt.Errorf("read player row: %w", err)
	}
	out, err := fn([]byte(raw))
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE players SET doc = ?, updated_at = unixepoch() WHERE id = ?`, string(out), id); err != nil {
		return nil, fmt.Errorf("update player: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit player update: %w", err)
	}
	return out, nil
}

// jsonPath converts a dotted path into an SQLite JSON path with quoted keys.
func jsonPath(path string) string {
	var b strings.Builder
	b.WriteString("$")
	for _, seg := range storage.SplitPath(path) {
		b.WriteString(`."`)
		b.WriteString(strings.ReplaceAll(seg, `"`, `\"`))
		b.WriteString(`"`)
	}
	return b.String()
}

func filterSQL(f storage.Filter) (string, []any) {
	if len(f.AnyOf) == 0 {
		return "1", nil
	}
	var (
		clauses []string
		args    []any
	)
	for _, p := range f.AnyOf {
		path := jsonPath(p.Path)
		switch p.Op {
		case storage.OpExists:
			clauses = append(clauses, "(json_type(doc, ?) IS NOT NULL AND json_type(doc, ?) <> 'null')")
			args = append(args, path, path)
		case storage.OpLessOrEqual:
			clauses = append(clauses, "(json_type(doc, ?) IN ('integer', 'real') AND json_extract(doc, ?) <= ?)")
			args = append(args, path, path, p.Value)
		}
	}
	if len(clauses) == 0 {
		return "1", nil
	}
	return strings.Join(clauses, " OR "), args
}

var _ storage.Store = (*Store)(nil)
