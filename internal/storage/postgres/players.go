package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/fightsheet/internal/storage"
)

// PlayerStore keeps player records as JSONB documents in the players table.
//
// Field updates run as read-modify-write inside a transaction that holds the
// row lock, so each call is atomic with respect to other calls on the same player.
type PlayerStore struct {
	db *pgxpool.Pool
}

// NewPlayerStore creates a PlayerStore backed by the given pool.
//
// Precondition: db must be a valid, open connection pool and the players table must exist.
func NewPlayerStore(db *pgxpool.Pool) *PlayerStore {
	return &PlayerStore{db: db}
}

// Get implements storage.Store.
func (s *PlayerStore) Get(ctx context.Context, id string, fields ...string) (storage.Document, error) {
	var raw []byte
	err := s.db.QueryRow(ctx, `SELECT doc FROM players WHERE id = $1`, id).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return storage.Document{}, storage.ErrNotFound
		}
		return storage.Document{}, fmt.Errorf("querying player: %w", err)
	}
	return storage.NewDocument(id, storage.Project(raw, fields)), nil
}

// SetFields implements storage.Store.
func (s *PlayerStore) SetFields(ctx context.Context, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	_, err := s.mutate(ctx, id, func(raw []byte) ([]byte, error) {
		return storage.ApplySet(raw, fields)
	})
	return err
}

// IncrementFields implements storage.Store.
func (s *PlayerStore) IncrementFields(ctx context.Context, id string, deltas map[string]float64, bounds map[string]storage.Bounds) (storage.Document, error) {
	out, err := s.mutate(ctx, id, func(raw []byte) ([]byte, error) {
		return storage.ApplyIncrement(raw, deltas, bounds)
	})
	if err != nil {
		return storage.Document{}, err
	}
	return storage.NewDocument(id, out), nil
}

// Replace implements storage.Store.
func (s *PlayerStore) Replace(ctx context.Context, id string, doc storage.Document) error {
	norm := storage.NewDocument(id, doc.Raw)
	_, err := s.db.Exec(ctx, `
		INSERT INTO players (id, doc) VALUES ($1, $2::jsonb)
		ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc, updated_at = NOW()`,
		id, string(norm.Raw),
	)
	if err != nil {
		return fmt.Errorf("replacing player: %w", err)
	}
	return nil
}

// Scan implements storage.Store. The filter is evaluated by PostgreSQL and
// confirmed with Filter.Match.
func (s *PlayerStore) Scan(ctx context.Context, filter storage.Filter, fields ...string) ([]storage.Document, error) {
	where, args := filterSQL(filter)
	rows, err := s.db.Query(ctx, `SELECT id, doc FROM players WHERE `+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("scanning players: %w", err)
	}
	defer rows.Close()

	out := make([]storage.Document, 0)
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scanning player row: %w", err)
		}
		doc := storage.NewDocument(id, raw)
		if !filter.Match(doc) {
			continue
		}
		out = append(out, storage.NewDocument(id, storage.Project(doc.Raw, fields)))
	}
	return out, rows.Err()
}

// Close is a no-op; the pool is owned by the caller.
func (s *PlayerStore) Close() error {
	return nil
}

func (s *PlayerStore) mutate(ctx context.Context, id string, fn func([]byte) ([]byte, error)) ([]byte, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		INSERT INTO players (id, doc) VALUES ($1, '{}'::jsonb)
		ON CONFLICT (id) DO NOTHING`, id); err != nil {
		return nil, fmt.Errorf("ensuring player row: %w", err)
	}

	var raw []byte
	if err := tx.QueryRow(ctx, `SELECT doc FROM players WHERE id = $1 FOR UPDATE`, id).Scan(&raw); err != nil {
		return nil, fmt.Errorf("locking player row: %w", err)
	}

	out, err := fn(raw)
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE players SET doc = $2::jsonb, updated_at = NOW() WHERE id = $1`,
		id, string(out)); err != nil {
		return nil, fmt.Errorf("updating player: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing player update: %w", err)
	}
	return out, nil
}

// filterSQL translates a filter into a WHERE clause over the doc column.
func filterSQL(f storage.Filter) (string, []any) {
	if len(f.AnyOf) == 0 {
		return "TRUE", nil
	}
	var (
		clauses []string
		args    []any
	)
	for _, p := range f.AnyOf {
		args = append(args, storage.SplitPath(p.Path))
		path := fmt.Sprintf("$%d::text[]", len(args))
		switch p.Op {
		case storage.OpExists:
			clauses = append(clauses, fmt.Sprintf(
				"(doc #> %s IS NOT NULL AND jsonb_typeof(doc #> %s) <> 'null')", path, path))
		case storage.OpLessOrEqual:
			args = append(args, p.Value)
			clauses = append(clauses, fmt.Sprintf(
				"(CASE WHEN jsonb_typeof(doc #> %s) = 'number' THEN (doc #>> %s)::float8 <= $%d ELSE FALSE END)",
				path, path, len(args)))
		}
	}
	if len(clauses) == 0 {
		return "TRUE", args
	}
	return strings.Join(clauses, " OR "), args
}

var _ storage.Store = (*PlayerStore)(nil)
