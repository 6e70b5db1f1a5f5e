// Package memstore provides an in-process player record store.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/cory-johannsen/fightsheet/internal/storage"
)

// Store keeps records in a map guarded by a single mutex.
// It is safe for concurrent use.
type Store struct {
	mu   sync.Mutex
	docs map[string][]byte
}

// New returns an empty Store.
func New() *Store {
	return &Store{docs: make(map[string][]byte)}
}

// Get implements storage.Store.
func (s *Store) Get(ctx context.Context, id string, fields ...string) (storage.Document, error) {
	if err := ctx.Err(); err != nil {
		return storage.Document{}, err
	}
	s.mu.Lock()
	raw, ok := s.docs[id]
	s.mu.Unlock()
	if !ok {
		return storage.Document{}, storage.ErrNotFound
	}
	return storage.NewDocument(id, storage.Project(append([]byte(nil), raw...), fields)), nil
}

// SetFields implements storage.Store.
func (s *Store) SetFields(ctx context.Context, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out, err := storage.ApplySet(s.docs[id], fields)
	if err != nil {
		return err
	}
	s.docs[id] = out
	return nil
}

// IncrementFields implements storage.Store.
func (s *Store) IncrementFields(ctx context.Context, id string, deltas map[string]float64, bounds map[string]storage.Bounds) (storage.Document, error) {
	if err := ctx.Err(); err != nil {
		return storage.Document{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out, err := storage.ApplyIncrement(s.docs[id], deltas, bounds)
	if err != nil {
		return storage.Document{}, err
	}
	s.docs[id] = out
	return storage.NewDocument(id, out), nil
}

// Replace implements storage.Store.
func (s *Store) Replace(ctx context.Context, id string, doc storage.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	norm := storage.NewDocument(id, doc.Raw)
	raw := make([]byte, len(norm.Raw))
	copy(raw, norm.Raw)
	s.mu.Lock()
	s.docs[id] = raw
	s.mu.Unlock()
	return nil
}

// Scan implements storage.Store. Results are ordered by ID.
func (s *Store) Scan(ctx context.Context, filter storage.Filter, fields ...string) ([]storage.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	ids := make([]string, 0, len(s.docs))
	for id := range s.docs {
		ids = append(ids, id)
	}
	snapshot := make(map[string][]byte, len(s.docs))
	for id, raw := range s.docs {
		snapshot[id] = raw
	}
	s.mu.Unlock()

	sort.Strings(ids)
	out := make([]storage.Document, 0)
	for _, id := range ids {
		doc := storage.NewDocument(id, snapshot[id])
		if !filter.Match(doc) {
			continue
		}
		out = append(out, storage.NewDocument(id, storage.Project(doc.Raw, fields)))
	}
	return out, nil
}

// Close implements storage.Store.
func (s *Store) Close() error {
	return nil
}

var _ storage.Store = (*Store)(nil)
