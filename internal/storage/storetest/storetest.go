// Package storetest holds the contract suite every storage.Store backend must pass.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/fightsheet/internal/storage"
)

// Factory returns a fresh, empty store. The factory owns cleanup via t.Cleanup.
type Factory func(t *testing.T) storage.Store

// Run executes the contract suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("GetMissing", func(t *testing.T) { testGetMissing(t, newStore(t)) })
	t.Run("SetFieldsUpserts", func(t *testing.T) { testSetFieldsUpserts(t, newStore(t)) })
	t.Run("SetFieldsEmptyIsNoop", func(t *testing.T) { testSetFieldsEmptyIsNoop(t, newStore(t)) })
	t.Run("SetFieldsUnset", func(t *testing.T) { testSetFieldsUnset(t, newStore(t)) })
	t.Run("IncrementFields", func(t *testing.T) { testIncrementFields(t, newStore(t)) })
	t.Run("IncrementFieldsBounds", func(t *testing.T) { testIncrementFieldsBounds(t, newStore(t)) })
	t.Run("IncrementFieldsConcurrent", func(t *testing.T) { testIncrementFieldsConcurrent(t, newStore(t)) })
	t.Run("Replace", func(t *testing.T) { testReplace(t, newStore(t)) })
	t.Run("Projection", func(t *testing.T) { testProjection(t, newStore(t)) })
	t.Run("Scan", func(t *testing.T) { testScan(t, newStore(t)) })
}

func playerID() string {
	return fmt.Sprintf("player-%s", uuid.NewString())
}

func testGetMissing(t *testing.T, s storage.Store) {
	_, err := s.Get(context.Background(), playerID())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testSetFieldsUpserts(t *testing.T, s storage.Store) {
	ctx := context.Background()
	id := playerID()
	require.NoError(t, s.SetFields(ctx, id, map[string]any{"points": 10}))
	require.NoError(t, s.SetFields(ctx, id, map[string]any{"combat.health": 250, "combat.maxHealth": 400}))

	doc, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, doc.ID)
	assert.Equal(t, 10.0, doc.Get("points").Num)
	assert.Equal(t, 250.0, doc.Get("combat.health").Num)
	assert.Equal(t, 400.0, doc.Get("combat.maxHealth").Num)
}

func testSetFieldsEmptyIsNoop(t *testing.T, s storage.Store) {
	ctx := context.Background()
	id := playerID()
	require.NoError(t, s.SetFields(ctx, id, nil))
	_, err := s.Get(ctx, id)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testSetFieldsUnset(t *testing.T, s storage.Store) {
	ctx := context.Background()
	id := playerID()
	require.NoError(t, s.SetFields(ctx, id, map[string]any{"reviveAt": "2026-01-01T00:00:00Z", "points": 1}))
	require.NoError(t, s.SetFields(ctx, id, map[string]any{"reviveAt": storage.Unset}))

	doc, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.False(t, doc.Has("reviveAt"))
	assert.True(t, doc.Has("points"))
}

func testIncrementFields(t *testing.T, s storage.Store) {
	ctx := context.Background()
	id := playerID()
	require.NoError(t, s.SetFields(ctx, id, map[string]any{"items": map[string]any{"Sword": 2, "Junk": "x"}}))

	doc, err := s.IncrementFields(ctx, id, map[string]float64{
		"items.Sword":  -1,
		"items.Junk":   3,
		"items.Shield": 1,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, doc.Get("items.Sword").Num)
	assert.Equal(t, 3.0, doc.Get("items.Junk").Num)
	assert.Equal(t, 1.0, doc.Get("items.Shield").Num)

	stored, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1.0, stored.Get("items.Sword").Num)
}

func testIncrementFieldsBounds(t *testing.T, s storage.Store) {
	ctx := context.Background()
	id := playerID()
	bounds := map[string]storage.Bounds{"combat.health": {Min: 0, Max: 400}}

	doc, err := s.IncrementFields(ctx, id, map[string]float64{"combat.health": 1000}, bounds)
	require.NoError(t, err)
	assert.Equal(t, 400.0, doc.Get("combat.health").Num)

	doc, err = s.IncrementFields(ctx, id, map[string]float64{"combat.health": -5000}, bounds)
	require.NoError(t, err)
	assert.Equal(t, 0.0, doc.Get("combat.health").Num)
}

func testIncrementFieldsConcurrent(t *testing.T, s storage.Store) {
	ctx := context.Background()
	id := playerID()
	require.NoError(t, s.SetFields(ctx, id, map[string]any{"points": 0}))

	const workers = 8
	const perWorker = 10
	var wg sync.WaitGroup
	errs := make(chan error, workers*perWorker)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				if _, err := s.IncrementFields(ctx, id, map[string]float64{"points": 1}, nil); err != nil {
					errs <- err
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	doc, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, float64(workers*perWorker), doc.Get("points").Num)
}

func testReplace(t *testing.T, s storage.Store) {
	ctx := context.Background()
	id := playerID()
	require.NoError(t, s.SetFields(ctx, id, map[string]any{"points": 5, "combat.health": 1}))
	require.NoError(t, s.Replace(ctx, id, storage.NewDocument(id, []byte(`{"combat":{"health":400}}`))))

	doc, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.False(t, doc.Has("points"))
	assert.Equal(t, 400.0, doc.Get("combat.health").Num)
}

func testProjection(t *testing.T, s storage.Store) {
	ctx := context.Background()
	id := playerID()
	require.NoError(t, s.SetFields(ctx, id, map[string]any{
		"points":        7,
		"combat.health": 9,
		"equips":        []any{"sword", nil, nil},
	}))

	doc, err := s.Get(ctx, id, "combat.health", "equips")
	require.NoError(t, err)
	assert.False(t, doc.Has("points"))
	assert.Equal(t, 9.0, doc.Get("combat.health").Num)
	assert.Len(t, doc.Get("equips").Array(), 3)
}

func testScan(t *testing.T, s storage.Store) {
	ctx := context.Background()
	dead, alive, timed, odd := playerID(), playerID(), playerID(), playerID()
	require.NoError(t, s.SetFields(ctx, dead, map[string]any{"combat.health": 0}))
	require.NoError(t, s.SetFields(ctx, alive, map[string]any{"combat.health": 100}))
	require.NoError(t, s.SetFields(ctx, timed, map[string]any{"combat.health": 50, "reviveAt": "2026-01-01T00:00:00Z"}))
	require.NoError(t, s.SetFields(ctx, odd, map[string]any{"combat.health": "zero"}))

	filter := storage.Filter{AnyOf: []storage.Predicate{
		storage.LessOrEqual("combat.health", 0),
		storage.Exists("reviveAt"),
	}}
	docs, err := s.Scan(ctx, filter, "combat.health")
	require.NoError(t, err)

	got := make(map[string]storage.Document, len(docs))
	for _, d := range docs {
		got[d.ID] = d
	}
	assert.Contains(t, got, dead)
	assert.Contains(t, got, timed)
	assert.NotContains(t, got, alive)
	assert.NotContains(t, got, odd)
	assert.False(t, got[timed].Has("reviveAt"), "projection drops unlisted fields")

	all, err := s.Scan(ctx, storage.Filter{})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(all), 4)
}

// Failing is a Store whose every call returns Err. Tests use it to exercise
// storage failure paths.
type Failing struct {
	Err error
}

// Get implements storage.Store.
func (f Failing) Get(context.Context, string, ...string) (storage.Document, error) {
	return storage.Document{}, f.Err
}

// SetFields implements storage.Store.
func (f Failing) SetFields(context.Context, string, map[string]any) error { return f.Err }

// IncrementFields implements storage.Store.
func (f Failing) IncrementFields(context.Context, string, map[string]float64, map[string]storage.Bounds) (storage.Document, error) {
	return storage.Document{}, f.Err
}

// Replace implements storage.Store.
func (f Failing) Replace(context.Context, string, storage.Document) error { return f.Err }

// Scan implements storage.Store.
func (f Failing) Scan(context.Context, storage.Filter, ...string) ([]storage.Document, error) {
	return nil, f.Err
}

// Close implements storage.Store.
func (f Failing) Close() error { return nil }

var _ storage.Store = Failing{}
