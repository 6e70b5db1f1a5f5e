package storage_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/fightsheet/internal/storage"
)

func TestNewDocument_InvalidJSONBecomesEmptyObject(t *testing.T) {
	assert.Equal(t, "{}", string(storage.NewDocument("p1", nil).Raw))
	assert.Equal(t, "{}", string(storage.NewDocument("p1", []byte("{not json")).Raw))
}

func TestNumber_Coercion(t *testing.T) {
	doc := storage.NewDocument("p1", []byte(`{"n":12.5,"s":" 7 ","bad":"abc","t":true,"f":false,"o":{"x":1},"nul":null}`))
	assert.Equal(t, 12.5, storage.Number(doc.Get("n")))
	assert.Equal(t, 7.0, storage.Number(doc.Get("s")))
	assert.Equal(t, 0.0, storage.Number(doc.Get("bad")))
	assert.Equal(t, 1.0, storage.Number(doc.Get("t")))
	assert.Equal(t, 0.0, storage.Number(doc.Get("f")))
	assert.Equal(t, 0.0, storage.Number(doc.Get("o")))
	assert.Equal(t, 0.0, storage.Number(doc.Get("nul")))
	assert.Equal(t, 0.0, storage.Number(doc.Get("missing")))
	assert.Equal(t, 12, storage.Int(doc.Get("n")))
}

func TestNumber_NaNStringIsZero(t *testing.T) {
	doc := storage.NewDocument("p1", []byte(`{"a":"NaN","b":"+Inf"}`))
	assert.Equal(t, 0.0, storage.Number(doc.Get("a")))
	assert.Equal(t, 0.0, storage.Number(doc.Get("b")))
}

func TestApplySet_CreatesNestedPaths(t *testing.T) {
	out, err := storage.ApplySet([]byte(`{"points":5}`), map[string]any{
		"combat.health": 120,
		"combat.mana":   30,
	})
	require.NoError(t, err)
	doc := storage.NewDocument("p1", out)
	assert.Equal(t, int64(120), doc.Get("combat.health").Int())
	assert.Equal(t, int64(30), doc.Get("combat.mana").Int())
	assert.Equal(t, int64(5), doc.Get("points").Int())
}

func TestApplySet_Unset(t *testing.T) {
	out, err := storage.ApplySet([]byte(`{"reviveAt":"x","points":1}`), map[string]any{"reviveAt": storage.Unset})
	require.NoError(t, err)
	doc := storage.NewDocument("p1", out)
	assert.False(t, doc.Has("reviveAt"))
	assert.True(t, doc.Has("points"))
}

func TestApplySet_EmptyPathRejected(t *testing.T) {
	_, err := storage.ApplySet(nil, map[string]any{"": 1})
	assert.ErrorIs(t, err, storage.ErrInvalidPath)
}

func TestApplyIncrement_MalformedCountsAsZero(t *testing.T) {
	out, err := storage.ApplyIncrement([]byte(`{"items":{"Sword":"lots"}}`), map[string]float64{"items.Sword": 2}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2.0, gjson.GetBytes(out, "items.Sword").Num)
}

func TestApplyIncrement_Bounds(t *testing.T) {
	out, err := storage.ApplyIncrement([]byte(`{"combat":{"health":50}}`),
		map[string]float64{"combat.health": -80},
		map[string]storage.Bounds{"combat.health": {Min: 0, Max: 400}})
	require.NoError(t, err)
	assert.Equal(t, 0.0, gjson.GetBytes(out, "combat.health").Num)
}

func TestEscapeKey_RoundTripsThroughPaths(t *testing.T) {
	name := "Kiếm v1.5 *rare*"
	path := storage.Join("items", storage.EscapeKey(name))
	out, err := storage.ApplySet(nil, map[string]any{path: 3})
	require.NoError(t, err)
	assert.Equal(t, 3.0, gjson.GetBytes(out, path).Num)
	assert.Equal(t, 3.0, gjson.GetBytes(out, "items").Map()[name].Num)
}

func TestProperty_SplitPath_InvertsEscapedJoin(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		segs := rapid.SliceOfN(rapid.StringMatching(`[a-zA-Z0-9 .*?|#@\\]{1,12}`), 1, 4).Draw(rt, "segs")
		escaped := make([]string, len(segs))
		for i, s := range segs {
			escaped[i] = storage.EscapeKey(s)
		}
		got := storage.SplitPath(storage.Join(escaped...))
		if len(got) != len(segs) {
			rt.Fatalf("got %d segments, want %d: %q", len(got), len(segs), got)
		}
		for i := range segs {
			if got[i] != segs[i] {
				rt.Fatalf("segment %d: got %q, want %q", i, got[i], segs[i])
			}
		}
	})
}

func TestProject_KeepsOnlyListedPaths(t *testing.T) {
	raw := []byte(`{"points":9,"combat":{"health":3,"mana":4},"equips":["a",null,null]}`)
	out := storage.Project(raw, []string{"combat.health", "equips", "missing"})
	doc := storage.NewDocument("p", out)
	assert.Equal(t, 3.0, doc.Get("combat.health").Num)
	assert.False(t, doc.Get("combat.mana").Exists())
	assert.False(t, doc.Get("points").Exists())
	assert.Len(t, doc.Get("equips").Array(), 3)
	assert.Equal(t, string(raw), string(storage.Project(raw, nil)))
}

func TestFilter_Match(t *testing.T) {
	f := storage.Filter{AnyOf: []storage.Predicate{
		storage.LessOrEqual("combat.health", 0),
		storage.Exists("reviveAt"),
	}}
	cases := []struct {
		raw  string
		want bool
	}{
		{`{"combat":{"health":0}}`, true},
		{`{"combat":{"health":-3}}`, true},
		{`{"combat":{"health":10}}`, false},
		{`{"combat":{"health":"0"}}`, false},
		{`{"combat":{"health":10},"reviveAt":"2026-01-01T00:00:00Z"}`, true},
		{`{"reviveAt":null}`, false},
		{`{}`, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, f.Match(storage.NewDocument("p", []byte(c.raw))), c.raw)
	}
	assert.True(t, storage.Filter{}.Match(storage.NewDocument("p", nil)))
}

func TestProperty_ApplyIncrement_StaysInBounds(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		hi := rapid.Float64Range(0, 1e6).Draw(rt, "hi")
		b := storage.Bounds{Min: 0, Max: hi}
		raw := []byte(`{}`)
		for i, d := range rapid.SliceOfN(rapid.Float64Range(-1e6, 1e6), 1, 30).Draw(rt, "deltas") {
			var err error
			raw, err = storage.ApplyIncrement(raw, map[string]float64{"v": d}, map[string]storage.Bounds{"v": b})
			if err != nil {
				rt.Fatalf("step %d: %v", i, err)
			}
			v := gjson.GetBytes(raw, "v").Num
			if v < 0 || v > hi || math.IsNaN(v) {
				rt.Fatalf("step %d: %v outside [0, %v]", i, v, hi)
			}
		}
	})
}
