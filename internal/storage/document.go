package storage

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Document is one player record: its ID and the raw JSON object body.
type Document struct {
	ID  string
	Raw []byte
}

// NewDocument wraps raw JSON for id. Empty or invalid input yields an empty object.
func NewDocument(id string, raw []byte) Document {
	if len(raw) == 0 || !gjson.ValidBytes(raw) {
		raw = []byte("{}")
	}
	return Document{ID: id, Raw: raw}
}

// Get returns the value at path.
func (d Document) Get(path string) gjson.Result {
	return gjson.GetBytes(d.Raw, path)
}

// Has reports whether path holds a non-null value.
func (d Document) Has(path string) bool {
	r := d.Get(path)
	return r.Exists() && r.Type != gjson.Null
}

// EscapeKey escapes a single key so it can be embedded in a dotted path.
// Item display names may contain dots, wildcards or other path syntax.
func EscapeKey(key string) string {
	var b strings.Builder
	for _, r := range key {
		switch r {
		case '\\', '.', '*', '?', '|', '#', '@', '!', '=', '<', '>', '%', ':':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Join builds a dotted path from pre-escaped segments.
func Join(segments ...string) string {
	return strings.Join(segments, ".")
}

// SplitPath splits a dotted path into unescaped segments.
//
// Postcondition: SplitPath(Join(EscapeKey(a), EscapeKey(b))) == [a, b].
func SplitPath(path string) []string {
	var (
		segs    []string
		cur     strings.Builder
		escaped bool
	)
	for _, r := range path {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == '.':
			segs = append(segs, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	return append(segs, cur.String())
}

// Number coerces a stored value to a finite float64.
// Numbers pass through, numeric strings are parsed, booleans map to 1 and 0;
// anything else, including NaN and infinities, is zero.
func Number(r gjson.Result) float64 {
	var v float64
	switch r.Type {
	case gjson.Number:
		v = r.Num
	case gjson.String:
		f, err := strconv.ParseFloat(strings.TrimSpace(r.Str), 64)
		if err != nil {
			return 0
		}
		v = f
	case gjson.True:
		return 1
	default:
		return 0
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// Int coerces a stored value to an int, truncating toward zero.
func Int(r gjson.Result) int {
	v := Number(r)
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	if v < math.MinInt32 {
		return math.MinInt32
	}
	return int(v)
}

// ApplySet returns raw with every field written. Keys are applied in sorted order
// so parents are created before children.
func ApplySet(raw []byte, fields map[string]any) ([]byte, error) {
	out := normalize(raw)
	for _, path := range sortedKeys(fields) {
		if path == "" {
			return nil, ErrInvalidPath
		}
		var err error
		if _, ok := fields[path].(unsetMarker); ok {
			out, err = sjson.DeleteBytes(out, path)
		} else {
			out, err = sjson.SetBytes(out, path, fields[path])
		}
		if err != nil {
			return nil, fmt.Errorf("storage: setting %q: %w", path, err)
		}
	}
	return out, nil
}

// ApplyIncrement returns raw with each delta added to its path and clamped by bounds.
func ApplyIncrement(raw []byte, deltas map[string]float64, bounds map[string]Bounds) ([]byte, error) {
	out := normalize(raw)
	for _, path := range sortedKeys(deltas) {
		if path == "" {
			return nil, ErrInvalidPath
		}
		next := Number(gjson.GetBytes(out, path)) + deltas[path]
		if b, ok := bounds[path]; ok {
			next = b.Clamp(next)
		}
		var err error
		out, err = sjson.SetBytes(out, path, next)
		if err != nil {
			return nil, fmt.Errorf("storage: incrementing %q: %w", path, err)
		}
	}
	return out, nil
}

// Project returns a new JSON object holding only the listed paths.
// With no paths, raw is returned unchanged.
func Project(raw []byte, paths []string) []byte {
	if len(paths) == 0 {
		return raw
	}
	out := []byte("{}")
	for _, path := range paths {
		r := gjson.GetBytes(raw, path)
		if !r.Exists() {
			continue
		}
		next, err := sjson.SetRawBytes(out, path, []byte(r.Raw))
		if err != nil {
			continue
		}
		out = next
	}
	return out
}

func normalize(raw []byte) []byte {
	if len(raw) == 0 || !gjson.ValidBytes(raw) {
		return []byte("{}")
	}
	out := make([]byte, len(raw))
	copy(out, raw)
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
