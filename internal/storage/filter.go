package storage

import "github.com/tidwall/gjson"

// Op is a predicate operator.
type Op int

const (
	// OpExists matches when the path holds a non-null value.
	OpExists Op = iota
	// OpLessOrEqual matches when the path holds a number <= Value.
	OpLessOrEqual
)

// Predicate tests one path of a record.
type Predicate struct {
	Path  string
	Op    Op
	Value float64
}

// Exists builds an OpExists predicate.
func Exists(path string) Predicate {
	return Predicate{Path: path, Op: OpExists}
}

// LessOrEqual builds an OpLessOrEqual predicate.
func LessOrEqual(path string, v float64) Predicate {
	return Predicate{Path: path, Op: OpLessOrEqual, Value: v}
}

// Filter is a disjunction of predicates. The zero Filter matches every record.
type Filter struct {
	AnyOf []Predicate
}

// Match reports whether the document satisfies the filter.
// Backends that translate filters to SQL use Match to confirm each row so that
// every backend agrees on the result.
func (f Filter) Match(d Document) bool {
	if len(f.AnyOf) == 0 {
		return true
	}
	for _, p := range f.AnyOf {
		if p.match(d) {
			return true
		}
	}
	return false
}

func (p Predicate) match(d Document) bool {
	r := d.Get(p.Path)
	switch p.Op {
	case OpExists:
		return r.Exists() && r.Type != gjson.Null
	case OpLessOrEqual:
		return r.Type == gjson.Number && r.Num <= p.Value
	}
	return false
}
