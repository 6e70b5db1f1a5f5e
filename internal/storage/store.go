// Package storage defines the player record store contract shared by every
// persistence backend. A record is a schemaless JSON document keyed by player ID;
// nested fields are addressed with dotted paths such as "combat.health".
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no record exists for the player.
var ErrNotFound = errors.New("storage: record not found")

// ErrInvalidPath is returned when a field path is empty or malformed.
var ErrInvalidPath = errors.New("storage: invalid field path")

// Bounds clamps the result of an increment to [Min, Max].
type Bounds struct {
	Min float64
	Max float64
}

// Clamp returns v limited to the bounds. When Max < Min, Min wins.
func (b Bounds) Clamp(v float64) float64 {
	if v > b.Max {
		v = b.Max
	}
	if v < b.Min {
		v = b.Min
	}
	return v
}

// unsetMarker is the type of Unset.
type unsetMarker struct{}

// Unset, used as a SetFields value, removes the field from the record.
var Unset = unsetMarker{}

// Store is the player record store.
//
// Every mutating call upserts: writing to a missing record creates it.
// Implementations must make each single call atomic with respect to other calls
// on the same record; compound read-then-write sequences spanning several calls
// are not protected.
type Store interface {
	// Get returns the record for id, optionally projected to the given paths.
	//
	// Postcondition: returns ErrNotFound when the record does not exist.
	Get(ctx context.Context, id string, fields ...string) (Document, error)

	// SetFields writes each path to its value. Unlisted fields are untouched.
	// A value of Unset removes the field.
	//
	// Postcondition: an empty map performs no I/O and returns nil.
	SetFields(ctx context.Context, id string, fields map[string]any) error

	// IncrementFields adds each delta to the numeric value at its path. Missing or
	// non-numeric values count as zero. When bounds holds an entry for a path the
	// post-increment value is clamped inside the same atomic step.
	//
	// Postcondition: returns the record as it stands after the update.
	IncrementFields(ctx context.Context, id string, deltas map[string]float64, bounds map[string]Bounds) (Document, error)

	// Replace overwrites the whole record.
	Replace(ctx context.Context, id string, doc Document) error

	// Scan returns every record matching filter, optionally projected.
	Scan(ctx context.Context, filter Filter, fields ...string) ([]Document, error)

	// Close releases backend resources.
	Close() error
}
