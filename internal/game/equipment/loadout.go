// Package equipment manages the three equip slots of a player: equipping
// and unequipping against inventory, and summing the bonuses of what is worn.
package equipment

import (
	"github.com/tidwall/gjson"

	"github.com/cory-johannsen/fightsheet/internal/game/catalog"
)

// SlotCount is the number of equip slots per player.
const SlotCount = 3

// Loadout is the fixed slot array. An empty string is an empty slot.
type Loadout [SlotCount]string

// FromSlots builds a Loadout, padding short input with empty slots and
// dropping anything past SlotCount.
func FromSlots(slots []string) Loadout {
	var l Loadout
	copy(l[:], slots)
	return l
}

// Slots returns the loadout as a slice.
func (l Loadout) Slots() []string {
	return append([]string(nil), l[:]...)
}

// FirstEmpty returns the index of the leftmost empty slot, or -1.
func (l Loadout) FirstEmpty() int {
	for i, key := range l {
		if key == "" {
			return i
		}
	}
	return -1
}

// Count returns how many slots hold key.
func (l Loadout) Count(key string) int {
	n := 0
	for _, k := range l {
		if k == key {
			n++
		}
	}
	return n
}

// IsEmpty reports whether every slot is empty.
func (l Loadout) IsEmpty() bool {
	return l == Loadout{}
}

// Display renders each slot through the catalog.
func (l Loadout) Display(c *catalog.Catalog) [SlotCount]string {
	var out [SlotCount]string
	for i, key := range l {
		out[i] = c.Display(key)
	}
	return out
}

// stored renders the loadout for the record: empty slots become null.
func (l Loadout) stored() []any {
	out := make([]any, SlotCount)
	for i, key := range l {
		if key != "" {
			out[i] = key
		}
	}
	return out
}

// parseLoadout reads a stored slot array. Non-string entries are empty
// slots; a non-array value is an empty loadout.
func parseLoadout(r gjson.Result) Loadout {
	var l Loadout
	if !r.IsArray() {
		return l
	}
	for i, v := range r.Array() {
		if i >= SlotCount {
			break
		}
		if v.Type == gjson.String {
			l[i] = v.Str
		}
	}
	return l
}

// Bonuses is the combined stat and effect contribution of a loadout, keyed
// by catalog stat or effect key.
type Bonuses map[string]float64

// Get returns the bonus for key, or 0.
func (b Bonuses) Get(key string) float64 {
	return b[key]
}
