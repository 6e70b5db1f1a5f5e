// Package player defines the canonical layout of a player record: where each
// combat field, inventory count, loadout and death timer lives, which legacy
// fields they replace, and how loosely typed stored values are read.
package player

import (
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/cory-johannsen/fightsheet/internal/storage"
)

// Canonical record paths.
const (
	ItemsPath    = "items"
	CombatPath   = "combat"
	EquipsPath   = "equips"
	ReviveAtPath = "reviveAt"

	// HealthPath is read by the death machine and sweep without the stat engine.
	HealthPath = CombatPath + ".health"
)

// Legacy record paths still found on older records. Each is read only when
// its canonical replacement is absent.
const (
	LegacyHealthPath    = "fight_hp"
	LegacyMaxHealthPath = "max_life"
	LegacyEquipsPath    = "fight_equips"
	LegacyDeadUntilPath = "dead_until"
)

// LegacyTimeLayout is the layout of LegacyDeadUntilPath values.
const LegacyTimeLayout = "2006-01-02 15:04:05"

// CombatField returns the record path of a combat profile field.
func CombatField(name string) string {
	return storage.Join(CombatPath, name)
}

// ItemCountPath returns the record path of the inventory count for an item,
// keyed by its display name.
func ItemCountPath(displayName string) string {
	return storage.Join(ItemsPath, storage.EscapeKey(displayName))
}

// ItemCount returns the inventory count for displayName. Malformed and
// negative counts read as zero.
func ItemCount(doc storage.Document, displayName string) int {
	n := Int(doc.Get(ItemCountPath(displayName)))
	if n < 0 {
		return 0
	}
	return n
}

// Number coerces a stored value to a finite number; see storage.Number.
func Number(r gjson.Result) float64 {
	return storage.Number(r)
}

// Int coerces a stored value to an int, truncating toward zero.
func Int(r gjson.Result) int {
	return storage.Int(r)
}

// IsNumber reports whether r holds a JSON number.
func IsNumber(r gjson.Result) bool {
	return r.Type == gjson.Number
}

// DeathTimer reads the death timer from doc.
//
// Postcondition: present is false when neither the canonical nor the legacy
// field holds a value. When present, ok is false if the value cannot be
// parsed; callers treat such a timer as expired.
func DeathTimer(doc storage.Document) (at time.Time, present, ok bool) {
	r := doc.Get(ReviveAtPath)
	if !doc.Has(ReviveAtPath) {
		if !doc.Has(LegacyDeadUntilPath) {
			return time.Time{}, false, false
		}
		r = doc.Get(LegacyDeadUntilPath)
	}
	at, ok = ParseTime(r)
	return at, true, ok
}

// ParseTime parses a stored timestamp: RFC 3339, the legacy layout (UTC), or
// Unix seconds.
func ParseTime(r gjson.Result) (time.Time, bool) {
	switch r.Type {
	case gjson.Number:
		return time.Unix(int64(r.Num), 0).UTC(), true
	case gjson.String:
		s := strings.TrimSpace(r.Str)
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return t, true
		}
		if t, err := time.ParseInLocation(LegacyTimeLayout, s, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatTime renders t the way death timers are stored.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ClearDeathTimer returns the fields that remove every form of death timer.
func ClearDeathTimer() map[string]any {
	return map[string]any{
		ReviveAtPath:        storage.Unset,
		LegacyDeadUntilPath: storage.Unset,
	}
}
