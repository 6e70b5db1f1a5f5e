// Package stats owns the persisted base combat profile of a player: its
// default block, read-time backfill of missing and legacy fields, and the
// bounded health and mana mutators.
package stats

import (
	"errors"
	"math"
)

// ErrUnknownField is returned when a caller names a field that is not part of
// the combat profile.
var ErrUnknownField = errors.New("stats: unknown profile field")

// Field names a combat profile field. The value is its key under the
// record's combat subdocument.
type Field string

// Profile fields.
const (
	Health       Field = "health"
	MaxHealth    Field = "maxHealth"
	Mana         Field = "mana"
	MaxMana      Field = "maxMana"
	AttackDamage Field = "attackDamage"
	DamageMin    Field = "damageMin"
	DamageMax    Field = "damageMax"
	AbilityPower Field = "abilityPower"
	Armor        Field = "armor"
	MagicResist  Field = "magicResist"
	CritRate     Field = "critRate"
	CritDamage   Field = "critDamage"
	AttackSpeed  Field = "attackSpeed"
	Lifesteal    Field = "lifesteal"
	Amplify      Field = "amplify"
	Resistance   Field = "resistance"
)

var fields = []Field{
	Health, MaxHealth, Mana, MaxMana,
	AttackDamage, DamageMin, DamageMax, AbilityPower,
	Armor, MagicResist, CritRate, CritDamage,
	AttackSpeed, Lifesteal, Amplify, Resistance,
}

// Fields returns every profile field in canonical order.
func Fields() []Field {
	return append([]Field(nil), fields...)
}

// Valid reports whether f is a profile field.
func (f Field) Valid() bool {
	switch f {
	case Health, MaxHealth, Mana, MaxMana,
		AttackDamage, DamageMin, DamageMax, AbilityPower,
		Armor, MagicResist, CritRate, CritDamage,
		AttackSpeed, Lifesteal, Amplify, Resistance:
		return true
	}
	return false
}

// Integral reports whether f holds a whole number.
func (f Field) Integral() bool {
	switch f {
	case Health, MaxHealth, Mana, MaxMana:
		return true
	}
	return false
}

// Profile is the persisted base combat stat block of a player.
//
// Invariant: Health >= 0, MaxHealth >= 1, Mana >= 0, MaxMana >= 0 for every
// Profile returned by Engine. Health and Mana may exceed the base maxima while
// gear raises the effective maxima; the upper bound is applied against the
// effective stats.
type Profile struct {
	Health       int
	MaxHealth    int
	Mana         int
	MaxMana      int
	AttackDamage float64
	DamageMin    float64
	DamageMax    float64
	AbilityPower float64
	Armor        float64
	MagicResist  float64
	CritRate     float64
	CritDamage   float64
	AttackSpeed  float64
	Lifesteal    float64
	Amplify      float64
	Resistance   float64
}

// Default values of a fresh profile.
const (
	DefaultMaxHealth = 400
	DefaultMaxMana   = 100
	DefaultDamageMin = 10
	DefaultDamageMax = 60
)

// Defaults returns the profile every new player starts with.
func Defaults() Profile {
	return Profile{
		Health:       DefaultMaxHealth,
		MaxHealth:    DefaultMaxHealth,
		Mana:         DefaultMaxMana,
		MaxMana:      DefaultMaxMana,
		AttackDamage: 0,
		DamageMin:    DefaultDamageMin,
		DamageMax:    DefaultDamageMax,
		AbilityPower: 0,
		Armor:        0,
		MagicResist:  0,
		CritRate:     0.05,
		CritDamage:   1.5,
		AttackSpeed:  1.0,
		Lifesteal:    0,
		Amplify:      0,
		Resistance:   0,
	}
}

// Get returns the value of f, or 0 for an unknown field.
func (p Profile) Get(f Field) float64 {
	switch f {
	case Health:
		return float64(p.Health)
	case MaxHealth:
		return float64(p.MaxHealth)
	case Mana:
		return float64(p.Mana)
	case MaxMana:
		return float64(p.MaxMana)
	case AttackDamage:
		return p.AttackDamage
	case DamageMin:
		return p.DamageMin
	case DamageMax:
		return p.DamageMax
	case AbilityPower:
		return p.AbilityPower
	case Armor:
		return p.Armor
	case MagicResist:
		return p.MagicResist
	case CritRate:
		return p.CritRate
	case CritDamage:
		return p.CritDamage
	case AttackSpeed:
		return p.AttackSpeed
	case Lifesteal:
		return p.Lifesteal
	case Amplify:
		return p.Amplify
	case Resistance:
		return p.Resistance
	}
	return 0
}

// Set assigns v to f. Integral fields are truncated toward zero.
//
// Postcondition: returns ErrUnknownField when f is not a profile field.
func (p *Profile) Set(f Field, v float64) error {
	switch f {
	case Health:
		p.Health = toInt(v)
	case MaxHealth:
		p.MaxHealth = toInt(v)
	case Mana:
		p.Mana = toInt(v)
	case MaxMana:
		p.MaxMana = toInt(v)
	case AttackDamage:
		p.AttackDamage = v
	case DamageMin:
		p.DamageMin = v
	case DamageMax:
		p.DamageMax = v
	case AbilityPower:
		p.AbilityPower = v
	case Armor:
		p.Armor = v
	case MagicResist:
		p.MagicResist = v
	case CritRate:
		p.CritRate = v
	case CritDamage:
		p.CritDamage = v
	case AttackSpeed:
		p.AttackSpeed = v
	case Lifesteal:
		p.Lifesteal = v
	case Amplify:
		p.Amplify = v
	case Resistance:
		p.Resistance = v
	default:
		return ErrUnknownField
	}
	return nil
}

// normalize enforces the resource invariants in place. It never lowers
// Health or Mana toward the base maxima.
func (p *Profile) normalize() {
	if p.MaxHealth < 1 {
		p.MaxHealth = 1
	}
	if p.MaxMana < 0 {
		p.MaxMana = 0
	}
	if p.Health < 0 {
		p.Health = 0
	}
	if p.Mana < 0 {
		p.Mana = 0
	}
}

func toInt(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	if v < math.MinInt32 {
		return math.MinInt32
	}
	return int(v)
}
