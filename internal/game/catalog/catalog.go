// Package catalog holds the read-only gear catalog: every item that can be
// owned or equipped, with its display metadata and bonus descriptor.
package catalog

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Flat stat bonus keys accepted in GearDef.Stats.
const (
	StatHealth       = "hp"
	StatMana         = "mana"
	StatArmor        = "armor"
	StatMagicResist  = "magic_resist"
	StatAttackDamage = "attack_damage"
	StatAbilityPower = "ability_power"
	StatDamageMin    = "dmg_min"
	StatDamageMax    = "dmg_max"
	StatCritRate     = "crit_rate"
	StatCritDamage   = "crit_damage"
	StatAttackSpeed  = "attack_speed"
	StatLifesteal    = "lifesteal"
	StatAmplify      = "amplify"
	StatResistance   = "resistance"
)

// Percentage effect keys accepted in GearDef.Effects.
const (
	EffectMaxHealthPercent = "max_hp_percent"
)

// EmptySlot is the display text of an empty loadout slot.
const EmptySlot = "— empty —"

var (
	knownStats = map[string]bool{
		StatHealth: true, StatMana: true, StatArmor: true, StatMagicResist: true,
		StatAttackDamage: true, StatAbilityPower: true, StatDamageMin: true, StatDamageMax: true,
		StatCritRate: true, StatCritDamage: true, StatAttackSpeed: true, StatLifesteal: true,
		StatAmplify: true, StatResistance: true,
	}
	knownEffects = map[string]bool{
		EffectMaxHealthPercent: true,
	}
)

// GearDef describes one catalog item.
type GearDef struct {
	Key         string             `yaml:"key"`
	Name        string             `yaml:"name"`
	Icon        string             `yaml:"icon"`
	Description string             `yaml:"description"`
	Price       int                `yaml:"price"`
	Equippable  bool               `yaml:"equippable"`
	Stats       map[string]float64 `yaml:"stats"`
	Effects     map[string]float64 `yaml:"effects"`
}

// Validate checks the definition's invariants.
//
// Postcondition: Returns nil iff Key and Name are non-empty, Price is
// non-negative, and every stat and effect key is known with a finite value.
func (d *GearDef) Validate() error {
	if strings.TrimSpace(d.Key) == "" {
		return fmt.Errorf("catalog: gear key must not be empty")
	}
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("catalog: gear %q: name must not be empty", d.Key)
	}
	if d.Price < 0 {
		return fmt.Errorf("catalog: gear %q: price must be >= 0, got %d", d.Key, d.Price)
	}
	for k, v := range d.Stats {
		if !knownStats[k] {
			return fmt.Errorf("catalog: gear %q: unknown stat %q", d.Key, k)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("catalog: gear %q: stat %q is not finite", d.Key, k)
		}
	}
	for k, v := range d.Effects {
		if !knownEffects[k] {
			return fmt.Errorf("catalog: gear %q: unknown effect %q", d.Key, k)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("catalog: gear %q: effect %q is not finite", d.Key, k)
		}
	}
	return nil
}

// Display renders the item as "icon name".
func (d *GearDef) Display() string {
	if d.Icon == "" {
		return d.Name
	}
	return d.Icon + " " + d.Name
}

// Catalog is an immutable set of gear definitions indexed by key and by
// case-folded display name. It is safe for concurrent use.
type Catalog struct {
	byKey  map[string]*GearDef
	byName map[string]*GearDef
	keys   []string
}

// New builds a Catalog from defs.
//
// Precondition: each def must pass Validate; keys and display names must be unique.
// Postcondition: Returns a Catalog holding copies of every def, or an error.
func New(defs []GearDef) (*Catalog, error) {
	c := &Catalog{
		byKey:  make(map[string]*GearDef, len(defs)),
		byName: make(map[string]*GearDef, len(defs)),
	}
	for i := range defs {
		d := clone(defs[i])
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if _, exists := c.byKey[d.Key]; exists {
			return nil, fmt.Errorf("catalog: gear key %q already registered", d.Key)
		}
		name := strings.ToLower(d.Name)
		if _, exists := c.byName[name]; exists {
			return nil, fmt.Errorf("catalog: gear name %q already registered", d.Name)
		}
		c.byKey[d.Key] = d
		c.byName[name] = d
		c.keys = append(c.keys, d.Key)
	}
	sort.Strings(c.keys)
	return c, nil
}

// LoadDir reads every *.yaml, *.yml and *.json file in dir. Each file holds a
// list of gear definitions.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns a validated Catalog or an error naming the bad file.
func LoadDir(dir string) (*Catalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("catalog: LoadDir: cannot read directory %q: %w", dir, err)
	}

	var defs []GearDef
	for _, entry := range entries {
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml" && ext != ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("catalog: LoadDir: cannot read file %q: %w", path, err)
		}
		var fileDefs []GearDef
		if err := yaml.Unmarshal(data, &fileDefs); err != nil {
			return nil, fmt.Errorf("catalog: LoadDir: cannot parse file %q: %w", path, err)
		}
		for i := range fileDefs {
			if err := fileDefs[i].Validate(); err != nil {
				return nil, fmt.Errorf("catalog: LoadDir: invalid gear in %q: %w", path, err)
			}
		}
		defs = append(defs, fileDefs...)
	}
	return New(defs)
}

// Lookup returns the definition for key. The result must not be modified.
//
// Postcondition: ok is true iff key is in the catalog.
func (c *Catalog) Lookup(key string) (*GearDef, bool) {
	d, ok := c.byKey[key]
	return d, ok
}

// Find resolves an item by exact key or by case-insensitive display name.
func (c *Catalog) Find(keyOrName string) (*GearDef, bool) {
	if d, ok := c.byKey[keyOrName]; ok {
		return d, true
	}
	d, ok := c.byName[strings.ToLower(strings.TrimSpace(keyOrName))]
	return d, ok
}

// Display renders a loadout slot: the item's "icon name", the raw key for an
// item missing from the catalog, or EmptySlot.
func (c *Catalog) Display(key string) string {
	if key == "" {
		return EmptySlot
	}
	if d, ok := c.byKey[key]; ok {
		return d.Display()
	}
	return key
}

// Keys returns every item key in sorted order.
func (c *Catalog) Keys() []string {
	return append([]string(nil), c.keys...)
}

// Len returns the number of items.
func (c *Catalog) Len() int {
	return len(c.keys)
}

func clone(d GearDef) *GearDef {
	out := d
	out.Stats = copyMap(d.Stats)
	out.Effects = copyMap(d.Effects)
	return &out
}

func copyMap(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
