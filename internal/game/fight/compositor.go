// Package fight combines base profiles and worn gear into effective combat
// stats and exposes the operations combat command handlers call.
package fight

import (
	"context"
	"math"

	"github.com/cory-johannsen/fightsheet/internal/game/catalog"
	"github.com/cory-johannsen/fightsheet/internal/game/equipment"
	"github.com/cory-johannsen/fightsheet/internal/game/stats"
)

// EffectiveStats is the read-time view of a player: base profile plus gear.
// It is never stored.
type EffectiveStats struct {
	stats.Profile
	// Loadout is the worn gear by slot.
	Loadout equipment.Loadout
	// SlotDisplay renders each slot for players.
	SlotDisplay [equipment.SlotCount]string
	// Bonuses is the summed contribution of Loadout.
	Bonuses equipment.Bonuses
}

// Compose applies gear bonuses to a base profile. Flat health is added before
// the percentage health effect is applied.
//
// Postcondition: MaxHealth >= 1, MaxMana >= 0, Health and Mana lie within
// their maxima, Armor and MagicResist are >= 0, CritRate and Lifesteal lie in
// [0, 1], CritDamage >= 1, and DamageMin <= DamageMax.
func Compose(base stats.Profile, b equipment.Bonuses) stats.Profile {
	out := base

	flat := float64(base.MaxHealth) + b.Get(catalog.StatHealth)
	maxHealth := math.Floor(flat * (1 + b.Get(catalog.EffectMaxHealthPercent)/100))
	out.MaxHealth = int(math.Max(1, math.Min(maxHealth, math.MaxInt32)))
	out.MaxMana = int(math.Max(0, float64(base.MaxMana)+b.Get(catalog.StatMana)))
	out.Health = clampInt(base.Health, 0, out.MaxHealth)
	out.Mana = clampInt(base.Mana, 0, out.MaxMana)

	out.AttackDamage = math.Max(0, base.AttackDamage+b.Get(catalog.StatAttackDamage))
	out.AbilityPower = math.Max(0, base.AbilityPower+b.Get(catalog.StatAbilityPower))
	out.DamageMax = math.Max(0, base.DamageMax+b.Get(catalog.StatDamageMax))
	out.DamageMin = clamp(base.DamageMin+b.Get(catalog.StatDamageMin), 0, out.DamageMax)
	out.Armor = math.Max(0, base.Armor+b.Get(catalog.StatArmor))
	out.MagicResist = math.Max(0, base.MagicResist+b.Get(catalog.StatMagicResist))
	out.CritRate = clamp(base.CritRate+b.Get(catalog.StatCritRate), 0, 1)
	out.CritDamage = math.Max(1, base.CritDamage+b.Get(catalog.StatCritDamage))
	out.AttackSpeed = math.Max(0, base.AttackSpeed+b.Get(catalog.StatAttackSpeed))
	out.Lifesteal = clamp(base.Lifesteal+b.Get(catalog.StatLifesteal), 0, 1)
	out.Amplify = base.Amplify + b.Get(catalog.StatAmplify)
	out.Resistance = base.Resistance + b.Get(catalog.StatResistance)
	return out
}

// Compositor builds EffectiveStats from the stat engine and equipment manager.
type Compositor struct {
	engine    *stats.Engine
	equipment *equipment.Manager
}

// NewCompositor creates a Compositor.
//
// Precondition: engine and manager must be non-nil.
func NewCompositor(engine *stats.Engine, manager *equipment.Manager) *Compositor {
	return &Compositor{engine: engine, equipment: manager}
}

// GetEffectiveStats returns the player's effective stats. Health and mana are
// clamped to the effective maxima in the result only; nothing is written
// except the default profile of a player seen for the first time.
func (c *Compositor) GetEffectiveStats(ctx context.Context, id string) (EffectiveStats, error) {
	_, eff, err := c.load(ctx, id)
	return eff, err
}

// ClampHealthToMax persists health and mana reduced to the effective maxima
// when they exceed them. Gear changes call this; it is the only write of
// health caused by gear.
//
// Postcondition: stored health <= effective MaxHealth and stored mana <=
// effective MaxMana.
func (c *Compositor) ClampHealthToMax(ctx context.Context, id string) (EffectiveStats, error) {
	base, eff, err := c.load(ctx, id)
	if err != nil {
		return EffectiveStats{}, err
	}
	if base.Health > eff.MaxHealth {
		if _, err := c.engine.AdjustHealthWithin(ctx, id, 0, eff.MaxHealth); err != nil {
			return EffectiveStats{}, err
		}
	}
	if base.Mana > eff.MaxMana {
		if _, err := c.engine.AdjustManaWithin(ctx, id, 0, eff.MaxMana); err != nil {
			return EffectiveStats{}, err
		}
	}
	return eff, nil
}

// MaxHealth returns the effective max health. It satisfies
// death.MaxHealthResolver so revival restores gear-boosted health.
func (c *Compositor) MaxHealth(ctx context.Context, id string) (int, error) {
	_, eff, err := c.load(ctx, id)
	if err != nil {
		return 0, err
	}
	return eff.MaxHealth, nil
}

func (c *Compositor) load(ctx context.Context, id string) (stats.Profile, EffectiveStats, error) {
	base, err := c.engine.GetBaseProfile(ctx, id)
	if err != nil {
		return stats.Profile{}, EffectiveStats{}, err
	}
	loadout, err := c.equipment.GetLoadout(ctx, id)
	if err != nil {
		return stats.Profile{}, EffectiveStats{}, err
	}
	bonuses := c.equipment.AggregateBonuses(loadout)
	return base, EffectiveStats{
		Profile:     Compose(base, bonuses),
		Loadout:     loadout,
		SlotDisplay: loadout.Display(c.equipment.Catalog()),
		Bonuses:     bonuses,
	}, nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}

func clampInt(v, lo, hi int) int {
	if v > hi {
		v = hi
	}
	if v < lo {
		v = lo
	}
	return v
}
