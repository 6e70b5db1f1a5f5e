package fight

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/fightsheet/internal/game/death"
	"github.com/cory-johannsen/fightsheet/internal/game/dice"
	"github.com/cory-johannsen/fightsheet/internal/game/equipment"
	"github.com/cory-johannsen/fightsheet/internal/game/stats"
)

// ErrTryAgain wraps every storage failure. The operation may be retried by
// the player; the service never retries on its own.
var ErrTryAgain = errors.New("fight: temporarily unavailable, try again")

// ErrSelfAttack is returned when a player attacks themselves.
var ErrSelfAttack = errors.New("fight: cannot attack yourself")

// ErrIncapacitated is matched by IncapacitatedError.
var ErrIncapacitated = errors.New("fight: player is incapacitated")

// IncapacitatedError refuses an action because a participant is incapacitated.
type IncapacitatedError struct {
	Player string
	Status death.Status
}

// Error returns the player-facing status message.
func (e *IncapacitatedError) Error() string {
	return e.Status.Message
}

// Unwrap lets errors.Is match ErrIncapacitated.
func (e *IncapacitatedError) Unwrap() error {
	return ErrIncapacitated
}

// AttackResult describes one resolved attack.
type AttackResult struct {
	Attacker       string
	Defender       string
	Roll           int
	Crit           bool
	Damage         int
	Healed         int
	AttackerHealth int
	DefenderHealth int
	DefenderStatus death.Status
}

// Service is the surface combat command handlers use. Every call is scoped to
// the players it names; no state is held between calls.
type Service struct {
	engine     *stats.Engine
	equipment  *equipment.Manager
	compositor *Compositor
	machine    *death.Machine
	roller     *dice.Roller
	timeout    time.Duration
	logger     *zap.Logger
}

// NewService creates a Service. A zero timeout leaves store calls bounded
// only by the caller's context.
//
// Precondition: all collaborators must be non-nil and machine must resolve
// max health through compositor.
func NewService(
	engine *stats.Engine,
	manager *equipment.Manager,
	compositor *Compositor,
	machine *death.Machine,
	roller *dice.Roller,
	timeout time.Duration,
	logger *zap.Logger,
) *Service {
	return &Service{
		engine:     engine,
		equipment:  manager,
		compositor: compositor,
		machine:    machine,
		roller:     roller,
		timeout:    timeout,
		logger:     logger,
	}
}

// GetEffectiveStats returns the player's effective stats.
func (s *Service) GetEffectiveStats(ctx context.Context, id string) (EffectiveStats, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	eff, err := s.compositor.GetEffectiveStats(ctx, id)
	return eff, s.fail("GetEffectiveStats", id, err)
}

// AdjustHealth adds delta to health, bounded by the effective max health,
// then resolves the death state.
//
// Postcondition: returns the new health and the resulting death status.
func (s *Service) AdjustHealth(ctx context.Context, id string, delta int) (int, death.Status, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	eff, err := s.compositor.GetEffectiveStats(ctx, id)
	if err != nil {
		return 0, death.Status{}, s.fail("AdjustHealth", id, err)
	}
	health, err := s.engine.AdjustHealthWithin(ctx, id, delta, eff.MaxHealth)
	if err != nil {
		return 0, death.Status{}, s.fail("AdjustHealth", id, err)
	}
	st, err := s.machine.CheckAndResolve(ctx, id)
	if err != nil {
		return 0, death.Status{}, s.fail("AdjustHealth", id, err)
	}
	if st.Revived {
		health = eff.MaxHealth
	}
	return health, st, nil
}

// AdjustMana adds delta to mana, bounded by the effective max mana.
func (s *Service) AdjustMana(ctx context.Context, id string, delta int) (int, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	eff, err := s.compositor.GetEffectiveStats(ctx, id)
	if err != nil {
		return 0, s.fail("AdjustMana", id, err)
	}
	mana, err := s.engine.AdjustManaWithin(ctx, id, delta, eff.MaxMana)
	return mana, s.fail("AdjustMana", id, err)
}

// Equip equips an item by key or display name and re-clamps health.
//
// Postcondition: returns the occupied slot and the stats after the change.
func (s *Service) Equip(ctx context.Context, id, item string, slot *int) (int, EffectiveStats, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	idx, err := s.equipment.Equip(ctx, id, item, slot)
	if err != nil {
		return 0, EffectiveStats{}, s.fail("Equip", id, err)
	}
	eff, err := s.compositor.ClampHealthToMax(ctx, id)
	if err != nil {
		return 0, EffectiveStats{}, s.fail("Equip", id, err)
	}
	return idx, eff, nil
}

// Unequip empties a slot and re-clamps health.
//
// Postcondition: returns the removed item key and the stats after the change.
func (s *Service) Unequip(ctx context.Context, id string, slot int) (string, EffectiveStats, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	key, err := s.equipment.Unequip(ctx, id, slot)
	if err != nil {
		return "", EffectiveStats{}, s.fail("Unequip", id, err)
	}
	eff, err := s.compositor.ClampHealthToMax(ctx, id)
	if err != nil {
		return "", EffectiveStats{}, s.fail("Unequip", id, err)
	}
	return key, eff, nil
}

// GetLoadout returns the player's three slots.
func (s *Service) GetLoadout(ctx context.Context, id string) (equipment.Loadout, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	l, err := s.equipment.GetLoadout(ctx, id)
	return l, s.fail("GetLoadout", id, err)
}

// CheckAndResolveDeath applies any due death transition and reports the state.
func (s *Service) CheckAndResolveDeath(ctx context.Context, id string) (death.Status, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	st, err := s.machine.CheckAndResolve(ctx, id)
	return st, s.fail("CheckAndResolveDeath", id, err)
}

// ResetToDefault restores the default profile and removes any death timer.
// Worn gear is kept.
func (s *Service) ResetToDefault(ctx context.Context, id string) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	if err := s.engine.ResetToDefault(ctx, id); err != nil {
		return s.fail("ResetToDefault", id, err)
	}
	if err := s.machine.ClearTimer(ctx, id); err != nil {
		return s.fail("ResetToDefault", id, err)
	}
	_, err := s.compositor.ClampHealthToMax(ctx, id)
	return s.fail("ResetToDefault", id, err)
}

// Attack resolves one hit from attacker on defender.
//
// Damage is a uniform roll in [DamageMin, DamageMax] plus AttackDamage,
// multiplied by CritDamage on a crit and by 1 + Amplify. The defender's armor
// is subtracted, the remainder is scaled by 1 - Resistance (clamped to
// [0, 1]) and floored at zero. The attacker heals floor(damage * Lifesteal).
//
// Precondition: attacker != defender; both must be alive.
func (s *Service) Attack(ctx context.Context, attacker, defender string) (AttackResult, error) {
	if attacker == defender {
		return AttackResult{}, ErrSelfAttack
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()

	for _, id := range []string{attacker, defender} {
		st, err := s.machine.CheckAndResolve(ctx, id)
		if err != nil {
			return AttackResult{}, s.fail("Attack", id, err)
		}
		if st.State == death.Incapacitated {
			return AttackResult{}, &IncapacitatedError{Player: id, Status: st}
		}
	}

	a, err := s.compositor.GetEffectiveStats(ctx, attacker)
	if err != nil {
		return AttackResult{}, s.fail("Attack", attacker, err)
	}
	d, err := s.compositor.GetEffectiveStats(ctx, defender)
	if err != nil {
		return AttackResult{}, s.fail("Attack", defender, err)
	}

	res := AttackResult{Attacker: attacker, Defender: defender}
	res.Roll = s.roller.Between("damage", int(math.Floor(a.DamageMin)), int(math.Floor(a.DamageMax)))
	res.Crit = s.roller.Chance("crit", a.CritRate)
	res.Damage = Damage(a.Profile, d.Profile, res.Roll, res.Crit)

	res.DefenderHealth, err = s.engine.AdjustHealthWithin(ctx, defender, -res.Damage, d.MaxHealth)
	if err != nil {
		return AttackResult{}, s.fail("Attack", defender, err)
	}
	res.AttackerHealth = a.Health
	if heal := int(math.Floor(float64(res.Damage) * a.Lifesteal)); heal > 0 {
		res.AttackerHealth, err = s.engine.AdjustHealthWithin(ctx, attacker, heal, a.MaxHealth)
		if err != nil {
			return AttackResult{}, s.fail("Attack", attacker, err)
		}
		res.Healed = res.AttackerHealth - a.Health
	}
	res.DefenderStatus, err = s.machine.CheckAndResolve(ctx, defender)
	if err != nil {
		return AttackResult{}, s.fail("Attack", defender, err)
	}

	s.logger.Info("attack resolved",
		zap.String("attacker", attacker),
		zap.String("defender", defender),
		zap.Int("roll", res.Roll),
		zap.Bool("crit", res.Crit),
		zap.Int("damage", res.Damage),
		zap.Int("healed", res.Healed),
		zap.Int("defender_health", res.DefenderHealth),
		zap.Stringer("defender_state", res.DefenderStatus.State),
	)
	return res, nil
}

// Damage computes the damage of a hit with the given base roll.
//
// Postcondition: result >= 0.
func Damage(attacker, defender stats.Profile, roll int, crit bool) int {
	dmg := float64(roll) + attacker.AttackDamage
	if crit {
		dmg *= attacker.CritDamage
	}
	dmg *= 1 + attacker.Amplify
	dmg -= defender.Armor
	dmg *= 1 - clamp(defender.Resistance, 0, 1)
	if dmg <= 0 || math.IsNaN(dmg) {
		return 0
	}
	return int(math.Min(math.Floor(dmg), math.MaxInt32))
}

func (s *Service) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// fail passes caller errors through and wraps everything else in ErrTryAgain.
func (s *Service) fail(op, id string, err error) error {
	if err == nil {
		return nil
	}
	if equipment.IsCallerError(err) ||
		errors.Is(err, stats.ErrUnknownField) ||
		errors.Is(err, stats.ErrInvalidValue) ||
		errors.Is(err, ErrIncapacitated) ||
		errors.Is(err, ErrSelfAttack) {
		return err
	}
	s.logger.Warn("fight operation failed",
		zap.String("op", op),
		zap.String("player", id),
		zap.Error(err),
	)
	return fmt.Errorf("%w: %w", ErrTryAgain, err)
}
