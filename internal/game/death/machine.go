// Package death implements the incapacitation and revival state machine:
// a player whose health reaches zero is incapacitated for a grace period and
// then revived at full effective health.
package death

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/fightsheet/internal/clock"
	"github.com/cory-johannsen/fightsheet/internal/game/player"
	"github.com/cory-johannsen/fightsheet/internal/storage"
)

// DefaultGracePeriod is how long a player stays incapacitated unless configured.
const DefaultGracePeriod = time.Hour

// State is a player's life state.
type State int

const (
	// Alive players may act.
	Alive State = iota
	// Incapacitated players are refused gated actions until revival.
	Incapacitated
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Alive:
		return "alive"
	case Incapacitated:
		return "incapacitated"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Status is the outcome of a check.
type Status struct {
	State State
	// ReviveAt is set while Incapacitated.
	ReviveAt time.Time
	// Remaining is the time left until revival while Incapacitated.
	Remaining time.Duration
	// Revived is true when this check performed the revival.
	Revived bool
	// TimerCleared is true when this check removed a stale timer from a
	// living player.
	TimerCleared bool
	// Message is a player-facing description of the state.
	Message string
}

// MaxHealthResolver supplies the health a revived player is restored to.
type MaxHealthResolver interface {
	MaxHealth(ctx context.Context, id string) (int, error)
}

// MaxHealthFunc adapts a function to MaxHealthResolver.
type MaxHealthFunc func(ctx context.Context, id string) (int, error)

// MaxHealth calls f.
func (f MaxHealthFunc) MaxHealth(ctx context.Context, id string) (int, error) {
	return f(ctx, id)
}

// Machine evaluates and applies death transitions against the record store.
//
// Every transition is decided from the record alone, so concurrent checks for
// the same player converge on the same end state.
type Machine struct {
	store    storage.Store
	resolver MaxHealthResolver
	clock    clock.Clock
	grace    time.Duration
	logger   *zap.Logger
}

// NewMachine creates a Machine. A non-positive grace uses DefaultGracePeriod.
//
// Precondition: store, resolver, clk and logger must be non-nil.
func NewMachine(store storage.Store, resolver MaxHealthResolver, clk clock.Clock, grace time.Duration, logger *zap.Logger) *Machine {
	if grace <= 0 {
		grace = DefaultGracePeriod
	}
	return &Machine{store: store, resolver: resolver, clock: clk, grace: grace, logger: logger}
}

// GracePeriod returns the configured incapacitation duration.
func (m *Machine) GracePeriod() time.Duration {
	return m.grace
}

// CheckAndResolve applies the transition due for the player now and reports
// the resulting state.
//
//   - alive with no timer: nothing changes
//   - alive with a timer: the stale timer is cleared, health is untouched
//   - health <= 0 with no timer: incapacitated until now + grace period
//   - timer in the future: still incapacitated, timer untouched
//   - timer due or unreadable: health restored to max health, timer cleared
//
// Unknown players are Alive and nothing is written.
func (m *Machine) CheckAndResolve(ctx context.Context, id string) (Status, error) {
	doc, err := m.store.Get(ctx, id,
		player.HealthPath, player.LegacyHealthPath,
		player.ReviveAtPath, player.LegacyDeadUntilPath,
	)
	if errors.Is(err, storage.ErrNotFound) {
		return aliveStatus(), nil
	}
	if err != nil {
		return Status{}, fmt.Errorf("death: Machine.CheckAndResolve: %w", err)
	}

	health, known := currentHealth(doc)
	reviveAt, hasTimer, readable := player.DeathTimer(doc)
	now := m.clock.Now()

	switch {
	case !known || health > 0:
		if !hasTimer {
			return aliveStatus(), nil
		}
		if err := m.store.SetFields(ctx, id, player.ClearDeathTimer()); err != nil {
			return Status{}, fmt.Errorf("death: Machine.CheckAndResolve: clearing stale timer: %w", err)
		}
		m.logger.Info("stale death timer cleared",
			zap.String("player", id),
			zap.Int("health", health),
		)
		st := aliveStatus()
		st.TimerCleared = true
		return st, nil

	case !hasTimer:
		at := now.Add(m.grace)
		if err := m.store.SetFields(ctx, id, map[string]any{player.ReviveAtPath: player.FormatTime(at)}); err != nil {
			return Status{}, fmt.Errorf("death: Machine.CheckAndResolve: setting timer: %w", err)
		}
		m.logger.Info("player incapacitated",
			zap.String("player", id),
			zap.Time("revive_at", at),
		)
		return incapacitatedStatus(at, m.grace), nil

	case readable && now.Before(reviveAt):
		return incapacitatedStatus(reviveAt, reviveAt.Sub(now)), nil

	default:
		return m.revive(ctx, id, readable)
	}
}

func (m *Machine) revive(ctx context.Context, id string, readable bool) (Status, error) {
	maxHealth, err := m.resolver.MaxHealth(ctx, id)
	if err != nil {
		return Status{}, fmt.Errorf("death: Machine.revive: resolving max health: %w", err)
	}
	if maxHealth < 1 {
		maxHealth = 1
	}
	fields := player.ClearDeathTimer()
	fields[player.HealthPath] = maxHealth
	if err := m.store.SetFields(ctx, id, fields); err != nil {
		return Status{}, fmt.Errorf("death: Machine.revive: %w", err)
	}
	m.logger.Info("player revived",
		zap.String("player", id),
		zap.Int("health", maxHealth),
		zap.Bool("timer_readable", readable),
	)
	return Status{
		State:   Alive,
		Revived: true,
		Message: fmt.Sprintf("You have been revived with %d health.", maxHealth),
	}, nil
}

// currentHealth reads health, falling back to the legacy field. known is
// false when the record has no health at all.
func currentHealth(doc storage.Document) (health int, known bool) {
	path := player.HealthPath
	switch {
	case doc.Has(path):
		return player.Int(doc.Get(path)), true
	case doc.Has(player.LegacyHealthPath):
		return player.Int(doc.Get(player.LegacyHealthPath)), true
	}
	return 0, false
}

func aliveStatus() Status {
	return Status{State: Alive, Message: "You are alive."}
}

func incapacitatedStatus(at time.Time, remaining time.Duration) Status {
	return Status{
		State:     Incapacitated,
		ReviveAt:  at,
		Remaining: remaining,
		Message:   fmt.Sprintf("You are incapacitated. Revival in %s.", FormatRemaining(remaining)),
	}
}

// FormatRemaining renders d as "1h 2m 3s", rounding up to whole seconds and
// omitting leading zero units.
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64((d + time.Second - 1) / time.Second)
	h, m, s := secs/3600, secs%3600/60, secs%60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

// ClearTimer removes any death timer without touching health.
func (m *Machine) ClearTimer(ctx context.Context, id string) error {
	if err := m.store.SetFields(ctx, id, player.ClearDeathTimer()); err != nil {
		return fmt.Errorf("death: Machine.ClearTimer: %w", err)
	}
	return nil
}
