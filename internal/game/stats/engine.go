package stats

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/cory-johannsen/fightsheet/internal/game/player"
	"github.com/cory-johannsen/fightsheet/internal/storage"
)

// ErrInvalidValue is returned by SetFields for NaN or infinite values.
var ErrInvalidValue = errors.New("stats: value must be finite")

// legacyPaths maps profile fields to the top-level fields older records kept
// them in.
var legacyPaths = map[Field]string{
	Health:    player.LegacyHealthPath,
	MaxHealth: player.LegacyMaxHealthPath,
}

// Engine reads and mutates base combat profiles in a record store.
//
// Engine holds no per-player state; every call goes to the store.
type Engine struct {
	store  storage.Store
	logger *zap.Logger
}

// NewEngine creates an Engine.
//
// Precondition: store and logger must be non-nil.
func NewEngine(store storage.Store, logger *zap.Logger) *Engine {
	return &Engine{store: store, logger: logger}
}

// GetBaseProfile returns the player's base profile. A missing profile is
// created from Defaults; missing fields are backfilled from legacy fields or
// Defaults; malformed values are coerced. Any correction is persisted before
// returning.
//
// Postcondition: the returned Profile satisfies the Profile invariant.
func (e *Engine) GetBaseProfile(ctx context.Context, id string) (Profile, error) {
	doc, err := e.store.Get(ctx, id, player.CombatPath, player.LegacyHealthPath, player.LegacyMaxHealthPath)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		doc = storage.NewDocument(id, nil)
	case err != nil:
		return Profile{}, fmt.Errorf("stats: Engine.GetBaseProfile: %w", err)
	}

	p, fix := resolve(doc)
	if len(fix) == 0 {
		return p, nil
	}
	if err := e.store.SetFields(ctx, id, fix); err != nil {
		return Profile{}, fmt.Errorf("stats: Engine.GetBaseProfile: persisting backfill: %w", err)
	}
	if !doc.Has(player.CombatPath) {
		e.logger.Info("combat profile initialized", zap.String("player", id))
	} else {
		e.logger.Debug("combat profile backfilled",
			zap.String("player", id),
			zap.Int("fields", len(fix)),
		)
	}
	return p, nil
}

// SetFields persists only the listed fields. Integral fields are truncated.
// When a health or mana field changes, the resources are re-clamped.
//
// Precondition: every key must be a valid Field and every value finite.
// Postcondition: an empty map performs no I/O.
func (e *Engine) SetFields(ctx context.Context, id string, values map[Field]float64) error {
	if len(values) == 0 {
		return nil
	}
	update := make(map[string]any, len(values))
	touchesResources := false
	for f, v := range values {
		if !f.Valid() {
			return fmt.Errorf("%w: %q", ErrUnknownField, string(f))
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s", ErrInvalidValue, f)
		}
		if f.Integral() {
			update[player.CombatField(string(f))] = toInt(v)
			touchesResources = true
			continue
		}
		update[player.CombatField(string(f))] = v
	}
	if err := e.store.SetFields(ctx, id, update); err != nil {
		return fmt.Errorf("stats: Engine.SetFields: %w", err)
	}
	if touchesResources {
		if _, err := e.GetBaseProfile(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// AdjustHealth adds delta to health, clamped to [0, MaxHealth].
//
// Postcondition: returns the new health.
func (e *Engine) AdjustHealth(ctx context.Context, id string, delta int) (int, error) {
	p, err := e.GetBaseProfile(ctx, id)
	if err != nil {
		return 0, err
	}
	return e.AdjustHealthWithin(ctx, id, delta, p.MaxHealth)
}

// AdjustHealthWithin adds delta to health, clamped to [0, max] in the same
// atomic store update. Callers pass the effective max health here.
func (e *Engine) AdjustHealthWithin(ctx context.Context, id string, delta, max int) (int, error) {
	return e.adjust(ctx, id, Health, delta, max)
}

// AdjustMana adds delta to mana, clamped to [0, MaxMana].
//
// Postcondition: returns the new mana.
func (e *Engine) AdjustMana(ctx context.Context, id string, delta int) (int, error) {
	p, err := e.GetBaseProfile(ctx, id)
	if err != nil {
		return 0, err
	}
	return e.AdjustManaWithin(ctx, id, delta, p.MaxMana)
}

// AdjustManaWithin adds delta to mana, clamped to [0, max].
func (e *Engine) AdjustManaWithin(ctx context.Context, id string, delta, max int) (int, error) {
	return e.adjust(ctx, id, Mana, delta, max)
}

// ResetToDefault replaces the whole combat profile with Defaults and drops
// legacy profile fields.
func (e *Engine) ResetToDefault(ctx context.Context, id string) error {
	fields := map[string]any{
		player.CombatPath:          Defaults().document(),
		player.LegacyHealthPath:    storage.Unset,
		player.LegacyMaxHealthPath: storage.Unset,
	}
	if err := e.store.SetFields(ctx, id, fields); err != nil {
		return fmt.Errorf("stats: Engine.ResetToDefault: %w", err)
	}
	e.logger.Info("combat profile reset", zap.String("player", id))
	return nil
}

func (e *Engine) adjust(ctx context.Context, id string, f Field, delta, max int) (int, error) {
	if max < 0 {
		max = 0
	}
	path := player.CombatField(string(f))
	doc, err := e.store.IncrementFields(ctx, id,
		map[string]float64{path: float64(delta)},
		map[string]storage.Bounds{path: {Min: 0, Max: float64(max)}},
	)
	if err != nil {
		return 0, fmt.Errorf("stats: Engine.adjust %s: %w", f, err)
	}
	return player.Int(doc.Get(path)), nil
}

// resolve builds a complete Profile from a record and returns the fields that
// must be written back to make the stored record match it.
func resolve(doc storage.Document) (Profile, map[string]any) {
	defaults := Defaults()
	var p Profile
	for _, f := range fields {
		path := player.CombatField(string(f))
		r := doc.Get(path)
		var v float64
		switch {
		case player.IsNumber(r):
			v = r.Num
		case doc.Has(path):
			v = player.Number(r)
		default:
			v = defaults.Get(f)
			if legacy, ok := legacyPaths[f]; ok && doc.Has(legacy) {
				v = player.Number(doc.Get(legacy))
			}
		}
		_ = p.Set(f, v)
	}
	p.normalize()

	fix := make(map[string]any)
	for _, f := range fields {
		path := player.CombatField(string(f))
		r := doc.Get(path)
		if !player.IsNumber(r) || r.Num != p.Get(f) {
			fix[path] = p.value(f)
		}
	}
	for _, legacy := range legacyPaths {
		if doc.Get(legacy).Exists() {
			fix[legacy] = storage.Unset
		}
	}
	return p, fix
}

// value returns f's value typed for storage.
func (p Profile) value(f Field) any {
	if f.Integral() {
		return int(p.Get(f))
	}
	return p.Get(f)
}

// document renders p as a combat subdocument.
func (p Profile) document() map[string]any {
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		out[string(f)] = p.value(f)
	}
	return out
}
