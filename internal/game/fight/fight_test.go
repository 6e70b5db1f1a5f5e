package fight_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/fightsheet/internal/clock"
	"github.com/cory-johannsen/fightsheet/internal/game/catalog"
	"github.com/cory-johannsen/fightsheet/internal/game/death"
	"github.com/cory-johannsen/fightsheet/internal/game/dice"
	"github.com/cory-johannsen/fightsheet/internal/game/equipment"
	"github.com/cory-johannsen/fightsheet/internal/game/fight"
	"github.com/cory-johannsen/fightsheet/internal/game/player"
	"github.com/cory-johannsen/fightsheet/internal/game/stats"
	"github.com/cory-johannsen/fightsheet/internal/storage"
	"github.com/cory-johannsen/fightsheet/internal/storage/memstore"
	"github.com/cory-johannsen/fightsheet/internal/storage/storetest"
)

var epoch = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

type harness struct {
	store   storage.Store
	clock   *clock.Manual
	service *fight.Service
	comp    *fight.Compositor
}

func gear(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New([]catalog.GearDef{
		{Key: "plate", Name: "Iron Plate", Equippable: true, Stats: map[string]float64{"hp": 100}},
		{Key: "giant_belt", Name: "Giant Belt", Equippable: true, Stats: map[string]float64{"hp": 200}},
		{Key: "charm", Name: "Vital Charm", Equippable: true, Effects: map[string]float64{"max_hp_percent": 50}},
		{Key: "fang", Name: "Vampire Fang", Equippable: true, Stats: map[string]float64{"lifesteal": 0.5}},
		{Key: "shield", Name: "Tower Shield", Equippable: true, Stats: map[string]float64{"armor": 10, "resistance": 0.5}},
		{Key: "cursed", Name: "Cursed Ring", Equippable: true, Stats: map[string]float64{"hp": -100}},
		{Key: "focus", Name: "Focus Crystal", Equippable: true, Stats: map[string]float64{"mana": 40}},
		{Key: "bread", Name: "Bread"},
	})
	require.NoError(t, err)
	return c
}

func newHarness(t *testing.T, store storage.Store, src dice.Source) *harness {
	t.Helper()
	logger := zaptest.NewLogger(t)
	clk := clock.NewManual(epoch)
	engine := stats.NewEngine(store, logger)
	manager := equipment.NewManager(store, gear(t), logger)
	comp := fight.NewCompositor(engine, manager)
	machine := death.NewMachine(store, comp, clk, time.Hour, logger)
	roller := dice.NewLoggedRoller(src, logger)
	return &harness{
		store:   store,
		clock:   clk,
		comp:    comp,
		service: fight.NewService(engine, manager, comp, machine, roller, time.Second, logger),
	}
}

func (h *harness) give(t *testing.T, id, name string, n int) {
	t.Helper()
	require.NoError(t, h.store.SetFields(context.Background(), id, map[string]any{player.ItemCountPath(name): n}))
}

func (h *harness) health(t *testing.T, id string) int {
	t.Helper()
	doc, err := h.store.Get(context.Background(), id)
	require.NoError(t, err)
	return player.Int(doc.Get(player.HealthPath))
}

func (h *harness) mana(t *testing.T, id string) int {
	t.Helper()
	doc, err := h.store.Get(context.Background(), id)
	require.NoError(t, err)
	return player.Int(doc.Get(player.CombatField("mana")))
}

func (h *harness) raw(t *testing.T, id string) string {
	t.Helper()
	doc, err := h.store.Get(context.Background(), id)
	require.NoError(t, err)
	return string(doc.Raw)
}

func TestCompose_FlatThenPercent(t *testing.T) {
	got := fight.Compose(stats.Defaults(), equipment.Bonuses{"hp": 100, "max_hp_percent": 50})
	assert.Equal(t, 750, got.MaxHealth)
	assert.Equal(t, 400, got.Health, "health is not raised by gear")
}

func TestCompose_Clamps(t *testing.T) {
	base := stats.Defaults()
	base.Health = 400
	got := fight.Compose(base, equipment.Bonuses{
		"hp": -1000, "mana": -500, "armor": -5, "magic_resist": -1,
		"crit_rate": 3, "crit_damage": -2, "lifesteal": -1,
		"dmg_min": 100, "attack_speed": -4,
	})
	assert.Equal(t, 1, got.MaxHealth)
	assert.Equal(t, 1, got.Health)
	assert.Equal(t, 0, got.MaxMana)
	assert.Equal(t, 0, got.Mana)
	assert.Equal(t, 0.0, got.Armor)
	assert.Equal(t, 0.0, got.MagicResist)
	assert.Equal(t, 1.0, got.CritRate)
	assert.Equal(t, 1.0, got.CritDamage)
	assert.Equal(t, 0.0, got.Lifesteal)
	assert.Equal(t, 0.0, got.AttackSpeed)
	assert.Equal(t, got.DamageMax, got.DamageMin, "min capped at max")
}

func TestGetEffectiveStats_Composition(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, memstore.New(), dice.NewSequence(0))
	h.give(t, "p", "Iron Plate", 1)
	h.give(t, "p", "Vital Charm", 1)

	_, _, err := h.service.Equip(ctx, "p", "plate", nil)
	require.NoError(t, err)
	_, _, err = h.service.Equip(ctx, "p", "charm", nil)
	require.NoError(t, err)

	eff, err := h.service.GetEffectiveStats(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, 750, eff.MaxHealth)
	assert.Equal(t, 400, eff.Health)
	assert.Equal(t, equipment.Loadout{"plate", "charm", ""}, eff.Loadout)
	assert.Equal(t, catalog.EmptySlot, eff.SlotDisplay[2])
}

func TestGetEffectiveStats_ClampsOnlyInResult(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, memstore.New(), dice.NewSequence(0))
	_, err := h.service.GetEffectiveStats(ctx, "p")
	require.NoError(t, err)
	require.NoError(t, h.store.SetFields(ctx, "p", map[string]any{player.EquipsPath: []any{"cursed", nil, nil}}))
	before, err := h.store.Get(ctx, "p")
	require.NoError(t, err)

	eff, err := h.service.GetEffectiveStats(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, 300, eff.MaxHealth)
	assert.Equal(t, 300, eff.Health)

	after, err := h.store.Get(ctx, "p")
	require.NoError(t, err)
	assert.JSONEq(t, string(before.Raw), string(after.Raw))
	assert.Equal(t, 400, h.health(t, "p"))
}

func TestUnequip_ClampsHealth(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, memstore.New(), dice.NewSequence(0))
	h.give(t, "p", "Giant Belt", 1)

	_, eff, err := h.service.Equip(ctx, "p", "giant_belt", nil)
	require.NoError(t, err)
	require.Equal(t, 600, eff.MaxHealth)
	hp, _, err := h.service.AdjustHealth(ctx, "p", 1000)
	require.NoError(t, err)
	require.Equal(t, 600, hp)

	_, eff, err = h.service.Unequip(ctx, "p", 0)
	require.NoError(t, err)
	assert.Equal(t, 400, eff.MaxHealth)
	assert.Equal(t, 400, h.health(t, "p"))

	eff, err = h.service.GetEffectiveStats(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, 400, eff.Health)
}

func TestGetEffectiveStats_GearHealthSurvivesReads(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, memstore.New(), dice.NewSequence(0))
	h.give(t, "p", "Iron Plate", 1)
	_, _, err := h.service.Equip(ctx, "p", "plate", nil)
	require.NoError(t, err)
	hp, _, err := h.service.AdjustHealth(ctx, "p", 1000)
	require.NoError(t, err)
	require.Equal(t, 500, hp)
	before := h.raw(t, "p")

	for i := 0; i < 2; i++ {
		eff, err := h.service.GetEffectiveStats(ctx, "p")
		require.NoError(t, err)
		assert.Equal(t, 500, eff.MaxHealth)
		assert.Equal(t, eff.MaxHealth, eff.Health, "read %d", i)
	}
	assert.JSONEq(t, before, h.raw(t, "p"), "reads do not write")
	assert.Equal(t, 500, h.health(t, "p"))
}

func TestGearMana_FillsAndClampsOnUnequip(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, memstore.New(), dice.NewSequence(0))
	h.give(t, "p", "Focus Crystal", 1)
	idx, _, err := h.service.Equip(ctx, "p", "focus", nil)
	require.NoError(t, err)

	mp, err := h.service.AdjustMana(ctx, "p", 1000)
	require.NoError(t, err)
	require.Equal(t, 140, mp)
	before := h.raw(t, "p")

	eff, err := h.service.GetEffectiveStats(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, 140, eff.MaxMana)
	assert.Equal(t, 140, eff.Mana)
	assert.JSONEq(t, before, h.raw(t, "p"))

	_, eff, err = h.service.Unequip(ctx, "p", idx)
	require.NoError(t, err)
	assert.Equal(t, 100, eff.Mana)
	assert.Equal(t, 100, h.mana(t, "p"))
}

func TestEquipUnequip_RoundTripRestoresInventoryAndLoadout(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, memstore.New(), dice.NewSequence(0))
	h.give(t, "p", "Iron Plate", 2)
	before, err := h.service.GetLoadout(ctx, "p")
	require.NoError(t, err)

	idx, _, err := h.service.Equip(ctx, "p", "plate", nil)
	require.NoError(t, err)
	_, _, err = h.service.Unequip(ctx, "p", idx)
	require.NoError(t, err)

	after, err := h.service.GetLoadout(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, before, after)
	doc, err := h.store.Get(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, 2, player.ItemCount(doc, "Iron Plate"))
}

func TestEquip_CallerErrorsPassThrough(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, memstore.New(), dice.NewSequence(0))

	_, _, err := h.service.Equip(ctx, "p", "plate", nil)
	assert.ErrorIs(t, err, equipment.ErrInsufficientInventory)
	assert.NotErrorIs(t, err, fight.ErrTryAgain)

	_, _, err = h.service.Unequip(ctx, "p", 7)
	assert.ErrorIs(t, err, equipment.ErrInvalidSlot)
}

func TestAdjustHealth_BoundedByEffectiveMax(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, memstore.New(), dice.NewSequence(0))
	h.give(t, "p", "Iron Plate", 1)
	_, _, err := h.service.Equip(ctx, "p", "plate", nil)
	require.NoError(t, err)

	hp, st, err := h.service.AdjustHealth(ctx, "p", 500)
	require.NoError(t, err)
	assert.Equal(t, 500, hp)
	assert.Equal(t, death.Alive, st.State)
	assert.Equal(t, 500, h.health(t, "p"))

	mp, err := h.service.AdjustMana(ctx, "p", -1000)
	require.NoError(t, err)
	assert.Equal(t, 0, mp)
}

func TestAdjustHealth_KillIncapacitatesAndRevivalRestoresEffectiveMax(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, memstore.New(), dice.NewSequence(0))
	h.give(t, "p", "Vital Charm", 1)
	_, _, err := h.service.Equip(ctx, "p", "charm", nil)
	require.NoError(t, err)

	hp, st, err := h.service.AdjustHealth(ctx, "p", -10_000)
	require.NoError(t, err)
	assert.Equal(t, 0, hp)
	assert.Equal(t, death.Incapacitated, st.State)
	assert.Equal(t, time.Hour, st.Remaining)

	h.clock.Advance(time.Hour)
	st, err = h.service.CheckAndResolveDeath(ctx, "p")
	require.NoError(t, err)
	assert.True(t, st.Revived)
	assert.Equal(t, 600, h.health(t, "p"))

	eff, err := h.service.GetEffectiveStats(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, 600, eff.MaxHealth)
	assert.Equal(t, 600, eff.Health, "revived health survives the next read")
	assert.Equal(t, 600, h.health(t, "p"))
}

func TestResetToDefault_ClearsTimer(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, memstore.New(), dice.NewSequence(0))
	_, _, err := h.service.AdjustHealth(ctx, "p", -10_000)
	require.NoError(t, err)

	require.NoError(t, h.service.ResetToDefault(ctx, "p"))
	st, err := h.service.CheckAndResolveDeath(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, death.Alive, st.State)
	assert.Equal(t, 400, h.health(t, "p"))
}

func TestAttack(t *testing.T) {
	ctx := context.Background()
	// roll index 40 in [10, 60] -> 50; crit draw 999_999 misses at 5%.
	h := newHarness(t, memstore.New(), dice.NewSequence(40, 999_999))
	h.give(t, "b", "Tower Shield", 1)
	_, _, err := h.service.Equip(ctx, "b", "shield", nil)
	require.NoError(t, err)

	res, err := h.service.Attack(ctx, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, 50, res.Roll)
	assert.False(t, res.Crit)
	assert.Equal(t, 20, res.Damage, "(50 - 10 armor) * (1 - 0.5)")
	assert.Equal(t, 380, res.DefenderHealth)
	assert.Equal(t, death.Alive, res.DefenderStatus.State)
	assert.Equal(t, 380, h.health(t, "b"))
}

func TestAttack_CritAndLifesteal(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, memstore.New(), dice.NewSequence(50, 0))
	h.give(t, "a", "Vampire Fang", 1)
	_, _, err := h.service.Equip(ctx, "a", "fang", nil)
	require.NoError(t, err)
	_, _, err = h.service.AdjustHealth(ctx, "a", -100)
	require.NoError(t, err)

	res, err := h.service.Attack(ctx, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, 60, res.Roll)
	assert.True(t, res.Crit)
	assert.Equal(t, 90, res.Damage)
	assert.Equal(t, 45, res.Healed)
	assert.Equal(t, 345, res.AttackerHealth)
}

func TestAttack_KillingBlowIncapacitates(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, memstore.New(), dice.NewSequence(50, 999_999))
	_, _, err := h.service.AdjustHealth(ctx, "b", -390)
	require.NoError(t, err)

	res, err := h.service.Attack(ctx, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, 0, res.DefenderHealth)
	assert.Equal(t, death.Incapacitated, res.DefenderStatus.State)

	_, err = h.service.Attack(ctx, "a", "b")
	var incap *fight.IncapacitatedError
	require.ErrorAs(t, err, &incap)
	assert.Equal(t, "b", incap.Player)
	assert.ErrorIs(t, err, fight.ErrIncapacitated)
	assert.Contains(t, err.Error(), "Revival in")

	_, err = h.service.Attack(ctx, "b", "a")
	assert.ErrorIs(t, err, fight.ErrIncapacitated, "the dead cannot attack either")
}

func TestAttack_Self(t *testing.T) {
	h := newHarness(t, memstore.New(), dice.NewSequence(0))
	_, err := h.service.Attack(context.Background(), "a", "a")
	assert.ErrorIs(t, err, fight.ErrSelfAttack)
}

func TestDamage(t *testing.T) {
	a := stats.Defaults()
	d := stats.Defaults()
	assert.Equal(t, 30, fight.Damage(a, d, 30, false))
	assert.Equal(t, 45, fight.Damage(a, d, 30, true))

	a.Amplify = 0.1
	a.AttackDamage = 10
	assert.Equal(t, 44, fight.Damage(a, d, 30, false))

	d.Armor = 1000
	assert.Equal(t, 0, fight.Damage(a, d, 30, true), "never negative")

	d.Armor = 0
	d.Resistance = 5
	assert.Equal(t, 0, fight.Damage(a, d, 30, false), "resistance clamps at 100%")
}

func TestService_StoreFailureIsTryAgain(t *testing.T) {
	boom := errors.New("connection refused")
	h := newHarness(t, storetest.Failing{Err: boom}, dice.NewSequence(0))

	_, err := h.service.GetEffectiveStats(context.Background(), "p")
	assert.ErrorIs(t, err, fight.ErrTryAgain)
	assert.ErrorIs(t, err, boom)

	_, err = h.service.CheckAndResolveDeath(context.Background(), "p")
	assert.ErrorIs(t, err, fight.ErrTryAgain)

	_, _, err = h.service.Equip(context.Background(), "p", "nope", nil)
	assert.ErrorIs(t, err, equipment.ErrUnknownItem)
	assert.NotErrorIs(t, err, fight.ErrTryAgain)
}
