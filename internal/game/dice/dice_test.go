package dice_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/fightsheet/internal/game/dice"
)

// TestCryptoSource_Intn_InRange verifies every value returned by Intn(6) is in [0, 6).
func TestCryptoSource_Intn_InRange(t *testing.T) {
	src := dice.NewCryptoSource()
	for i := 0; i < 1000; i++ {
		v := src.Intn(6)
		assert.GreaterOrEqual(t, v, 0)
		assert.Less(t, v, 6)
	}
}

// TestCryptoSource_Intn_PanicsOnZero verifies Intn panics when called with n <= 0.
func TestCryptoSource_Intn_PanicsOnZero(t *testing.T) {
	src := dice.NewCryptoSource()
	assert.Panics(t, func() { src.Intn(0) })
}

func TestSequence_CyclesAndReduces(t *testing.T) {
	s := dice.NewSequence(3, 10, -1)
	assert.Equal(t, 3, s.Intn(5))
	assert.Equal(t, 0, s.Intn(5))
	assert.Equal(t, 4, s.Intn(5))
	assert.Equal(t, 3, s.Intn(5))
	assert.Panics(t, func() { dice.NewSequence() })
}

func TestRoller_Between(t *testing.T) {
	r := dice.NewLoggedRoller(dice.NewSequence(0, 50, 1000), zaptest.NewLogger(t))
	assert.Equal(t, 10, r.Between("damage", 10, 60))
	assert.Equal(t, 60, r.Between("damage", 10, 60))
	assert.Equal(t, 10+1000%51, r.Between("damage", 10, 60))
	assert.Equal(t, 7, r.Between("damage", 7, 3), "inverted range returns lo")
}

func TestRoller_Chance(t *testing.T) {
	r := dice.NewLoggedRoller(dice.NewSequence(49_999, 50_000), zaptest.NewLogger(t))
	assert.True(t, r.Chance("crit", 0.05))
	assert.False(t, r.Chance("crit", 0.05))

	assert.False(t, r.Chance("crit", 0))
	assert.False(t, r.Chance("crit", -1))
	assert.True(t, r.Chance("crit", 1.5))
}

func TestProperty_BetweenInRange(t *testing.T) {
	r := dice.NewLoggedRoller(dice.NewCryptoSource(), zaptest.NewLogger(t))
	rapid.Check(t, func(rt *rapid.T) {
		lo := rapid.IntRange(-100, 100).Draw(rt, "lo")
		hi := rapid.IntRange(lo, lo+200).Draw(rt, "hi")
		v := r.Between("x", lo, hi)
		if v < lo || v > hi {
			rt.Fatalf("%d outside [%d, %d]", v, lo, hi)
		}
	})
}
