package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestProfile_GetSetCoverEveryField(t *testing.T) {
	var p Profile
	for i, f := range Fields() {
		require.True(t, f.Valid())
		require.NoError(t, p.Set(f, float64(i+1)))
		assert.Equal(t, float64(i+1), p.Get(f), "field %s", f)
	}
	assert.ErrorIs(t, p.Set("luck", 1), ErrUnknownField)
	assert.Equal(t, 0.0, p.Get("luck"))
}

func TestProfile_SetTruncatesIntegralFields(t *testing.T) {
	var p Profile
	require.NoError(t, p.Set(Health, 12.9))
	require.NoError(t, p.Set(Mana, -3.7))
	assert.Equal(t, 12, p.Health)
	assert.Equal(t, -3, p.Mana)
}

func TestDefaults_SatisfyInvariant(t *testing.T) {
	d := Defaults()
	n := d
	n.normalize()
	assert.Equal(t, d, n)
	assert.Equal(t, d.MaxHealth, d.Health)
	assert.Equal(t, d.MaxMana, d.Mana)
}

func TestDocument_HasEveryField(t *testing.T) {
	doc := Defaults().document()
	assert.Len(t, doc, len(Fields()))
	assert.Equal(t, 400, doc["health"])
	assert.Equal(t, 1.5, doc["critDamage"])
}

func TestProperty_NormalizeEstablishesInvariant(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		p := Profile{
			Health:    rapid.IntRange(-1000, 1000).Draw(rt, "health"),
			MaxHealth: rapid.IntRange(-1000, 1000).Draw(rt, "maxHealth"),
			Mana:      rapid.IntRange(-1000, 1000).Draw(rt, "mana"),
			MaxMana:   rapid.IntRange(-1000, 1000).Draw(rt, "maxMana"),
		}
		in := p
		p.normalize()
		assert.GreaterOrEqual(rt, p.MaxHealth, 1)
		assert.GreaterOrEqual(rt, p.MaxMana, 0)
		assert.Equal(rt, max(in.Health, 0), p.Health, "health is never lowered toward the base max")
		assert.Equal(rt, max(in.Mana, 0), p.Mana, "mana is never lowered toward the base max")
	})
}
