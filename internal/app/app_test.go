package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/fightsheet/internal/config"
	"github.com/cory-johannsen/fightsheet/internal/game/death"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.LoadFromViper(config.Defaults())
	require.NoError(t, err)
	cfg.Fight.CatalogDir = filepath.Join("..", "..", "content", "gear")
	return cfg
}

func TestBuild_Memory(t *testing.T) {
	a, cleanup, err := Build(context.Background(), testConfig(t), zaptest.NewLogger(t))
	require.NoError(t, err)
	defer cleanup()

	assert.NotNil(t, a.Sweeper)
	assert.Positive(t, a.Catalog.Len())

	hp, st, err := a.Service.AdjustHealth(context.Background(), "p1", -10_000)
	require.NoError(t, err)
	assert.Equal(t, 0, hp)
	assert.Equal(t, death.Incapacitated, st.State)
	assert.Equal(t, time.Hour, st.Remaining.Round(time.Minute))
}

func TestBuild_SQLite(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Driver = config.DriverSQLite
	cfg.Storage.SQLitePath = filepath.Join(t.TempDir(), "players.db")
	cfg.Fight.SweepInterval = 0

	a, cleanup, err := Build(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer cleanup()

	assert.Nil(t, a.Sweeper)
	eff, err := a.Service.GetEffectiveStats(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 400, eff.MaxHealth)
}

func TestBuild_MissingCatalog(t *testing.T) {
	cfg := testConfig(t)
	cfg.Fight.CatalogDir = filepath.Join(t.TempDir(), "missing")
	_, _, err := Build(context.Background(), cfg, zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestOpenStore_UnknownDriver(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Driver = "redis"
	_, _, err := OpenStore(context.Background(), cfg, zaptest.NewLogger(t))
	assert.Error(t, err)
}
