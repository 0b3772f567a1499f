package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, StoreMemory, cfg.StoreMode)
	assert.Equal(t, LedgerNone, cfg.LedgerMode)
	assert.Equal(t, 720*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 3, cfg.ClassChoiceLevel)

	engine := cfg.Engine()
	assert.Equal(t, 3, engine.PartySizeLimit)
	assert.Equal(t, 25.0, engine.BaseDeathChance)
	assert.Equal(t, 15, engine.EquipmentLossChance)
}

func TestLoad_DotenvAndOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("LOBOT_PARTY_SIZE=4\nLOBOT_OPERATORS=Mara, Lobos\nLOBOT_LEDGER_MODE=SQLite\n"), 0o644))
	t.Setenv("LOBOT_PARTY_SIZE", "2")
	t.Cleanup(func() {
		os.Unsetenv("LOBOT_OPERATORS")
		os.Unsetenv("LOBOT_LEDGER_MODE")
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.PartySizeLimit)
	assert.Equal(t, LedgerSQLite, cfg.LedgerMode)
	assert.True(t, cfg.IsOperator("MARA"))
	assert.True(t, cfg.IsOperator("lobos"))
	assert.False(t, cfg.IsOperator("someone"))
}

func TestRunnerEngine_DerivesDistinctSeed(t *testing.T) {
	t.Setenv("LOBOT_SEED", "42")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, int64(42), cfg.Engine().Seed)
	assert.Equal(t, int64(43), cfg.RunnerEngine().Seed)
	assert.Equal(t, cfg.Engine().PartySizeLimit, cfg.RunnerEngine().PartySizeLimit)

	cfg.Seed = 0
	assert.Zero(t, cfg.RunnerEngine().Seed)
}

func TestLoad_Rejects(t *testing.T) {
	cases := map[string][2]string{
		"party size":   {"LOBOT_PARTY_SIZE", "0"},
		"death chance": {"LOBOT_DEATH_CHANCE", "120"},
		"store mode":   {"LOBOT_STORE_MODE", "redis"},
		"postgres dsn": {"LOBOT_LEDGER_MODE", "postgres"},
		"not a number": {"LOBOT_QUEUE_CAPACITY", "lots"},
		"class level":  {"LOBOT_CLASS_CHOICE_LEVEL", "30"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			_, err := Load("")
			assert.Error(t, err)
		})
	}
}
