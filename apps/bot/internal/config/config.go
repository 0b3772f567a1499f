// Package config reads bot settings from the environment, optionally seeded
// from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/MaraKorvus/lobotjr/adventure"
	"github.com/MaraKorvus/lobotjr/player"
)

const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"

	LedgerNone     = "none"
	LedgerSQLite   = "sqlite"
	LedgerPostgres = "postgres"
)

type Config struct {
	Addr string `env:"LOBOT_ADDR" envDefault:":8080"`

	ContentPath       string `env:"LOBOT_CONTENT_PATH" envDefault:"content/adventures.yaml"`
	LegacyDungeonList string `env:"LOBOT_LEGACY_DUNGEON_LIST"`
	LegacyDungeonDir  string `env:"LOBOT_LEGACY_DUNGEON_DIR" envDefault:"content/dungeons"`

	PartySizeLimit      int     `env:"LOBOT_PARTY_SIZE" envDefault:"3"`
	QueueCapacity       int     `env:"LOBOT_QUEUE_CAPACITY" envDefault:"64"`
	BaseDeathChance     float64 `env:"LOBOT_DEATH_CHANCE" envDefault:"25"`
	EquipmentLossChance int     `env:"LOBOT_EQUIPMENT_LOSS_CHANCE" envDefault:"15"`
	LevelCap            int     `env:"LOBOT_LEVEL_CAP" envDefault:"20"`
	ClassChoiceLevel    int     `env:"LOBOT_CLASS_CHOICE_LEVEL" envDefault:"3"`
	Seed                int64   `env:"LOBOT_SEED"`

	StoreMode   string `env:"LOBOT_STORE_MODE" envDefault:"memory"`
	SQLitePath  string `env:"LOBOT_SQLITE_PATH" envDefault:"data/lobotjr.db"`
	LedgerMode  string `env:"LOBOT_LEDGER_MODE" envDefault:"none"`
	PostgresDSN string `env:"LOBOT_LEDGER_DSN"`

	Operators  []string      `env:"LOBOT_OPERATORS" envSeparator:","`
	SessionTTL time.Duration `env:"LOBOT_SESSION_TTL" envDefault:"720h"`

	SendRate   float64 `env:"LOBOT_SEND_RATE" envDefault:"20"`
	SendBurst  int     `env:"LOBOT_SEND_BURST" envDefault:"5"`
	SendBuffer int     `env:"LOBOT_SEND_BUFFER" envDefault:"64"`
}

// Load reads dotenvPath when it exists, then the process environment.
// Variables already set in the environment win over the file.
func Load(dotenvPath string) (Config, error) {
	if dotenvPath != "" {
		if err := godotenv.Load(dotenvPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", dotenvPath, err)
		}
	}
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.StoreMode = strings.ToLower(strings.TrimSpace(cfg.StoreMode))
	cfg.LedgerMode = strings.ToLower(strings.TrimSpace(cfg.LedgerMode))
	for i, op := range cfg.Operators {
		cfg.Operators[i] = player.NormalizeName(op)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.ContentPath == "" {
		return fmt.Errorf("content path is required")
	}
	if c.PartySizeLimit < 1 {
		return fmt.Errorf("party size must be >= 1, got %d", c.PartySizeLimit)
	}
	if c.QueueCapacity < 1 {
		return fmt.Errorf("queue capacity must be >= 1, got %d", c.QueueCapacity)
	}
	if c.BaseDeathChance < 0 || c.BaseDeathChance > 100 {
		return fmt.Errorf("death chance must be within [0,100], got %v", c.BaseDeathChance)
	}
	if c.EquipmentLossChance < 0 || c.EquipmentLossChance > 100 {
		return fmt.Errorf("equipment loss chance must be within [0,100], got %d", c.EquipmentLossChance)
	}
	if c.LevelCap < 1 {
		return fmt.Errorf("level cap must be >= 1, got %d", c.LevelCap)
	}
	if c.ClassChoiceLevel < 1 || c.ClassChoiceLevel > c.LevelCap {
		return fmt.Errorf("class choice level must be within [1,%d], got %d", c.LevelCap, c.ClassChoiceLevel)
	}
	switch c.StoreMode {
	case StoreMemory, StoreSQLite:
	default:
		return fmt.Errorf("invalid store mode %q (supported: %s, %s)", c.StoreMode, StoreMemory, StoreSQLite)
	}
	switch c.LedgerMode {
	case LedgerNone, LedgerSQLite:
	case LedgerPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("ledger mode %s needs LOBOT_LEDGER_DSN", LedgerPostgres)
		}
	default:
		return fmt.Errorf("invalid ledger mode %q (supported: %s, %s, %s)", c.LedgerMode, LedgerNone, LedgerSQLite, LedgerPostgres)
	}
	if (c.StoreMode == StoreSQLite || c.LedgerMode == LedgerSQLite) && c.SQLitePath == "" {
		return fmt.Errorf("sqlite path is required")
	}
	if c.SendRate <= 0 || c.SendBurst < 1 {
		return fmt.Errorf("send rate and burst must be positive")
	}
	if c.SendBuffer < 1 {
		return fmt.Errorf("send buffer must be >= 1, got %d", c.SendBuffer)
	}
	return nil
}

// Engine returns the adventure engine settings.
func (c Config) Engine() adventure.Config {
	return adventure.Config{
		PartySizeLimit:      c.PartySizeLimit,
		QueueCapacity:       c.QueueCapacity,
		BaseDeathChance:     c.BaseDeathChance,
		EquipmentLossChance: c.EquipmentLossChance,
		Seed:                c.Seed,
	}
}

// RunnerEngine is Engine with its own random stream. A fixed seed stays
// reproducible, but the runner draws from Seed+1 so its rolls never mirror
// the group finder's picks.
func (c Config) RunnerEngine() adventure.Config {
	e := c.Engine()
	if e.Seed != 0 {
		e.Seed++
	}
	return e
}

// IsOperator reports whether name may register an operator account.
func (c Config) IsOperator(name string) bool {
	key := player.NormalizeName(name)
	for _, op := range c.Operators {
		if op == key {
			return true
		}
	}
	return false
}
