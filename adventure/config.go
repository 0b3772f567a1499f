package adventure

import (
	"fmt"
	"math/rand"
	"time"
)

type Config struct {
	// Fallback party size when a definition does not set one.
	PartySizeLimit int
	// Work queue buffer between the group finder and the runner.
	QueueCapacity int

	// Failure penalties, in percent.
	BaseDeathChance     float64
	EquipmentLossChance int

	// RNG seed (0 => time-based)
	Seed int64
}

func DefaultConfig() Config {
	return Config{
		PartySizeLimit:      3,
		QueueCapacity:       64,
		BaseDeathChance:     25,
		EquipmentLossChance: 15,
	}
}

func (c Config) validate() error {
	if c.PartySizeLimit <= 0 {
		return fmt.Errorf("PartySizeLimit must be > 0")
	}
	if c.QueueCapacity < 0 {
		return fmt.Errorf("QueueCapacity must be >= 0")
	}
	if c.BaseDeathChance < 0 || c.BaseDeathChance > 100 {
		return fmt.Errorf("invalid BaseDeathChance: %v", c.BaseDeathChance)
	}
	if c.EquipmentLossChance < 0 || c.EquipmentLossChance > 100 {
		return fmt.Errorf("invalid EquipmentLossChance: %d", c.EquipmentLossChance)
	}
	return nil
}

// Roller is the random source behind every probability roll. *rand.Rand
// satisfies it.
type Roller interface {
	Intn(n int) int
}

// Clock supplies ticket arrival times.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

type options struct {
	clock Clock
	rng   Roller
}

// Option customizes a GroupFinder or Runner.
type Option func(*options)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithRoller replaces the seeded random source.
func WithRoller(r Roller) Option {
	return func(o *options) { o.rng = r }
}

func buildOptions(cfg Config, opts []Option) options {
	o := options{clock: systemClock{}}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.rng == nil {
		seed := cfg.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		o.rng = rand.New(rand.NewSource(seed))
	}
	if o.clock == nil {
		o.clock = systemClock{}
	}
	return o
}
