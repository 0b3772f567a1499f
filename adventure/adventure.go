package adventure

import (
	"fmt"

	"github.com/MaraKorvus/lobotjr/player"
)

// Definition is an immutable adventure loaded once at startup.
type Definition struct {
	ID          int
	Name        string
	Description string

	MinLevel        int
	MaxLevel        int
	BaseSuccessRate float64
	Cost            int
	// PartySize is the number of members the adventure is built for.
	PartySize int

	Encounters     []Encounter
	RewardModifier float64
	Loot           []*player.Item

	Success string
	Failure string
}

// Encounter is one step of an adventure. Difficulty is subtracted from the
// party's success chance.
type Encounter struct {
	Index       int
	Difficulty  float64
	Text        string
	SuccessText string
}

// InLevelRange reports whether min <= level <= max.
func (d *Definition) InLevelRange(level int) bool {
	return d.MinLevel <= level && level <= d.MaxLevel
}

// Encounter returns the encounter at zero-based index i.
func (d *Definition) Encounter(i int) (Encounter, bool) {
	if i < 0 || i >= len(d.Encounters) {
		return Encounter{}, false
	}
	return d.Encounters[i], true
}

func (d *Definition) String() string {
	return fmt.Sprintf("%s (#%d, lvl %d-%d)", d.Name, d.ID, d.MinLevel, d.MaxLevel)
}

// Validate checks the load-time invariants of a definition.
func Validate(d *Definition) error {
	if d == nil {
		return InvalidDefinitionError{Reason: "nil definition"}
	}
	switch {
	case d.ID <= 0:
		return InvalidDefinitionError{ID: d.ID, Reason: "id must be > 0"}
	case d.Name == "":
		return InvalidDefinitionError{ID: d.ID, Reason: "name is required"}
	case d.MinLevel < 1 || d.MaxLevel < d.MinLevel:
		return InvalidDefinitionError{ID: d.ID, Reason: fmt.Sprintf("invalid level range %d-%d", d.MinLevel, d.MaxLevel)}
	case d.Cost < 0:
		return InvalidDefinitionError{ID: d.ID, Reason: "cost must be >= 0"}
	case d.PartySize < 1:
		return InvalidDefinitionError{ID: d.ID, Reason: "party size must be >= 1"}
	case len(d.Encounters) == 0:
		return InvalidDefinitionError{ID: d.ID, Reason: "no encounters"}
	}
	for i, e := range d.Encounters {
		if e.Index != i {
			return InvalidDefinitionError{ID: d.ID, Reason: fmt.Sprintf("encounter %d has index %d", i, e.Index)}
		}
	}
	for _, it := range d.Loot {
		if it == nil {
			return InvalidDefinitionError{ID: d.ID, Reason: "nil loot item"}
		}
	}
	return nil
}
