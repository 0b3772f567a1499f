// Package content loads items, class stats and adventures from YAML, and
// legacy dungeon files from the original .ini layout.
package content

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MaraKorvus/lobotjr/adventure"
	"github.com/MaraKorvus/lobotjr/player"
)

const (
	// LegacyRewardModifier applies when an adventure does not set one.
	LegacyRewardModifier = 1.05
	// LegacyPartySize applies when an adventure does not set one.
	LegacyPartySize = 3
)

// LegacyCost is the entry cost used when an adventure does not set one.
func LegacyCost(minLevel int) int {
	cost := 50 + (minLevel-3)*10
	if cost < 0 {
		cost = 0
	}
	return cost
}

type File struct {
	Items      []ItemSpec      `yaml:"items"`
	Classes    []ClassSpec     `yaml:"classes"`
	Adventures []AdventureSpec `yaml:"adventures"`
}

type ItemSpec struct {
	ID          int64        `yaml:"id"`
	Name        string       `yaml:"name"`
	Description string       `yaml:"description"`
	Slot        string       `yaml:"slot"`
	Rarity      int          `yaml:"rarity"`
	Stats       player.Stats `yaml:"stats"`
	Classes     []string     `yaml:"classes"`
}

type ClassSpec struct {
	Name  string       `yaml:"name"`
	Stats player.Stats `yaml:"stats"`
}

type AdventureSpec struct {
	ID              int             `yaml:"id"`
	Name            string          `yaml:"name"`
	Description     string          `yaml:"description"`
	MinLevel        int             `yaml:"min_level"`
	MaxLevel        int             `yaml:"max_level"`
	BaseSuccessRate float64         `yaml:"base_success_rate"`
	Cost            *int            `yaml:"cost"`
	PartySize       int             `yaml:"party_size"`
	RewardModifier  *float64        `yaml:"reward_modifier"`
	Loot            []int64         `yaml:"loot"`
	Success         string          `yaml:"success"`
	Failure         string          `yaml:"failure"`
	Encounters      []EncounterSpec `yaml:"encounters"`
}

type EncounterSpec struct {
	Enemy       string  `yaml:"enemy"`
	Difficulty  float64 `yaml:"difficulty"`
	Text        string  `yaml:"text"`
	SuccessText string  `yaml:"success_text"`
}

// Content is everything loaded from one file.
type Content struct {
	Items       *Items
	Classes     map[player.ClassType]player.Stats
	Definitions []*adventure.Definition
}

// ClassStats returns the base stats of c; unknown classes have none.
func (c *Content) ClassStats(ct player.ClassType) player.Stats {
	return c.Classes[ct]
}

// Catalog builds the adventure catalog from the loaded definitions plus
// extra ones, typically legacy dungeons.
func (c *Content) Catalog(extra ...*adventure.Definition) (*adventure.MemoryCatalog, error) {
	defs := append(append([]*adventure.Definition(nil), c.Definitions...), extra...)
	return adventure.NewMemoryCatalog(defs...)
}

func Load(path string) (*Content, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read content file: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse decodes YAML content. Unknown fields, unknown item ids, duplicate ids
// and invalid adventures are errors.
func Parse(data []byte) (*Content, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse content YAML: %w", err)
	}

	items := NewItems()
	for _, spec := range f.Items {
		it, err := spec.item()
		if err != nil {
			return nil, err
		}
		if err := items.Add(it); err != nil {
			return nil, err
		}
	}

	classes := make(map[player.ClassType]player.Stats, len(f.Classes))
	for _, spec := range f.Classes {
		ct, ok := player.ParseClass(spec.Name)
		if !ok {
			return nil, fmt.Errorf("unknown class %q", spec.Name)
		}
		if _, dup := classes[ct]; dup {
			return nil, fmt.Errorf("class %s listed twice", ct)
		}
		classes[ct] = spec.Stats
	}

	c := &Content{Items: items, Classes: classes}
	seen := make(map[int]bool, len(f.Adventures))
	for _, spec := range f.Adventures {
		d, err := spec.definition(items)
		if err != nil {
			return nil, err
		}
		if seen[d.ID] {
			return nil, fmt.Errorf("adventure %d: %w", d.ID, adventure.ErrDuplicateID)
		}
		seen[d.ID] = true
		c.Definitions = append(c.Definitions, d)
	}
	return c, nil
}

func (s ItemSpec) item() (*player.Item, error) {
	if s.ID <= 0 || s.Name == "" {
		return nil, fmt.Errorf("item %d: id and name are required", s.ID)
	}
	slot := player.SlotNone
	if s.Slot != "" {
		var ok bool
		if slot, ok = player.ParseSlot(s.Slot); !ok {
			return nil, fmt.Errorf("item %d: unknown slot %q", s.ID, s.Slot)
		}
	}
	it := &player.Item{
		ID:          s.ID,
		Name:        s.Name,
		Description: s.Description,
		Slot:        slot,
		Rarity:      s.Rarity,
		Stats:       s.Stats,
	}
	for _, name := range s.Classes {
		ct, ok := player.ParseClass(name)
		if !ok {
			return nil, fmt.Errorf("item %d: unknown class %q", s.ID, name)
		}
		it.ForClasses = append(it.ForClasses, ct)
	}
	return it, nil
}

func (s AdventureSpec) definition(items player.ItemLookup) (*adventure.Definition, error) {
	d := &adventure.Definition{
		ID:              s.ID,
		Name:            strings.TrimSpace(s.Name),
		Description:     s.Description,
		MinLevel:        s.MinLevel,
		MaxLevel:        s.MaxLevel,
		BaseSuccessRate: s.BaseSuccessRate,
		Cost:            LegacyCost(s.MinLevel),
		PartySize:       LegacyPartySize,
		RewardModifier:  LegacyRewardModifier,
		Success:         s.Success,
		Failure:         s.Failure,
	}
	if s.Cost != nil {
		d.Cost = *s.Cost
	}
	if s.PartySize != 0 {
		d.PartySize = s.PartySize
	}
	if s.RewardModifier != nil {
		d.RewardModifier = *s.RewardModifier
	}
	for i, e := range s.Encounters {
		d.Encounters = append(d.Encounters, adventure.Encounter{
			Index:       i,
			Difficulty:  e.Difficulty,
			Text:        e.Text,
			SuccessText: e.SuccessText,
		})
	}
	loot, err := resolveLoot(s.ID, s.Loot, items)
	if err != nil {
		return nil, err
	}
	d.Loot = loot
	if err := adventure.Validate(d); err != nil {
		return nil, err
	}
	return d, nil
}

func resolveLoot(advID int, ids []int64, items player.ItemLookup) ([]*player.Item, error) {
	var loot []*player.Item
	for _, id := range ids {
		it, ok := items.Item(id)
		if !ok {
			return nil, adventure.InvalidDefinitionError{ID: advID, Reason: fmt.Sprintf("unknown loot item %d", id)}
		}
		loot = append(loot, it)
	}
	return loot, nil
}

// Items is the item repository.
type Items struct {
	byID map[int64]*player.Item
}

func NewItems() *Items {
	return &Items{byID: make(map[int64]*player.Item)}
}

func (r *Items) Add(it *player.Item) error {
	if _, ok := r.byID[it.ID]; ok {
		return fmt.Errorf("item %d listed twice", it.ID)
	}
	r.byID[it.ID] = it
	return nil
}

func (r *Items) Item(id int64) (*player.Item, bool) {
	it, ok := r.byID[id]
	return it, ok
}

// ByName finds an item by case-insensitive name.
func (r *Items) ByName(name string) (*player.Item, bool) {
	for _, it := range r.byID {
		if strings.EqualFold(it.Name, strings.TrimSpace(name)) {
			return it, true
		}
	}
	return nil, false
}

// All returns items ordered by id.
func (r *Items) All() []*player.Item {
	out := make([]*player.Item, 0, len(r.byID))
	for _, it := range r.byID {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
