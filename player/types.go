package player

import "strings"

// ClassType identifies a character class. The group finder never places two
// members of the same class type in one party.
type ClassType uint8

const (
	ClassDeprived ClassType = iota
	ClassWarrior
	ClassMage
	ClassRogue
	ClassRanger
	ClassCleric
)

var classNames = map[ClassType]string{
	ClassDeprived: "Deprived",
	ClassWarrior:  "Warrior",
	ClassMage:     "Mage",
	ClassRogue:    "Rogue",
	ClassRanger:   "Ranger",
	ClassCleric:   "Cleric",
}

func (c ClassType) String() string {
	if name, ok := classNames[c]; ok {
		return name
	}
	return "Unknown"
}

// ParseClass resolves a class by case-insensitive name.
func ParseClass(name string) (ClassType, bool) {
	name = strings.TrimSpace(name)
	for c, n := range classNames {
		if strings.EqualFold(n, name) {
			return c, true
		}
	}
	return ClassDeprived, false
}

// PlayableClasses lists the classes a player may pick.
func PlayableClasses() []ClassType {
	return []ClassType{ClassWarrior, ClassMage, ClassRogue, ClassRanger, ClassCleric}
}

// Slot is an equipment slot.
type Slot uint8

const (
	SlotNone Slot = iota
	SlotWeapon
	SlotArmor
	SlotTrinket
	SlotOther
)

func (s Slot) String() string {
	switch s {
	case SlotWeapon:
		return "Weapon"
	case SlotArmor:
		return "Armor"
	case SlotTrinket:
		return "Trinket"
	case SlotOther:
		return "Other"
	default:
		return "None"
	}
}

// ParseSlot accepts either the slot name or its legacy numeric id.
func ParseSlot(raw string) (Slot, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "weapon", "1":
		return SlotWeapon, true
	case "armor", "armour", "2":
		return SlotArmor, true
	case "trinket", "3":
		return SlotTrinket, true
	case "other", "4":
		return SlotOther, true
	default:
		return SlotNone, false
	}
}

// Stats are the encounter modifiers carried by classes, items, status
// effects and parties.
type Stats struct {
	SuccessChance float64 `yaml:"success_chance" json:"success_chance"`
	ItemFind      int     `yaml:"item_find" json:"item_find"`
	CoinBonus     int     `yaml:"coin_bonus" json:"coin_bonus"`
	XPBonus       int     `yaml:"xp_bonus" json:"xp_bonus"`
	PreventDeath  float64 `yaml:"prevent_death" json:"prevent_death"`
}

func (s Stats) Add(o Stats) Stats {
	return Stats{
		SuccessChance: s.SuccessChance + o.SuccessChance,
		ItemFind:      s.ItemFind + o.ItemFind,
		CoinBonus:     s.CoinBonus + o.CoinBonus,
		XPBonus:       s.XPBonus + o.XPBonus,
		PreventDeath:  s.PreventDeath + o.PreventDeath,
	}
}

func (s Stats) Sub(o Stats) Stats {
	return s.Add(o.Scale(-1))
}

// Halve is the duplicate-class contribution. Integer stats truncate.
func (s Stats) Halve() Stats {
	return Stats{
		SuccessChance: s.SuccessChance / 2,
		ItemFind:      s.ItemFind / 2,
		CoinBonus:     s.CoinBonus / 2,
		XPBonus:       s.XPBonus / 2,
		PreventDeath:  s.PreventDeath / 2,
	}
}

// Scale multiplies every stat by f. Integer stats truncate toward zero.
func (s Stats) Scale(f float64) Stats {
	return Stats{
		SuccessChance: s.SuccessChance * f,
		ItemFind:      int(float64(s.ItemFind) * f),
		CoinBonus:     int(float64(s.CoinBonus) * f),
		XPBonus:       int(float64(s.XPBonus) * f),
		PreventDeath:  s.PreventDeath * f,
	}
}

func (s Stats) IsZero() bool {
	return s == Stats{}
}

// Item is an immutable item definition shared by every player holding it.
type Item struct {
	ID          int64
	Name        string
	Description string
	Slot        Slot
	Rarity      int
	Stats       Stats
	ForClasses  []ClassType
}

// CanBeEquippedBy reports whether class c may equip the item.
func (it *Item) CanBeEquippedBy(c ClassType) bool {
	for _, fc := range it.ForClasses {
		if fc == c {
			return true
		}
	}
	return false
}

// ItemLookup resolves item definitions by id.
type ItemLookup interface {
	Item(id int64) (*Item, bool)
}
